package store

import (
	"context"
	"sync"

	"github.com/chetan-skc/Task-Manager-API/app/models"
)

// MemoryStore keeps everything in process. It is used for local runs
// (STORE_DRIVER=memory) and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users []*models.User
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u := s.byEmail(email); u != nil {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (s *MemoryStore) FindUserContainingTask(_ context.Context, taskID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, _ := s.byTask(taskID); u != nil {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, email, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byEmail(email) != nil {
		return nil, ErrDuplicateKey
	}
	u := &models.User{ID: NewID(), Name: name, Email: email, Tasks: []models.Task{}}
	s.users = append(s.users, u)
	return cloneUser(u), nil
}

func (s *MemoryStore) AppendTask(_ context.Context, userID string, task models.Task) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID != userID {
			continue
		}
		task = prepareTask(task)
		u.Tasks = append(u.Tasks, task)
		task.Subtasks = append([]models.Subtask{}, task.Subtasks...)
		return &task, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ReplaceTaskFields(_ context.Context, taskID string, fields models.TaskFields) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, t := s.byTask(taskID)
	if t == nil {
		return nil, nil
	}
	fields.Apply(t)
	return cloneUser(u), nil
}

func (s *MemoryStore) MarkTaskDeleted(_ context.Context, taskID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, t := s.byTask(taskID)
	if t == nil {
		return nil, nil
	}
	t.Deleted = true
	return cloneUser(u), nil
}

func (s *MemoryStore) UpsertSubtasks(_ context.Context, taskID string, patches []models.SubtaskPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, t := s.byTask(taskID)
	if t == nil {
		return false, nil
	}

	// merge on a copy so a rejected batch leaves the task untouched
	merged := *t
	merged.Subtasks = append([]models.Subtask{}, t.Subtasks...)
	if err := mergeSubtasks(&merged, patches); err != nil {
		return false, err
	}
	*t = merged
	return true, nil
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}

func (s *MemoryStore) byEmail(email string) *models.User {
	for _, u := range s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (s *MemoryStore) byTask(taskID string) (*models.User, *models.Task) {
	for _, u := range s.users {
		if t := u.FindTask(taskID); t != nil {
			return u, t
		}
	}
	return nil, nil
}
