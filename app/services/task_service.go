package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chetan-skc/Task-Manager-API/app/models"
	"github.com/chetan-skc/Task-Manager-API/app/store"
	"github.com/rs/zerolog"
)

var (
	// ErrUserNotFound is returned when no user matches the username or owns
	// the task.
	ErrUserNotFound = errors.New("user not found")
	// ErrTaskNotFound is returned when no task matches the id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidInput wraps every validation failure of a request.
	ErrInvalidInput = errors.New("invalid input")
)

// CreateTaskInput is the payload of CreateTask.
type CreateTaskInput struct {
	Username string
	Fields   models.TaskFields
	Subtasks []models.SubtaskPatch
}

// TaskService implements the task operations on top of a Store.
type TaskService struct {
	store   store.Store
	timeout time.Duration
}

// NewTaskService creates a new instance of TaskService. A zero timeout
// leaves store calls bounded only by the caller's context.
func NewTaskService(s store.Store, timeout time.Duration) *TaskService {
	return &TaskService{store: s, timeout: timeout}
}

// ListTasks returns the visible tasks of the user whose email is username.
func (s *TaskService) ListTasks(ctx context.Context, username string) ([]models.Task, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.store.FindUserByEmail(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return models.VisibleTasks(user.Tasks), nil
}

// CreateTask appends a task to the user, creating the user first when the
// email is unknown.
func (s *TaskService) CreateTask(ctx context.Context, in CreateTaskInput) error {
	if strings.TrimSpace(in.Username) == "" {
		return invalid("username is required")
	}
	if !in.Fields.Complete() {
		return invalid("subject, deadline and status are required")
	}
	task := models.Task{
		Subject:  in.Fields.Subject,
		Deadline: in.Fields.Deadline,
		Status:   in.Fields.Status,
		Subtasks: make([]models.Subtask, 0, len(in.Subtasks)),
	}
	for i, p := range in.Subtasks {
		sub, err := p.NewSubtask("")
		if err != nil {
			return invalid(fmt.Sprintf("subtasks[%d]: %v", i, err))
		}
		task.Subtasks = append(task.Subtasks, sub)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.findOrCreateUser(ctx, in.Username)
	if err != nil {
		return err
	}
	created, err := s.store.AppendTask(ctx, user.ID, task)
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().
		Str("user_id", user.ID).
		Str("task_id", created.ID).
		Int("subtasks", len(created.Subtasks)).
		Msg("task created")
	return nil
}

// UpdateTask overwrites subject, deadline and status of the task.
func (s *TaskService) UpdateTask(ctx context.Context, taskID string, fields models.TaskFields) error {
	if !fields.Complete() {
		return invalid("subject, deadline and status are required")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.store.ReplaceTaskFields(ctx, taskID, fields)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteTask soft deletes the task. Deleting twice is harmless.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.store.MarkTaskDeleted(ctx, taskID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrTaskNotFound
	}
	zerolog.Ctx(ctx).Debug().Str("user_id", user.ID).Str("task_id", taskID).Msg("task soft deleted")
	return nil
}

// ListSubtasks only checks that the task exists; it does not return the
// subtasks.
func (s *TaskService) ListSubtasks(ctx context.Context, taskID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.ownedTask(ctx, taskID)
	return err
}

// UpdateSubtasks merges patches carrying a known _id onto the task's
// subtasks and appends the rest. The batch is validated before anything is
// written.
func (s *TaskService) UpdateSubtasks(ctx context.Context, taskID string, patches []models.SubtaskPatch) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	task, err := s.ownedTask(ctx, taskID)
	if err != nil {
		return err
	}
	for i, p := range patches {
		if err := p.Validate(p.ID != nil && task.FindSubtask(*p.ID) != nil); err != nil {
			return invalid(fmt.Sprintf("subtasks[%d]: %v", i, err))
		}
	}

	ok, err := s.store.UpsertSubtasks(ctx, taskID, patches)
	if errors.Is(err, models.ErrInvalidSubtask) {
		// the task changed between the lookup and the write
		return invalid(err.Error())
	}
	if err != nil {
		return err
	}
	if !ok {
		return ErrTaskNotFound
	}
	return nil
}

// ownedTask resolves the owning user first so that a task id known to no
// user reports ErrUserNotFound.
func (s *TaskService) ownedTask(ctx context.Context, taskID string) (*models.Task, error) {
	user, err := s.store.FindUserContainingTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	task := user.FindTask(taskID)
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *TaskService) findOrCreateUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil || user != nil {
		return user, err
	}

	user, err = s.store.CreateUser(ctx, email, models.DefaultUserName)
	if errors.Is(err, store.ErrDuplicateKey) {
		// lost a creation race; the other request's user is the one to use
		zerolog.Ctx(ctx).Info().Str("email", email).Msg("user created concurrently, refetching")
		user, err = s.store.FindUserByEmail(ctx, email)
		if err == nil && user == nil {
			err = fmt.Errorf("user %q vanished after duplicate key", email)
		}
	}
	return user, err
}

func (s *TaskService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
