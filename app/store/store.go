// Package store persists the user → task → subtask hierarchy.
//
// Every backend treats a user as the unit of ownership: tasks live under
// exactly one user and subtasks under exactly one task. Lookups that return
// "absent" use a nil pointer with a nil error; driver failures are wrapped
// with ErrUnavailable.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/chetan-skc/Task-Manager-API/app/models"
	"github.com/google/uuid"
)

var (
	// ErrDuplicateKey is returned by CreateUser when the email is taken.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrUnavailable wraps any failure of the underlying database.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrNotFound is returned by AppendTask when the user does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is the persistence contract used by the task service.
type Store interface {
	// FindUserByEmail returns the user with the exact email, or nil.
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	// FindUserContainingTask returns the user owning the task, or nil.
	FindUserContainingTask(ctx context.Context, taskID string) (*models.User, error)
	// CreateUser inserts a user with no tasks.
	CreateUser(ctx context.Context, email, name string) (*models.User, error)
	// AppendTask assigns fresh identities to the task and its subtasks,
	// clears their deleted flags and appends the task to the user.
	AppendTask(ctx context.Context, userID string, task models.Task) (*models.Task, error)
	// ReplaceTaskFields overwrites subject, deadline and status of the task
	// and returns the owning user, or nil if no task matches.
	ReplaceTaskFields(ctx context.Context, taskID string, fields models.TaskFields) (*models.User, error)
	// MarkTaskDeleted soft deletes the task and returns the owning user, or
	// nil if no task matches.
	MarkTaskDeleted(ctx context.Context, taskID string) (*models.User, error)
	// UpsertSubtasks merges patches with a known id onto the task's
	// subtasks and appends the rest. It reports false if no task matches.
	UpsertSubtasks(ctx context.Context, taskID string, patches []models.SubtaskPatch) (bool, error)
	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// NewID returns a fresh opaque identity.
func NewID() string {
	return uuid.New().String()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// prepareTask returns a copy of task ready to be appended.
func prepareTask(task models.Task) models.Task {
	task.ID = NewID()
	task.Deleted = false
	subtasks := make([]models.Subtask, 0, len(task.Subtasks))
	for _, s := range task.Subtasks {
		s.ID = NewID()
		s.Deleted = false
		subtasks = append(subtasks, s)
	}
	task.Subtasks = subtasks
	return task
}

// validatePatches checks every patch given the ids of the subtasks the task
// already has: merged patches must not blank a field, appended ones must be
// complete.
func validatePatches(existing map[string]bool, patches []models.SubtaskPatch) error {
	for _, p := range patches {
		if err := p.Validate(p.ID != nil && existing[*p.ID]); err != nil {
			return err
		}
	}
	return nil
}

// mergeSubtasks applies the patches to task in place. Nothing is changed if
// any entry is invalid.
func mergeSubtasks(task *models.Task, patches []models.SubtaskPatch) error {
	existing := make(map[string]bool, len(task.Subtasks))
	for _, s := range task.Subtasks {
		existing[s.ID] = true
	}
	if err := validatePatches(existing, patches); err != nil {
		return err
	}

	for _, p := range patches {
		if p.ID != nil {
			if s := task.FindSubtask(*p.ID); s != nil {
				p.Apply(s)
				continue
			}
		}
		s, err := p.NewSubtask(NewID())
		if err != nil {
			return err
		}
		task.Subtasks = append(task.Subtasks, s)
	}
	return nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Tasks = make([]models.Task, len(u.Tasks))
	for i, t := range u.Tasks {
		t.Subtasks = append([]models.Subtask{}, t.Subtasks...)
		c.Tasks[i] = t
	}
	return &c
}
