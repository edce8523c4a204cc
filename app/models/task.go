package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidSubtask is the parent of every subtask validation error.
	ErrInvalidSubtask = errors.New("invalid subtask")
	// ErrIncompleteSubtask is returned when a subtask that has to be created
	// is missing one of subject, deadline or status.
	ErrIncompleteSubtask = fmt.Errorf("%w: requires subject, deadline and status", ErrInvalidSubtask)
	// ErrBlankSubtaskField is returned when a patch sets a required field to
	// a blank value.
	ErrBlankSubtaskField = fmt.Errorf("%w: subject, deadline and status must not be blank", ErrInvalidSubtask)
)

// DefaultUserName is the name given to users created implicitly by CreateTask.
const DefaultUserName = "Default Name"

// User owns an ordered list of tasks. Email is unique across users.
type User struct {
	ID    string `json:"_id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
	Tasks []Task `json:"tasks" bson:"tasks"`
}

// Task is embedded in its owning User.
type Task struct {
	ID       string    `json:"_id" bson:"_id"`
	Subject  string    `json:"subject" bson:"subject"`
	Deadline time.Time `json:"deadline" bson:"deadline"`
	Status   string    `json:"status" bson:"status"`
	Deleted  bool      `json:"deleted" bson:"deleted"`
	Subtasks []Subtask `json:"subtasks" bson:"subtasks"`
}

// Subtask is embedded in its owning Task.
type Subtask struct {
	ID       string    `json:"_id" bson:"_id"`
	Subject  string    `json:"subject" bson:"subject"`
	Deadline time.Time `json:"deadline" bson:"deadline"`
	Status   string    `json:"status" bson:"status"`
	Deleted  bool      `json:"deleted" bson:"deleted"`
}

// TaskFields are the mutable fields of a Task.
type TaskFields struct {
	Subject  string
	Deadline time.Time
	Status   string
}

// SubtaskPatch is one entry of a bulk subtask update. Nil fields are left
// untouched when merging onto an existing subtask.
type SubtaskPatch struct {
	ID       *string
	Subject  *string
	Deadline *time.Time
	Status   *string
	Deleted  *bool
}

// FindTask returns the task with the given id, or nil.
func (u *User) FindTask(taskID string) *Task {
	for i := range u.Tasks {
		if u.Tasks[i].ID == taskID {
			return &u.Tasks[i]
		}
	}
	return nil
}

// FindSubtask returns the subtask with the given id, or nil.
func (t *Task) FindSubtask(subtaskID string) *Subtask {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == subtaskID {
			return &t.Subtasks[i]
		}
	}
	return nil
}

// Apply overwrites the mutable fields. Identity, the deleted flag and the
// subtasks are left as they are.
func (f TaskFields) Apply(t *Task) {
	t.Subject = f.Subject
	t.Deadline = f.Deadline
	t.Status = f.Status
}

// Complete reports whether all three required fields are set.
func (f TaskFields) Complete() bool {
	return strings.TrimSpace(f.Subject) != "" && !f.Deadline.IsZero() && strings.TrimSpace(f.Status) != ""
}

// Apply merges the non-nil fields of the patch onto s. The id is never changed.
func (p SubtaskPatch) Apply(s *Subtask) {
	if p.Subject != nil {
		s.Subject = *p.Subject
	}
	if p.Deadline != nil {
		s.Deadline = *p.Deadline
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.Deleted != nil {
		s.Deleted = *p.Deleted
	}
}

// Complete reports whether the patch carries everything a new subtask needs.
func (p SubtaskPatch) Complete() bool {
	return p.Subject != nil && strings.TrimSpace(*p.Subject) != "" &&
		p.Deadline != nil && !p.Deadline.IsZero() &&
		p.Status != nil && strings.TrimSpace(*p.Status) != ""
}

// Valid reports whether every field the patch sets is non-blank. Nil fields
// are not checked.
func (p SubtaskPatch) Valid() bool {
	if p.Subject != nil && strings.TrimSpace(*p.Subject) == "" {
		return false
	}
	if p.Status != nil && strings.TrimSpace(*p.Status) == "" {
		return false
	}
	return p.Deadline == nil || !p.Deadline.IsZero()
}

// Validate checks the patch against an existing subtask when exists is true,
// or as a new subtask otherwise.
func (p SubtaskPatch) Validate(exists bool) error {
	if !p.Valid() {
		return ErrBlankSubtaskField
	}
	if !exists && !p.Complete() {
		return ErrIncompleteSubtask
	}
	return nil
}

// NewSubtask builds a fresh subtask with the given id from the patch.
func (p SubtaskPatch) NewSubtask(id string) (Subtask, error) {
	if !p.Complete() {
		return Subtask{}, ErrIncompleteSubtask
	}
	s := Subtask{ID: id}
	p.Apply(&s)
	return s, nil
}

// Properties returns the patch as a property map keyed by stored field name.
func (p SubtaskPatch) Properties() map[string]any {
	props := map[string]any{}
	if p.Subject != nil {
		props["subject"] = *p.Subject
	}
	if p.Deadline != nil {
		props["deadline"] = *p.Deadline
	}
	if p.Status != nil {
		props["status"] = *p.Status
	}
	if p.Deleted != nil {
		props["deleted"] = *p.Deleted
	}
	return props
}

// VisibleTasks drops soft-deleted tasks and, within the remaining tasks,
// soft-deleted subtasks. Order is preserved and the input is not modified.
func VisibleTasks(tasks []Task) []Task {
	visible := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Deleted {
			continue
		}
		subtasks := make([]Subtask, 0, len(t.Subtasks))
		for _, s := range t.Subtasks {
			if !s.Deleted {
				subtasks = append(subtasks, s)
			}
		}
		t.Subtasks = subtasks
		visible = append(visible, t)
	}
	return visible
}

var deadlineLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDeadline accepts RFC 3339 timestamps and plain dates. Values without
// a zone are read as UTC.
func ParseDeadline(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid deadline %q", value)
}
