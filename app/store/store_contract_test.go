package store

import (
	"context"
	"testing"
	"time"

	"github.com/chetan-skc/Task-Manager-API/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

// runStoreContract exercises the Store behavior every backend must share.
// newStore must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("find on empty store", func(t *testing.T) {
		s := newStore(t)

		u, err := s.FindUserByEmail(ctx, "nobody@x.com")
		require.NoError(t, err)
		assert.Nil(t, u)

		u, err = s.FindUserContainingTask(ctx, NewID())
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("create user rejects duplicate email", func(t *testing.T) {
		s := newStore(t)

		u, err := s.CreateUser(ctx, "a@x.com", models.DefaultUserName)
		require.NoError(t, err)
		assert.NotEmpty(t, u.ID)
		assert.Equal(t, "a@x.com", u.Email)
		assert.Empty(t, u.Tasks)

		_, err = s.CreateUser(ctx, "a@x.com", "Other")
		assert.ErrorIs(t, err, ErrDuplicateKey)

		found, err := s.FindUserByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, u.ID, found.ID)
		assert.Equal(t, models.DefaultUserName, found.Name)
	})

	t.Run("append task assigns identities and keeps order", func(t *testing.T) {
		s := newStore(t)
		u, err := s.CreateUser(ctx, "b@x.com", "B")
		require.NoError(t, err)

		first, err := s.AppendTask(ctx, u.ID, models.Task{
			ID: "client-chosen", Subject: "first", Deadline: day(1), Status: "pending", Deleted: true,
			Subtasks: []models.Subtask{{ID: "x", Subject: "sub", Deadline: day(2), Status: "pending"}},
		})
		require.NoError(t, err)
		assert.NotEqual(t, "client-chosen", first.ID)
		assert.False(t, first.Deleted)
		require.Len(t, first.Subtasks, 1)
		assert.NotEqual(t, "x", first.Subtasks[0].ID)

		second, err := s.AppendTask(ctx, u.ID, models.Task{Subject: "second", Deadline: day(3), Status: "pending"})
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)

		found, err := s.FindUserContainingTask(ctx, second.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, u.ID, found.ID)
		require.Len(t, found.Tasks, 2)
		assert.Equal(t, "first", found.Tasks[0].Subject)
		assert.Equal(t, "second", found.Tasks[1].Subject)
		assert.True(t, day(1).Equal(found.Tasks[0].Deadline))
		require.Len(t, found.Tasks[0].Subtasks, 1)
		assert.Equal(t, "sub", found.Tasks[0].Subtasks[0].Subject)
		assert.Empty(t, found.Tasks[1].Subtasks)
	})

	t.Run("append task to unknown user", func(t *testing.T) {
		s := newStore(t)

		_, err := s.AppendTask(ctx, NewID(), models.Task{Subject: "s", Deadline: day(1), Status: "pending"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("replace task fields preserves deleted flag and subtasks", func(t *testing.T) {
		s := newStore(t)
		u, err := s.CreateUser(ctx, "c@x.com", "C")
		require.NoError(t, err)
		task, err := s.AppendTask(ctx, u.ID, models.Task{
			Subject: "old", Deadline: day(1), Status: "pending",
			Subtasks: []models.Subtask{{Subject: "sub", Deadline: day(2), Status: "pending"}},
		})
		require.NoError(t, err)
		_, err = s.MarkTaskDeleted(ctx, task.ID)
		require.NoError(t, err)

		owner, err := s.ReplaceTaskFields(ctx, task.ID, models.TaskFields{Subject: "new", Deadline: day(9), Status: "done"})
		require.NoError(t, err)
		require.NotNil(t, owner)
		assert.Equal(t, u.ID, owner.ID)

		got := owner.FindTask(task.ID)
		require.NotNil(t, got)
		assert.Equal(t, "new", got.Subject)
		assert.Equal(t, "done", got.Status)
		assert.True(t, day(9).Equal(got.Deadline))
		assert.True(t, got.Deleted)
		assert.Len(t, got.Subtasks, 1)
	})

	t.Run("update unknown task returns nil", func(t *testing.T) {
		s := newStore(t)

		owner, err := s.ReplaceTaskFields(ctx, NewID(), models.TaskFields{Subject: "s", Deadline: day(1), Status: "x"})
		require.NoError(t, err)
		assert.Nil(t, owner)

		owner, err = s.MarkTaskDeleted(ctx, NewID())
		require.NoError(t, err)
		assert.Nil(t, owner)

		ok, err := s.UpsertSubtasks(ctx, NewID(), nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("mark task deleted is idempotent", func(t *testing.T) {
		s := newStore(t)
		u, err := s.CreateUser(ctx, "d@x.com", "D")
		require.NoError(t, err)
		task, err := s.AppendTask(ctx, u.ID, models.Task{Subject: "s", Deadline: day(1), Status: "pending"})
		require.NoError(t, err)

		once, err := s.MarkTaskDeleted(ctx, task.ID)
		require.NoError(t, err)
		twice, err := s.MarkTaskDeleted(ctx, task.ID)
		require.NoError(t, err)

		assert.Equal(t, once, twice)
		assert.True(t, twice.FindTask(task.ID).Deleted)
	})

	t.Run("upsert subtasks merges and appends", func(t *testing.T) {
		s := newStore(t)
		u, err := s.CreateUser(ctx, "e@x.com", "E")
		require.NoError(t, err)
		task, err := s.AppendTask(ctx, u.ID, models.Task{
			Subject: "t", Deadline: day(1), Status: "pending",
			Subtasks: []models.Subtask{{Subject: "keep", Deadline: day(2), Status: "pending"}},
		})
		require.NoError(t, err)
		existingID := task.Subtasks[0].ID
		deadline := day(5)

		ok, err := s.UpsertSubtasks(ctx, task.ID, []models.SubtaskPatch{
			{ID: strPtr(existingID), Status: strPtr("done")},
			{Subject: strPtr("added"), Deadline: &deadline, Status: strPtr("pending")},
			{ID: strPtr("unknown"), Subject: strPtr("foreign"), Deadline: &deadline, Status: strPtr("pending")},
		})
		require.NoError(t, err)
		assert.True(t, ok)

		owner, err := s.FindUserContainingTask(ctx, task.ID)
		require.NoError(t, err)
		subs := owner.FindTask(task.ID).Subtasks
		require.Len(t, subs, 3)
		assert.Equal(t, existingID, subs[0].ID)
		assert.Equal(t, "keep", subs[0].Subject)
		assert.Equal(t, "done", subs[0].Status)
		assert.True(t, day(2).Equal(subs[0].Deadline))
		assert.Equal(t, "added", subs[1].Subject)
		assert.Equal(t, "foreign", subs[2].Subject)
		assert.NotEqual(t, "unknown", subs[2].ID)
	})

	t.Run("upsert subtasks can soft delete", func(t *testing.T) {
		s := newStore(t)
		u, err := s.CreateUser(ctx, "f@x.com", "F")
		require.NoError(t, err)
		task, err := s.AppendTask(ctx, u.ID, models.Task{
			Subject: "t", Deadline: day(1), Status: "pending",
			Subtasks: []models.Subtask{{Subject: "gone", Deadline: day(2), Status: "pending"}},
		})
		require.NoError(t, err)

		ok, err := s.UpsertSubtasks(ctx, task.ID, []models.SubtaskPatch{
			{ID: strPtr(task.Subtasks[0].ID), Deleted: boolPtr(true)},
		})
		require.NoError(t, err)
		assert.True(t, ok)

		owner, err := s.FindUserContainingTask(ctx, task.ID)
		require.NoError(t, err)
		sub := owner.FindTask(task.ID).Subtasks[0]
		assert.True(t, sub.Deleted)
		assert.Equal(t, "gone", sub.Subject)
	})

	t.Run("upsert subtasks rejects incomplete batch atomically", func(t *testing.T) {
		s := newStore(t)
		u, err := s.CreateUser(ctx, "g@x.com", "G")
		require.NoError(t, err)
		task, err := s.AppendTask(ctx, u.ID, models.Task{
			Subject: "t", Deadline: day(1), Status: "pending",
			Subtasks: []models.Subtask{{Subject: "keep", Deadline: day(2), Status: "pending"}},
		})
		require.NoError(t, err)

		_, err = s.UpsertSubtasks(ctx, task.ID, []models.SubtaskPatch{
			{ID: strPtr(task.Subtasks[0].ID), Status: strPtr("done")},
			{Subject: strPtr("missing deadline"), Status: strPtr("pending")},
		})
		assert.ErrorIs(t, err, models.ErrIncompleteSubtask)

		owner, err := s.FindUserContainingTask(ctx, task.ID)
		require.NoError(t, err)
		subs := owner.FindTask(task.ID).Subtasks
		require.Len(t, subs, 1)
		assert.Equal(t, "pending", subs[0].Status)
	})

	t.Run("upsert subtasks rejects blank fields on merge", func(t *testing.T) {
		s := newStore(t)
		u, err := s.CreateUser(ctx, "h@x.com", "H")
		require.NoError(t, err)
		task, err := s.AppendTask(ctx, u.ID, models.Task{
			Subject: "t", Deadline: day(1), Status: "pending",
			Subtasks: []models.Subtask{{Subject: "keep", Deadline: day(2), Status: "pending"}},
		})
		require.NoError(t, err)

		_, err = s.UpsertSubtasks(ctx, task.ID, []models.SubtaskPatch{
			{ID: strPtr(task.Subtasks[0].ID), Subject: strPtr(""), Status: strPtr("   ")},
		})
		assert.ErrorIs(t, err, models.ErrBlankSubtaskField)

		owner, err := s.FindUserContainingTask(ctx, task.ID)
		require.NoError(t, err)
		subs := owner.FindTask(task.ID).Subtasks
		require.Len(t, subs, 1)
		assert.Equal(t, "keep", subs[0].Subject)
		assert.Equal(t, "pending", subs[0].Status)
	})
}
