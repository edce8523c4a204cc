package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chetan-skc/Task-Manager-API/app/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const constraintViolation = "Neo.ClientError.Schema.ConstraintValidationFailed"

// Graph layout:
//
//	(:User {id, name, email})-[:OWNS]->(:Task {id, subject, deadline, status, deleted, position})
//	(:Task)-[:HAS_SUBTASK]->(:Subtask {id, subject, deadline, status, deleted, position})
//
// position keeps insertion order within the owning collection.
var schemaStatements = []string{
	"CREATE CONSTRAINT user_email_unique IF NOT EXISTS FOR (u:User) REQUIRE u.email IS UNIQUE",
	"CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE",
	"CREATE INDEX task_id IF NOT EXISTS FOR (t:Task) ON (t.id)",
	"CREATE INDEX subtask_id IF NOT EXISTS FOR (s:Subtask) ON (s.id)",
}

// userProjection expects a bound variable u and returns one row per user.
const userProjection = `
WITH DISTINCT u
OPTIONAL MATCH (u)-[:OWNS]->(t:Task)
OPTIONAL MATCH (t)-[:HAS_SUBTASK]->(s:Subtask)
WITH u, t, s ORDER BY t.position, s.position
WITH u, t, collect(s {.id, .subject, .deadline, .status, .deleted}) AS subtasks
ORDER BY t.position
WITH u, collect(t {.id, .subject, .deadline, .status, .deleted, subtasks: subtasks}) AS tasks
RETURN u.id AS id, u.name AS name, u.email AS email, tasks`

// Neo4jStore stores the hierarchy as a graph.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore creates a new Neo4jStore. An empty database selects the
// server default.
func NewNeo4jStore(driver neo4j.DriverWithContext, database string) *Neo4jStore {
	return &Neo4jStore{driver: driver, database: database}
}

// EnsureSchema creates the uniqueness constraints and lookup indexes.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range schemaStatements {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			return unavailable("ensure schema", err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return unavailable("ensure schema", err)
		}
	}
	return nil
}

func (s *Neo4jStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.readUser(ctx, "find user by email", "MATCH (u:User {email: $email})", map[string]any{"email": email})
}

func (s *Neo4jStore) FindUserContainingTask(ctx context.Context, taskID string) (*models.User, error) {
	return s.readUser(ctx, "find user by task", "MATCH (u:User)-[:OWNS]->(:Task {id: $taskId})", map[string]any{"taskId": taskID})
}

func (s *Neo4jStore) CreateUser(ctx context.Context, email, name string) (*models.User, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	user := &models.User{ID: NewID(), Name: name, Email: email, Tasks: []models.Task{}}
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"CREATE (u:User {id: $id, name: $name, email: $email})",
			map[string]any{"id": user.ID, "name": user.Name, "email": user.Email},
		)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		var neoErr *neo4j.Neo4jError
		if errors.As(err, &neoErr) && neoErr.Code == constraintViolation {
			return nil, fmt.Errorf("create user %q: %w", email, ErrDuplicateKey)
		}
		return nil, unavailable("create user", err)
	}
	return user, nil
}

func (s *Neo4jStore) AppendTask(ctx context.Context, userID string, task models.Task) (*models.Task, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	task = prepareTask(task)
	subtasks := make([]map[string]any, 0, len(task.Subtasks))
	for i, sub := range task.Subtasks {
		subtasks = append(subtasks, map[string]any{
			"id":       sub.ID,
			"subject":  sub.Subject,
			"deadline": sub.Deadline,
			"status":   sub.Status,
			"position": int64(i),
		})
	}

	found, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MATCH (u:User {id: $userId}) "+
				"OPTIONAL MATCH (u)-[:OWNS]->(existing:Task) "+
				"WITH u, count(existing) AS n "+
				"CREATE (u)-[:OWNS]->(t:Task {id: $id, subject: $subject, deadline: $deadline, status: $status, deleted: false, position: n}) "+
				"RETURN t.id AS id",
			map[string]any{
				"userId":   userID,
				"id":       task.ID,
				"subject":  task.Subject,
				"deadline": task.Deadline,
				"status":   task.Status,
			},
		)
		if err != nil {
			return false, err
		}
		if !res.Next(ctx) {
			return false, res.Err()
		}
		if len(subtasks) == 0 {
			return true, nil
		}

		res, err = tx.Run(ctx,
			"MATCH (t:Task {id: $id}) "+
				"UNWIND $subtasks AS sub "+
				"CREATE (t)-[:HAS_SUBTASK]->(:Subtask {id: sub.id, subject: sub.subject, deadline: sub.deadline, status: sub.status, deleted: false, position: sub.position})",
			map[string]any{"id": task.ID, "subtasks": subtasks},
		)
		if err != nil {
			return false, err
		}
		_, err = res.Consume(ctx)
		return true, err
	})
	if err != nil {
		return nil, unavailable("append task", err)
	}
	if !found.(bool) {
		return nil, fmt.Errorf("append task to user %s: %w", userID, ErrNotFound)
	}
	return &task, nil
}

func (s *Neo4jStore) ReplaceTaskFields(ctx context.Context, taskID string, fields models.TaskFields) (*models.User, error) {
	return s.updateTask(ctx, "replace task fields",
		"SET t.subject = $subject, t.deadline = $deadline, t.status = $status",
		map[string]any{
			"taskId":   taskID,
			"subject":  fields.Subject,
			"deadline": fields.Deadline,
			"status":   fields.Status,
		},
	)
}

func (s *Neo4jStore) MarkTaskDeleted(ctx context.Context, taskID string) (*models.User, error) {
	return s.updateTask(ctx, "mark task deleted", "SET t.deleted = true", map[string]any{"taskId": taskID})
}

func (s *Neo4jStore) UpsertSubtasks(ctx context.Context, taskID string, patches []models.SubtaskPatch) (bool, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	found, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MATCH (t:Task {id: $taskId}) "+
				"OPTIONAL MATCH (t)-[:HAS_SUBTASK]->(s:Subtask) "+
				"RETURN t.id AS id, collect(s.id) AS ids",
			map[string]any{"taskId": taskID},
		)
		if err != nil {
			return false, err
		}
		if !res.Next(ctx) {
			return false, res.Err()
		}

		existing := map[string]bool{}
		raw, _ := res.Record().Get("ids")
		ids, _ := raw.([]any)
		for _, id := range ids {
			if str, ok := id.(string); ok {
				existing[str] = true
			}
		}
		if err := validatePatches(existing, patches); err != nil {
			return false, err
		}

		position := int64(len(existing))
		for _, p := range patches {
			if p.ID != nil && existing[*p.ID] {
				if _, err := runConsume(ctx, tx,
					"MATCH (:Task {id: $taskId})-[:HAS_SUBTASK]->(s:Subtask {id: $id}) SET s += $props",
					map[string]any{"taskId": taskID, "id": *p.ID, "props": p.Properties()},
				); err != nil {
					return false, err
				}
				continue
			}

			sub, err := p.NewSubtask(NewID())
			if err != nil {
				return false, err
			}
			if _, err := runConsume(ctx, tx,
				"MATCH (t:Task {id: $taskId}) "+
					"CREATE (t)-[:HAS_SUBTASK]->(:Subtask {id: $id, subject: $subject, deadline: $deadline, status: $status, deleted: $deleted, position: $position})",
				map[string]any{
					"taskId":   taskID,
					"id":       sub.ID,
					"subject":  sub.Subject,
					"deadline": sub.Deadline,
					"status":   sub.Status,
					"deleted":  sub.Deleted,
					"position": position,
				},
			); err != nil {
				return false, err
			}
			position++
		}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidSubtask) {
			return false, err
		}
		return false, unavailable("upsert subtasks", err)
	}
	return found.(bool), nil
}

// Close closes the driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

// updateTask runs set against the task matched by $taskId and reads back the
// owning user in the same transaction.
func (s *Neo4jStore) updateTask(ctx context.Context, op, set string, params map[string]any) (*models.User, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MATCH (u:User)-[:OWNS]->(t:Task {id: $taskId}) "+set+" RETURN u.id AS userId",
			params,
		)
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		userID, _ := res.Record().Get("userId")
		return fetchUser(ctx, tx, "MATCH (u:User {id: $userId})", map[string]any{"userId": userID})
	})
	if err != nil {
		return nil, unavailable(op, err)
	}
	user, _ := result.(*models.User)
	return user, nil
}

func (s *Neo4jStore) readUser(ctx context.Context, op, match string, params map[string]any) (*models.User, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return fetchUser(ctx, tx, match, params)
	})
	if err != nil {
		return nil, unavailable(op, err)
	}
	user, _ := result.(*models.User)
	return user, nil
}

func fetchUser(ctx context.Context, tx neo4j.ManagedTransaction, match string, params map[string]any) (*models.User, error) {
	res, err := tx.Run(ctx, match+userProjection, params)
	if err != nil {
		return nil, err
	}
	if !res.Next(ctx) {
		return nil, res.Err()
	}
	record := res.Record()

	id, _ := record.Get("id")
	name, _ := record.Get("name")
	email, _ := record.Get("email")
	user := &models.User{
		ID:    asString(id),
		Name:  asString(name),
		Email: asString(email),
		Tasks: []models.Task{},
	}

	rawTasks, _ := record.Get("tasks")
	tasks, _ := rawTasks.([]any)
	for _, rt := range tasks {
		tm, ok := rt.(map[string]any)
		if !ok {
			continue
		}
		task := models.Task{
			ID:       asString(tm["id"]),
			Subject:  asString(tm["subject"]),
			Deadline: asTime(tm["deadline"]),
			Status:   asString(tm["status"]),
			Deleted:  asBool(tm["deleted"]),
			Subtasks: []models.Subtask{},
		}
		subs, _ := tm["subtasks"].([]any)
		for _, rs := range subs {
			sm, ok := rs.(map[string]any)
			if !ok {
				continue
			}
			task.Subtasks = append(task.Subtasks, models.Subtask{
				ID:       asString(sm["id"]),
				Subject:  asString(sm["subject"]),
				Deadline: asTime(sm["deadline"]),
				Status:   asString(sm["status"]),
				Deleted:  asBool(sm["deleted"]),
			})
		}
		user.Tasks = append(user.Tasks, task)
	}
	return user, nil
}

func runConsume(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) (neo4j.ResultSummary, error) {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res.Consume(ctx)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case neo4j.LocalDateTime:
		return t.Time()
	case neo4j.Date:
		return t.Time()
	}
	return time.Time{}
}
