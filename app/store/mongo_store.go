package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/chetan-skc/Task-Manager-API/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

// MongoStore keeps one document per user with tasks and subtasks embedded.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
}

// NewMongoStore creates a new MongoStore on the given database.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{
		client: client,
		users:  client.Database(database).Collection(usersCollection),
	}
}

// EnsureIndexes creates the unique email index and the task id index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "tasks._id", Value: 1}},
			Options: options.Index().SetName("tasks_id"),
		},
	})
	if err != nil {
		return unavailable("ensure indexes", err)
	}
	return nil
}

func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "find user by email", bson.M{"email": email})
}

func (s *MongoStore) FindUserContainingTask(ctx context.Context, taskID string) (*models.User, error) {
	return s.findOne(ctx, "find user by task", bson.M{"tasks._id": taskID})
}

func (s *MongoStore) CreateUser(ctx context.Context, email, name string) (*models.User, error) {
	user := &models.User{ID: NewID(), Name: name, Email: email, Tasks: []models.Task{}}
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("create user %q: %w", email, ErrDuplicateKey)
		}
		return nil, unavailable("create user", err)
	}
	return user, nil
}

func (s *MongoStore) AppendTask(ctx context.Context, userID string, task models.Task) (*models.Task, error) {
	task = prepareTask(task)
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$push": bson.M{"tasks": task}},
	)
	if err != nil {
		return nil, unavailable("append task", err)
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("append task to user %s: %w", userID, ErrNotFound)
	}
	return &task, nil
}

func (s *MongoStore) ReplaceTaskFields(ctx context.Context, taskID string, fields models.TaskFields) (*models.User, error) {
	// Only the three fields are set so _id, deleted and subtasks survive.
	return s.updateTask(ctx, "replace task fields", taskID, bson.M{
		"tasks.$.subject":  fields.Subject,
		"tasks.$.deadline": fields.Deadline,
		"tasks.$.status":   fields.Status,
	})
}

func (s *MongoStore) MarkTaskDeleted(ctx context.Context, taskID string) (*models.User, error) {
	return s.updateTask(ctx, "mark task deleted", taskID, bson.M{"tasks.$.deleted": true})
}

func (s *MongoStore) UpsertSubtasks(ctx context.Context, taskID string, patches []models.SubtaskPatch) (bool, error) {
	user, err := s.FindUserContainingTask(ctx, taskID)
	if err != nil || user == nil {
		return false, err
	}
	task := user.FindTask(taskID)
	if task == nil {
		return false, nil
	}
	if err := mergeSubtasks(task, patches); err != nil {
		return false, err
	}

	// The whole subtask array is written in one update.
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": user.ID, "tasks._id": taskID},
		bson.M{"$set": bson.M{"tasks.$.subtasks": task.Subtasks}},
	)
	if err != nil {
		return false, unavailable("upsert subtasks", err)
	}
	return res.MatchedCount > 0, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) updateTask(ctx context.Context, op, taskID string, set bson.M) (*models.User, error) {
	var user models.User
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"tasks._id": taskID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(op, err)
	}
	return &user, nil
}

func (s *MongoStore) findOne(ctx context.Context, op string, filter bson.M) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(op, err)
	}
	return &user, nil
}
