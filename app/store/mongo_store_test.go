package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TestMongoStore runs against the server named by MONGO_TEST_URI using a
// throwaway database that is dropped before each subtest.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { client.Disconnect(ctx) })

	const database = "task_management_test"
	runStoreContract(t, func(t *testing.T) Store {
		require.NoError(t, client.Database(database).Drop(ctx))

		s := NewMongoStore(client, database)
		require.NoError(t, s.EnsureIndexes(ctx))
		return s
	})
}
