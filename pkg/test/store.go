// Package test provides shared fixtures for exercising grids against the
// memory backend and, when MONGOFS_TEST_URL is set, a real mongod.
package test

import (
	"context"
	"math/rand"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/brianmcgee/mongofs/pkg/store"
)

// MemoryGrid returns a grid wired against in-process backends.
func MemoryGrid(t testing.TB, conf store.Config) *store.Grid {
	t.Helper()
	return store.NewWith(store.NewMemoryCatalog(), store.NewMemoryChunks(), conf)
}

// MongoGrid returns a grid wired against the mongod named by
// MONGOFS_TEST_URL, creating a throwaway database that is dropped on
// cleanup. Skips the test when the variable is unset.
func MongoGrid(t testing.TB, conf store.Config) *store.Grid {
	t.Helper()

	url := os.Getenv("MONGOFS_TEST_URL")
	if url == "" {
		t.Skip("MONGOFS_TEST_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}

	db := client.Database("mongofs_test_" + strings.ToLower(nuid.Next()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Errorf("failed to drop test database: %v", err)
		}
		_ = client.Disconnect(ctx)
	})

	conf.Database = db
	grid, err := store.New(conf, ctx)
	if err != nil {
		t.Fatalf("failed to create grid: %v", err)
	}
	return grid
}

// Payload returns size bytes from a fixed-seed source so failures reproduce.
func Payload(t testing.TB, size int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	data := make([]byte, size)
	rng.Read(data)
	return data
}
