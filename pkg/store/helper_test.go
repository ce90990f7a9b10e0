package store

import (
	"context"
	"math/rand"
	"testing"
)

func newTestGrid(t *testing.T, conf Config) (*Grid, *MemoryCatalog, *MemoryChunks) {
	t.Helper()
	catalog := NewMemoryCatalog()
	chunks := NewMemoryChunks()
	return NewWith(catalog, chunks, conf), catalog, chunks
}

func payload(t testing.TB, size int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	data := make([]byte, size)
	rng.Read(data)
	return data
}

// failingCatalog wraps a Catalog, failing inserts with the configured error.
type failingCatalog struct {
	Catalog
	insertErr error
}

func (c *failingCatalog) Insert(rec *FileRecord, ctx context.Context) error {
	if c.insertErr != nil {
		return c.insertErr
	}
	return c.Catalog.Insert(rec, ctx)
}

// failingChunks wraps a ChunkStore, failing operations with the configured
// errors.
type failingChunks struct {
	ChunkStore
	putErr    error
	deleteErr error

	// when > 0 the first putAfter puts succeed before putErr kicks in
	putAfter int
	puts     int
}

func (c *failingChunks) Put(chunk *ChunkRecord, ctx context.Context) error {
	if c.putErr != nil {
		if c.puts < c.putAfter {
			c.puts++
			return c.ChunkStore.Put(chunk, ctx)
		}
		return c.putErr
	}
	return c.ChunkStore.Put(chunk, ctx)
}

func (c *failingChunks) Delete(fileID FileID, ctx context.Context) (int64, error) {
	if c.deleteErr != nil {
		return 0, c.deleteErr
	}
	return c.ChunkStore.Delete(fileID, ctx)
}
