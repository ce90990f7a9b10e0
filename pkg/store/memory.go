package store

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/brianmcgee/mongofs/pkg/util"
)

// MemoryCatalog is an in-process Catalog, evaluating filters directly
// against record fields. Intended for embedding and tests.
type MemoryCatalog struct {
	mu   sync.RWMutex
	recs map[FileID]*FileRecord
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{recs: make(map[FileID]*FileRecord)}
}

func (c *MemoryCatalog) Insert(rec *FileRecord, _ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.recs[rec.ID]; ok {
		return ErrDuplicateID
	}
	clone := *rec
	c.recs[rec.ID] = &clone
	return nil
}

func (c *MemoryCatalog) Find(f Filter, _ context.Context) (util.Iterator[*FileRecord], error) {
	return &sliceIterator[*FileRecord]{items: c.matching(f)}, nil
}

func (c *MemoryCatalog) FindOne(f Filter, _ context.Context) (*FileRecord, error) {
	matches := c.matching(f)
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	// matching sorts by id, so ties break towards the lowest id
	return matches[0], nil
}

func (c *MemoryCatalog) Delete(f Filter, _ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed int64
	for id, rec := range c.recs {
		if f.Matches(rec) {
			delete(c.recs, id)
			removed++
		}
	}
	return removed, nil
}

func (c *MemoryCatalog) matching(f Filter) []*FileRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var matches []*FileRecord
	for _, rec := range c.recs {
		if f.Matches(rec) {
			clone := *rec
			matches = append(matches, &clone)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		left, right := matches[i].ID, matches[j].ID
		return left.Hex() < right.Hex()
	})
	return matches
}

// MemoryChunks is an in-process ChunkStore.
type MemoryChunks struct {
	mu     sync.RWMutex
	chunks map[FileID][]*ChunkRecord
}

func NewMemoryChunks() *MemoryChunks {
	return &MemoryChunks{chunks: make(map[FileID][]*ChunkRecord)}
}

func (c *MemoryChunks) Put(chunk *ChunkRecord, _ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := make([]byte, len(chunk.Data))
	copy(data, chunk.Data)
	c.chunks[chunk.FileID] = append(c.chunks[chunk.FileID], &ChunkRecord{
		FileID: chunk.FileID,
		N:      chunk.N,
		Data:   data,
	})
	return nil
}

func (c *MemoryChunks) Cursor(fileID FileID, _ context.Context) (util.Iterator[*ChunkRecord], error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items := make([]*ChunkRecord, len(c.chunks[fileID]))
	copy(items, c.chunks[fileID])
	sort.Slice(items, func(i, j int) bool {
		return items[i].N < items[j].N
	})
	return &sliceIterator[*ChunkRecord]{items: items}, nil
}

func (c *MemoryChunks) Stat(fileID FileID, _ context.Context) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chunks[fileID]) > 0, nil
}

func (c *MemoryChunks) Delete(fileID FileID, _ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := int64(len(c.chunks[fileID]))
	delete(c.chunks, fileID)
	return removed, nil
}

func (c *MemoryChunks) FileIDs(_ context.Context) ([]FileID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]FileID, 0, len(c.chunks))
	for id := range c.chunks {
		ids = append(ids, id)
	}
	return ids, nil
}

type sliceIterator[T any] struct {
	items []T
}

func (it *sliceIterator[T]) Next() (T, error) {
	var zero T
	if len(it.items) == 0 {
		return zero, io.EOF
	}
	item := it.items[0]
	it.items = it.items[1:]
	return item, nil
}

func (it *sliceIterator[T]) Close() error {
	it.items = nil
	return nil
}
