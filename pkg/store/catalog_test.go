package store

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/brianmcgee/mongofs/pkg/util"
)

func TestMemoryCatalog_DuplicateID(t *testing.T) {
	catalog := NewMemoryCatalog()
	ctx := context.Background()

	rec := FileRecord{ID: primitive.NewObjectID(), Filename: "dup.bin"}
	require.NoError(t, catalog.Insert(&rec, ctx))

	err := catalog.Insert(&rec, ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateID))
}

func TestMemoryCatalog_DeleteCount(t *testing.T) {
	catalog := NewMemoryCatalog()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, catalog.Insert(&FileRecord{ID: primitive.NewObjectID(), Filename: "batch.bin"}, ctx))
	}
	require.NoError(t, catalog.Insert(&FileRecord{ID: primitive.NewObjectID(), Filename: "keep.bin"}, ctx))

	removed, err := catalog.Delete(ByFilename("batch.bin"), ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	it, err := catalog.Find(All(), ctx)
	require.NoError(t, err)
	recs, err := util.Collect(it)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "keep.bin", recs[0].Filename)
}

func TestMemoryCatalog_FindIsolatesRecords(t *testing.T) {
	catalog := NewMemoryCatalog()
	ctx := context.Background()

	id := primitive.NewObjectID()
	require.NoError(t, catalog.Insert(&FileRecord{ID: id, Filename: "stable.bin"}, ctx))

	rec, err := catalog.FindOne(ByID(id), ctx)
	require.NoError(t, err)

	// mutating a returned record must not leak into the stored one
	rec.Filename = "mutated.bin"

	again, err := catalog.FindOne(ByID(id), ctx)
	require.NoError(t, err)
	assert.Equal(t, "stable.bin", again.Filename)
}
