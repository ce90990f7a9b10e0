package store_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/brianmcgee/mongofs/pkg/store"
	"github.com/brianmcgee/mongofs/pkg/test"
	"github.com/brianmcgee/mongofs/pkg/util"
)

func TestMongoGrid_RoundTrip(t *testing.T) {
	grid := test.MongoGrid(t, store.Config{})
	ctx := context.Background()

	data := test.Payload(t, 1<<20)

	id, err := grid.Store(
		bytes.NewReader(data), "roundtrip.bin", ctx,
		store.WithContentType("binary/octet-stream"),
		store.WithMetadata(bson.M{"key": "value"}),
	)
	require.NoError(t, err)

	rec, err := grid.FindOne(store.ByID(id), ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), rec.Length)
	assert.Equal(t, "roundtrip.bin", rec.Filename)

	resource, err := grid.GetResource(rec, ctx)
	require.NoError(t, err)

	reader := resource.Open(ctx)
	actual, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, data, actual)
}

func TestMongoGrid_MetadataFilter(t *testing.T) {
	grid := test.MongoGrid(t, store.Config{})
	ctx := context.Background()

	id, err := grid.Store(
		bytes.NewReader(test.Payload(t, 4<<10)), "tagged.bin", ctx,
		store.WithMetadata(bson.M{"key": "value", "owner": bson.M{"name": "mark"}}),
	)
	require.NoError(t, err)

	_, err = grid.Store(bytes.NewReader(test.Payload(t, 4<<10)), "untagged.bin", ctx)
	require.NoError(t, err)

	it, err := grid.Find(store.MetadataEq("key", "value"), ctx)
	require.NoError(t, err)
	recs, err := util.Collect(it)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].ID)

	rec, err := grid.FindOne(store.MetadataEq("owner.name", "mark"), ctx)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
}

func TestMongoGrid_Delete(t *testing.T) {
	grid := test.MongoGrid(t, store.Config{})
	ctx := context.Background()

	id, err := grid.Store(bytes.NewReader(test.Payload(t, 512<<10)), "doomed.bin", ctx)
	require.NoError(t, err)

	rec, err := grid.FindOne(store.ByID(id), ctx)
	require.NoError(t, err)

	require.NoError(t, grid.Delete(store.ByID(id), ctx))

	_, err = grid.FindOne(store.ByID(id), ctx)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = grid.GetResource(rec, ctx)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
