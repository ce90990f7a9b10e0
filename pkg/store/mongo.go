package store

import (
	"context"
	"io"

	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/brianmcgee/mongofs/pkg/util"
)

var idAscending = bson.D{{Key: "_id", Value: 1}}

// MongoCatalog is a Catalog backed by a mongo collection.
type MongoCatalog struct {
	Coll *mongo.Collection
}

// EnsureIndexes creates the supporting filename/uploadDate index.
func (c *MongoCatalog) EnsureIndexes(ctx context.Context) error {
	_, err := c.Coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "filename", Value: 1}, {Key: "uploadDate", Value: 1}},
	})
	return errors.Annotate(err, "failed to create file record index")
}

func (c *MongoCatalog) Insert(rec *FileRecord, ctx context.Context) error {
	_, err := c.Coll.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return errors.WithType(errors.Annotatef(err, "file %s", rec.ID.Hex()), ErrDuplicateID)
	} else if err != nil {
		return errors.WithType(errors.Annotate(err, "failed to insert file record"), ErrIOFailure)
	}
	return nil
}

func (c *MongoCatalog) Find(f Filter, ctx context.Context) (util.Iterator[*FileRecord], error) {
	cur, err := c.Coll.Find(ctx, f.marshal(), options.Find().SetSort(idAscending))
	if err != nil {
		return nil, errors.WithType(errors.Annotate(err, "failed to query file records"), ErrIOFailure)
	}
	return &cursorIterator[FileRecord]{ctx: ctx, cur: cur}, nil
}

func (c *MongoCatalog) FindOne(f Filter, ctx context.Context) (*FileRecord, error) {
	// ties break towards the lowest id
	var rec FileRecord
	err := c.Coll.FindOne(ctx, f.marshal(), options.FindOne().SetSort(idAscending)).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, errors.WithType(errors.Annotate(err, "failed to query file record"), ErrIOFailure)
	}
	return &rec, nil
}

func (c *MongoCatalog) Delete(f Filter, ctx context.Context) (int64, error) {
	res, err := c.Coll.DeleteMany(ctx, f.marshal())
	if err != nil {
		return 0, errors.WithType(errors.Annotate(err, "failed to delete file records"), ErrIOFailure)
	}
	return res.DeletedCount, nil
}

// MongoChunks is a ChunkStore backed by a mongo collection.
type MongoChunks struct {
	Coll *mongo.Collection
}

// EnsureIndexes creates the unique (files_id, n) compound index that backs
// the chunk ordering and uniqueness invariants.
func (c *MongoChunks) EnsureIndexes(ctx context.Context) error {
	_, err := c.Coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "files_id", Value: 1}, {Key: "n", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errors.Annotate(err, "failed to create chunk index")
}

func (c *MongoChunks) Put(chunk *ChunkRecord, ctx context.Context) error {
	_, err := c.Coll.InsertOne(ctx, chunk)
	if err != nil {
		return errors.WithType(errors.Annotatef(err, "failed to insert chunk %d of file %s", chunk.N, chunk.FileID.Hex()), ErrIOFailure)
	}
	return nil
}

func (c *MongoChunks) Cursor(fileID FileID, ctx context.Context) (util.Iterator[*ChunkRecord], error) {
	filter := bson.D{{Key: "files_id", Value: fileID}}
	cur, err := c.Coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "n", Value: 1}}))
	if err != nil {
		return nil, errors.WithType(errors.Annotatef(err, "failed to query chunks of file %s", fileID.Hex()), ErrIOFailure)
	}
	return &cursorIterator[ChunkRecord]{ctx: ctx, cur: cur}, nil
}

func (c *MongoChunks) Stat(fileID FileID, ctx context.Context) (bool, error) {
	filter := bson.D{{Key: "files_id", Value: fileID}}
	count, err := c.Coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.WithType(errors.Annotatef(err, "failed to count chunks of file %s", fileID.Hex()), ErrIOFailure)
	}
	return count > 0, nil
}

func (c *MongoChunks) Delete(fileID FileID, ctx context.Context) (int64, error) {
	res, err := c.Coll.DeleteMany(ctx, bson.D{{Key: "files_id", Value: fileID}})
	if err != nil {
		return 0, errors.WithType(errors.Annotatef(err, "failed to delete chunks of file %s", fileID.Hex()), ErrIOFailure)
	}
	return res.DeletedCount, nil
}

func (c *MongoChunks) FileIDs(ctx context.Context) ([]FileID, error) {
	values, err := c.Coll.Distinct(ctx, "files_id", bson.D{})
	if err != nil {
		return nil, errors.WithType(errors.Annotate(err, "failed to list chunk file ids"), ErrIOFailure)
	}
	ids := make([]FileID, 0, len(values))
	for _, v := range values {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// cursorIterator adapts a mongo cursor into a lazy record sequence. Close
// releases the server side cursor.
type cursorIterator[T any] struct {
	ctx context.Context
	cur *mongo.Cursor
}

func (it *cursorIterator[T]) Next() (*T, error) {
	if it.cur.Next(it.ctx) {
		var v T
		if err := it.cur.Decode(&v); err != nil {
			return nil, errors.WithType(errors.Annotate(err, "failed to decode document"), ErrIOFailure)
		}
		return &v, nil
	}
	if err := it.cur.Err(); err != nil {
		return nil, errors.WithType(errors.Annotate(err, "cursor failed"), ErrIOFailure)
	}
	return nil, io.EOF
}

func (it *cursorIterator[T]) Close() error {
	return it.cur.Close(it.ctx)
}
