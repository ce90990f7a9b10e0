package store

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/brianmcgee/mongofs/pkg/util"
)

const (
	// ErrIOFailure indicates a transport or storage error during a chunk or
	// file record read/write. Transient failures are not retried here.
	ErrIOFailure = errors.ConstError("io failure")
	// ErrNotFound indicates the requested file has no record or, for reads,
	// no chunks.
	ErrNotFound = errors.ConstError("file not found")
	// ErrCorruptStream indicates a sequence-number gap or a short chunk
	// stream was detected while reading a file's chunks.
	ErrCorruptStream = errors.ConstError("corrupt chunk stream")
	// ErrDuplicateID indicates a file record insert collided with an
	// existing id.
	ErrDuplicateID = errors.ConstError("duplicate file id")
	// ErrOrphanChunks indicates chunks were committed but the file record
	// insert failed, leaving the chunks unreferenced.
	ErrOrphanChunks = errors.ConstError("orphaned chunks")
	// ErrPartialDelete indicates one half of a chunk/record delete pair
	// failed, leaving the file in an inconsistent state.
	ErrPartialDelete = errors.ConstError("partial delete")
)

// FileID uniquely identifies a stored file, tying its record to its chunks.
type FileID = primitive.ObjectID

type Digest [32]byte

func (d Digest) String() string {
	return base64.StdEncoding.EncodeToString(d[:])
}

// FileRecord is the metadata document stored once per file. It is written
// only after every chunk of the file has been committed and is never mutated
// afterwards.
type FileRecord struct {
	ID          FileID    `bson:"_id"`
	Filename    string    `bson:"filename"`
	ContentType string    `bson:"contentType,omitempty"`
	Length      int64     `bson:"length"`
	ChunkSize   int32     `bson:"chunkSize"`
	UploadDate  time.Time `bson:"uploadDate"`
	Digest      string    `bson:"digest,omitempty"`
	Metadata    bson.M    `bson:"metadata,omitempty"`
}

// NumChunks returns the number of chunk records the file should have.
func (r *FileRecord) NumChunks() int64 {
	if r.ChunkSize <= 0 {
		return 0
	}
	return (r.Length + int64(r.ChunkSize) - 1) / int64(r.ChunkSize)
}

// ChunkRecord holds one fixed-size slice of a file's content, keyed by
// (files_id, n). Every chunk except the last carries exactly the file's
// chunk size in bytes.
type ChunkRecord struct {
	FileID FileID `bson:"files_id"`
	N      int32  `bson:"n"`
	Data   []byte `bson:"data"`
}

// Catalog stores one FileRecord per file and answers filter queries over
// record fields, including paths inside the user metadata document.
type Catalog interface {
	Insert(rec *FileRecord, ctx context.Context) error
	Find(f Filter, ctx context.Context) (util.Iterator[*FileRecord], error)
	FindOne(f Filter, ctx context.Context) (*FileRecord, error)
	Delete(f Filter, ctx context.Context) (int64, error)
}

// ChunkStore persists chunk records and serves them back as an ordered
// cursor per file.
type ChunkStore interface {
	Put(chunk *ChunkRecord, ctx context.Context) error
	// Cursor returns the file's chunks ordered by ascending sequence number.
	Cursor(fileID FileID, ctx context.Context) (util.Iterator[*ChunkRecord], error)
	Stat(fileID FileID, ctx context.Context) (bool, error)
	Delete(fileID FileID, ctx context.Context) (int64, error)
	// FileIDs returns the distinct file ids that currently own chunks.
	FileIDs(ctx context.Context) ([]FileID, error)
}
