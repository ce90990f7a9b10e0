package store

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/inhies/go-bytesize"
	"github.com/juju/errors"
	"github.com/nats-io/nuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/brianmcgee/mongofs/pkg/util"
)

// deleteConcurrency bounds how many matched files a Delete call removes in
// parallel. Chunks of a single file are always removed by one goroutine.
const deleteConcurrency = 4

// Grid composes the chunk writer, chunk reader and file catalog into a
// GridFS-style store. A file record is only ever written after all of its
// chunks have been committed; the inverse orderings are surfaced as distinct
// error kinds rather than hidden (see ErrOrphanChunks, ErrPartialDelete).
type Grid struct {
	catalog Catalog
	chunks  ChunkStore
	writer  *ChunkWriter
	conf    Config
	metrics *metrics
}

// New wires a Grid against the configured mongo database and ensures the
// backing indexes exist.
func New(conf Config, ctx context.Context) (*Grid, error) {
	conf = conf.withDefaults()
	if conf.Database == nil {
		return nil, errors.New("store: a database handle is required")
	}

	catalog := &MongoCatalog{Coll: conf.Database.Collection(conf.filesCollection())}
	if err := catalog.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	chunks := &MongoChunks{Coll: conf.Database.Collection(conf.chunksCollection())}
	if err := chunks.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	return NewWith(catalog, chunks, conf), nil
}

// NewWith wires a Grid against explicit backends. Useful for the memory
// backend and for tests.
func NewWith(catalog Catalog, chunks ChunkStore, conf Config) *Grid {
	conf = conf.withDefaults()
	return &Grid{
		catalog: catalog,
		chunks:  chunks,
		writer:  &ChunkWriter{chunks: chunks},
		conf:    conf,
		metrics: newMetrics(conf.Registerer),
	}
}

type storeOptions struct {
	contentType string
	metadata    bson.M
	chunkSize   bytesize.ByteSize
}

type StoreOption func(*storeOptions)

func WithContentType(contentType string) StoreOption {
	return func(o *storeOptions) {
		o.contentType = contentType
	}
}

// WithMetadata attaches an arbitrary user metadata document to the file
// record. The document is opaque to the store but queryable via
// MetadataEq and dotted "metadata.*" filter paths.
func WithMetadata(metadata bson.M) StoreOption {
	return func(o *storeOptions) {
		o.metadata = metadata
	}
}

// WithChunkSize overrides the configured chunk size for a single store call.
func WithChunkSize(size bytesize.ByteSize) StoreOption {
	return func(o *storeOptions) {
		o.chunkSize = size
	}
}

// Store consumes the stream and persists it under a freshly generated file
// id, writing the file record only once every chunk has been committed. If
// the record insert fails after the chunks were committed the error has type
// ErrOrphanChunks and the chunks are left for SweepOrphans.
func (g *Grid) Store(reader io.Reader, filename string, ctx context.Context, opts ...StoreOption) (id FileID, err error) {
	defer func() {
		g.metrics.op("store", err)
	}()

	o := storeOptions{chunkSize: g.conf.ChunkSize}
	for _, opt := range opts {
		opt(&o)
	}

	id = primitive.NewObjectID()
	upload := nuid.Next()
	log.Debug("storing file", "upload", upload, "id", id.Hex(), "filename", filename, "chunkSize", o.chunkSize)

	length, digest, err := g.writer.Write(id, reader, int(o.chunkSize), ctx)
	if err != nil {
		// best effort reap of any chunks committed before the failure
		if _, derr := g.chunks.Delete(id, ctx); derr != nil {
			g.metrics.incidents.WithLabelValues("orphan_chunks").Inc()
			log.Error("failed to reap chunks of aborted upload", "upload", upload, "id", id.Hex(), "error", derr)
		}
		return primitive.NilObjectID, err
	}

	rec := FileRecord{
		ID:          id,
		Filename:    filename,
		ContentType: o.contentType,
		Length:      length,
		ChunkSize:   int32(o.chunkSize),
		UploadDate:  time.Now().UTC().Truncate(time.Millisecond),
		Digest:      digest.String(),
		Metadata:    o.metadata,
	}

	if err = g.catalog.Insert(&rec, ctx); err != nil {
		g.metrics.incidents.WithLabelValues("orphan_chunks").Inc()
		log.Error("file record insert failed after chunks were committed", "upload", upload, "id", id.Hex(), "error", err)
		err = errors.WithType(errors.Annotatef(err, "chunks committed for file %s without a record", id.Hex()), ErrOrphanChunks)
		return primitive.NilObjectID, err
	}

	g.metrics.storedBytes.Observe(float64(length))
	log.Debug("store complete", "upload", upload, "id", id.Hex(), "length", length, "chunks", rec.NumChunks())

	return id, nil
}

// Find returns a lazy sequence of the file records matching the filter,
// ordered by ascending id. The sequence is not restartable.
func (g *Grid) Find(f Filter, ctx context.Context) (util.Iterator[*FileRecord], error) {
	it, err := g.catalog.Find(f, ctx)
	g.metrics.op("find", err)
	return it, err
}

// FindOne returns the matching file record with the lowest id, or
// ErrNotFound when nothing matches.
func (g *Grid) FindOne(f Filter, ctx context.Context) (*FileRecord, error) {
	rec, err := g.catalog.FindOne(f, ctx)
	g.metrics.op("findOne", err)
	return rec, err
}

// GetResource wraps the record into a readable resource. It fails with
// ErrNotFound if the record's chunks are absent, which detects the
// orphan-metadata condition before the caller starts streaming.
func (g *Grid) GetResource(rec *FileRecord, ctx context.Context) (*Resource, error) {
	if rec.Length > 0 {
		ok, err := g.chunks.Stat(rec.ID, ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			g.metrics.incidents.WithLabelValues("orphan_record").Inc()
			return nil, errors.WithType(errors.Errorf("no chunks for file %s", rec.ID.Hex()), ErrNotFound)
		}
	}
	return &Resource{Record: rec, grid: g}, nil
}

// Delete removes the chunks and then the record of every matching file.
// Distinct files are removed concurrently; a half-completed removal surfaces
// as ErrPartialDelete naming the affected file.
func (g *Grid) Delete(f Filter, ctx context.Context) (err error) {
	defer func() {
		g.metrics.op("delete", err)
	}()

	it, err := g.catalog.Find(f, ctx)
	if err != nil {
		return err
	}
	recs, err := util.Collect(it)
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(deleteConcurrency)

	for _, rec := range recs {
		rec := rec
		eg.Go(func() error {
			return g.deleteOne(rec.ID, ctx)
		})
	}

	return eg.Wait()
}

func (g *Grid) deleteOne(id FileID, ctx context.Context) error {
	if _, err := g.chunks.Delete(id, ctx); err != nil {
		g.metrics.incidents.WithLabelValues("partial_delete").Inc()
		return errors.WithType(errors.Annotatef(err, "failed to delete chunks of file %s", id.Hex()), ErrPartialDelete)
	}
	if _, err := g.catalog.Delete(ByID(id), ctx); err != nil {
		g.metrics.incidents.WithLabelValues("partial_delete").Inc()
		return errors.WithType(errors.Annotatef(err, "chunks deleted for file %s but the record remains", id.Hex()), ErrPartialDelete)
	}
	log.Debug("deleted file", "id", id.Hex())
	return nil
}

// SweepOrphans removes chunk sets that no file record references, the repair
// counterpart to ErrOrphanChunks. Returns the number of files swept. Never
// runs implicitly.
func (g *Grid) SweepOrphans(ctx context.Context) (int, error) {
	ids, err := g.chunks.FileIDs(ctx)
	if err != nil {
		return 0, err
	}

	var swept int
	for _, id := range ids {
		_, err := g.catalog.FindOne(ByID(id), ctx)
		if err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return swept, err
		}

		removed, err := g.chunks.Delete(id, ctx)
		if err != nil {
			return swept, errors.Annotatef(err, "failed to sweep chunks of file %s", id.Hex())
		}

		log.Info("swept orphaned chunks", "id", id.Hex(), "chunks", removed)
		swept++
	}

	return swept, nil
}

// Resource couples a file record with access to its content stream.
type Resource struct {
	Record *FileRecord

	grid *Grid
}

// Open returns the file's content as a lazy byte stream. Each call issues a
// fresh read; a partially consumed stream must be closed to release its
// cursor.
func (r *Resource) Open(ctx context.Context) io.ReadCloser {
	r.grid.metrics.op("read", nil)
	return newChunkReader(r.grid.chunks, r.Record, ctx)
}
