package store

import (
	"context"
	"io"

	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"
)

// chunkReader reconstitutes a file's content from its ordered chunk records.
// A producer goroutine walks the backing cursor, verifying sequence-number
// continuity, and hands chunk payloads over a small buffered channel so the
// next chunk is fetched while the consumer drains the current one.
type chunkReader struct {
	rec    *FileRecord
	chunks ChunkStore

	eg      *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	buffers chan []byte

	buf  []byte
	read int64
}

func newChunkReader(chunks ChunkStore, rec *FileRecord, ctx context.Context) io.ReadCloser {
	ctx, cancel := context.WithCancel(ctx)
	return &chunkReader{
		rec:    rec,
		chunks: chunks,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (r *chunkReader) Read(p []byte) (n int, err error) {
	if r.eg == nil {
		var ctx context.Context
		r.eg, ctx = errgroup.WithContext(r.ctx)

		r.buffers = make(chan []byte, 2)

		r.eg.Go(func() error {
			// close channel on return
			defer close(r.buffers)
			return r.produce(ctx)
		})
	}

	for {
		if len(r.buf) == 0 {
			var ok bool
			r.buf, ok = <-r.buffers
			if !ok {
				// channel has been closed
				err = r.eg.Wait()
				if err == nil && r.read != r.rec.Length {
					err = errors.WithType(
						errors.Errorf("file %s ended after %d of %d bytes", r.rec.ID.Hex(), r.read, r.rec.Length),
						ErrCorruptStream,
					)
				}
				if err == nil {
					err = io.EOF
				}
				return
			}
			continue
		}

		n = copy(p, r.buf)
		r.buf = r.buf[n:]
		r.read += int64(n)
		return
	}
}

func (r *chunkReader) produce(ctx context.Context) error {
	cur, err := r.chunks.Cursor(r.rec.ID, ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = cur.Close()
	}()

	var next int32
	for {
		chunk, err := cur.Next()
		if err == io.EOF {
			if next == 0 && r.rec.Length > 0 {
				return errors.WithType(errors.Errorf("no chunks for file %s", r.rec.ID.Hex()), ErrNotFound)
			}
			return nil
		} else if err != nil {
			return err
		}

		if chunk.N != next {
			return errors.WithType(
				errors.Errorf("expected chunk %d of file %s, found %d", next, r.rec.ID.Hex(), chunk.N),
				ErrCorruptStream,
			)
		}
		next++

		select {
		case r.buffers <- chunk.Data:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close releases the underlying cursor promptly, even when the stream has
// only been partially consumed.
func (r *chunkReader) Close() error {
	r.cancel()
	if r.eg != nil {
		// unblock the producer so it can observe cancellation and close the cursor
		for range r.buffers {
		}
		_ = r.eg.Wait()
	}
	return nil
}
