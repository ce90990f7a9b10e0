package store

import (
	"context"
	"io"

	"github.com/juju/errors"
	"lukechampine.com/blake3"
)

// ChunkWriter re-chunks a byte stream into fixed-size chunk records. Input
// reads may be sliced arbitrarily by the producer; every persisted chunk
// except the last carries exactly chunkSize bytes.
type ChunkWriter struct {
	chunks ChunkStore
}

// Write consumes the stream, persisting chunks for fileID in increasing
// sequence order, and returns the total length together with a blake3 digest
// of the content. The first failed chunk write aborts the stream; chunks
// already committed for fileID are left behind for the caller to reap.
func (w *ChunkWriter) Write(fileID FileID, reader io.Reader, chunkSize int, ctx context.Context) (int64, Digest, error) {
	if chunkSize <= 0 {
		return 0, Digest{}, errors.Errorf("invalid chunk size: %d", chunkSize)
	}

	hasher := blake3.New(32, nil)
	tee := io.TeeReader(reader, hasher)

	var length int64
	var seq int32
	buf := make([]byte, chunkSize)

	for {
		n, err := io.ReadFull(tee, buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])

			chunk := ChunkRecord{FileID: fileID, N: seq, Data: data}
			if perr := w.chunks.Put(&chunk, ctx); perr != nil {
				return 0, Digest{}, errors.Annotatef(perr, "failed to write chunk %d", seq)
			}

			length += int64(n)
			seq++
		}

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		} else if err != nil {
			return 0, Digest{}, errors.WithType(errors.Annotate(err, "failed to read next chunk"), ErrIOFailure)
		}
	}

	return length, Digest(hasher.Sum(nil)), nil
}
