package util

import "io"

// Iterator is a lazy, finite sequence. Next returns io.EOF once the sequence
// is exhausted; Close releases any underlying resources and may be called
// before the sequence has been fully consumed.
type Iterator[T any] interface {
	Next() (T, error)
	Close() error
}

// Collect drains the iterator into a slice, closing it afterwards.
func Collect[T any](it Iterator[T]) ([]T, error) {
	defer func() {
		_ = it.Close()
	}()

	var items []T
	for {
		item, err := it.Next()
		if err == io.EOF {
			return items, nil
		} else if err != nil {
			return items, err
		}
		items = append(items, item)
	}
}
