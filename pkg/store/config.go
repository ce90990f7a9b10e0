package store

import (
	"github.com/inhies/go-bytesize"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	// DefaultChunkSize matches the GridFS default of 255 KiB.
	DefaultChunkSize = 255 * bytesize.KB

	DefaultPrefix = "fs"
)

// Config carries the explicit wiring for a Grid: the database handle, the
// collection name prefix and the default chunk size applied when a store
// call does not override it.
type Config struct {
	// Database is the handle all collections are resolved against. Required
	// when constructing a mongo backed grid with New.
	Database *mongo.Database

	// Prefix names the bucket: records live in "<prefix>.files" and chunks
	// in "<prefix>.chunks". Defaults to DefaultPrefix.
	Prefix string

	// ChunkSize is the default chunk size for stores. Defaults to
	// DefaultChunkSize.
	ChunkSize bytesize.ByteSize

	// Registerer receives the grid's metric collectors. Defaults to a fresh
	// private registry; pass prometheus.DefaultRegisterer to expose them.
	Registerer prometheus.Registerer
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Registerer == nil {
		c.Registerer = prometheus.NewRegistry()
	}
	return c
}

func (c Config) filesCollection() string {
	return c.Prefix + ".files"
}

func (c Config) chunksCollection() string {
	return c.Prefix + ".chunks"
}
