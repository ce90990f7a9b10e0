package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFilter_Matches(t *testing.T) {
	uploaded := time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC)
	rec := &FileRecord{
		ID:          primitive.NewObjectID(),
		Filename:    "foo.xml",
		ContentType: "binary/octet-stream",
		Length:      11,
		ChunkSize:   16,
		UploadDate:  uploaded,
		Metadata: bson.M{
			"key":     "value",
			"version": "1.0",
			"owner":   bson.M{"name": "mark"},
			"weight":  int64(42),
		},
	}

	for _, tc := range []struct {
		name    string
		filter  Filter
		matches bool
	}{
		{"all", All(), true},
		{"id", ByID(rec.ID), true},
		{"other id", ByID(primitive.NewObjectID()), false},
		{"filename", ByFilename("foo.xml"), true},
		{"wrong filename", ByFilename("bar.xml"), false},
		{"metadata key", MetadataEq("key", "value"), true},
		{"metadata version", MetadataEq("version", "1.0"), true},
		{"metadata nested path", MetadataEq("owner.name", "mark"), true},
		{"metadata missing key", MetadataEq("missing", "value"), false},
		{"metadata wrong value", MetadataEq("key", "other"), false},
		{"length range", Gte("length", 10).And(Lt("length", 20)), true},
		{"length range miss", Gt("length", 11), false},
		{"numeric widths mix", Gt("metadata.weight", 41.5), true},
		{"upload date range", Gte("uploadDate", uploaded.Add(-time.Hour)).And(Lte("uploadDate", uploaded)), true},
		{"upload date before", Lt("uploadDate", uploaded), false},
		{"conjunction", ByFilename("foo.xml").And(MetadataEq("key", "value")), true},
		{"conjunction miss", ByFilename("foo.xml").And(MetadataEq("key", "other")), false},
		{"unknown field", Eq("nope", 1), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.matches, tc.filter.Matches(rec))
		})
	}
}

func TestFilter_Marshal(t *testing.T) {
	id := primitive.NewObjectID()
	f := ByID(id).And(Gte("length", 10))

	expected := bson.D{
		{Key: "_id", Value: bson.D{{Key: "$eq", Value: id}}},
		{Key: "length", Value: bson.D{{Key: "$gte", Value: 10}}},
	}
	assert.Equal(t, expected, f.marshal())

	assert.Equal(t, bson.D{}, All().marshal())
}
