package store

import (
	"bytes"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Op is a filter predicate operator. The values double as the mongo query
// operators they translate to.
type Op string

const (
	OpEq  Op = "$eq"
	OpGt  Op = "$gt"
	OpGte Op = "$gte"
	OpLt  Op = "$lt"
	OpLte Op = "$lte"
)

// Cond is a single predicate over a dotted field path, e.g.
// {Path: "metadata.key", Op: OpEq, Value: "value"}.
type Cond struct {
	Path  string
	Op    Op
	Value any
}

// Filter is a conjunction of predicates over FileRecord fields. The zero
// value matches every record.
type Filter []Cond

// All matches every file record.
func All() Filter {
	return nil
}

func Eq(path string, value any) Filter {
	return Filter{{Path: path, Op: OpEq, Value: value}}
}

func Gt(path string, value any) Filter {
	return Filter{{Path: path, Op: OpGt, Value: value}}
}

func Gte(path string, value any) Filter {
	return Filter{{Path: path, Op: OpGte, Value: value}}
}

func Lt(path string, value any) Filter {
	return Filter{{Path: path, Op: OpLt, Value: value}}
}

func Lte(path string, value any) Filter {
	return Filter{{Path: path, Op: OpLte, Value: value}}
}

// ByID matches the record with the given file id.
func ByID(id FileID) Filter {
	return Eq("_id", id)
}

// ByFilename matches records stored under the given filename.
func ByFilename(name string) Filter {
	return Eq("filename", name)
}

// MetadataEq matches records whose user metadata document carries the given
// value under key. Nested keys use dotted paths, e.g. "owner.name".
func MetadataEq(key string, value any) Filter {
	return Eq("metadata."+key, value)
}

// And combines two filters into a single conjunction.
func (f Filter) And(other Filter) Filter {
	combined := make(Filter, 0, len(f)+len(other))
	combined = append(combined, f...)
	return append(combined, other...)
}

// marshal translates the filter into a mongo query document.
func (f Filter) marshal() bson.D {
	if len(f) == 0 {
		return bson.D{}
	}
	query := make(bson.D, 0, len(f))
	for _, c := range f {
		query = append(query, bson.E{Key: c.Path, Value: bson.D{{Key: string(c.Op), Value: c.Value}}})
	}
	return query
}

// Matches evaluates the filter against a record in-process. Backends without
// a query engine of their own use this.
func (f Filter) Matches(rec *FileRecord) bool {
	for _, c := range f {
		value, ok := lookupPath(rec, c.Path)
		if !ok || !compare(c.Op, value, c.Value) {
			return false
		}
	}
	return true
}

func lookupPath(rec *FileRecord, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	if head == "metadata" {
		if !nested {
			return rec.Metadata, rec.Metadata != nil
		}
		return lookupDoc(rec.Metadata, rest)
	}
	if nested {
		return nil, false
	}
	switch head {
	case "_id":
		return rec.ID, true
	case "filename":
		return rec.Filename, true
	case "contentType":
		return rec.ContentType, true
	case "length":
		return rec.Length, true
	case "chunkSize":
		return rec.ChunkSize, true
	case "uploadDate":
		return rec.UploadDate, true
	case "digest":
		return rec.Digest, true
	}
	return nil, false
}

func lookupDoc(doc map[string]any, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	value, ok := doc[head]
	if !ok {
		return nil, false
	}
	if !nested {
		return value, true
	}
	switch sub := value.(type) {
	case map[string]any:
		return lookupDoc(sub, rest)
	case bson.M:
		return lookupDoc(sub, rest)
	}
	return nil, false
}

func compare(op Op, a any, b any) bool {
	if ord, comparable := ordering(a, b); comparable {
		switch op {
		case OpEq:
			return ord == 0
		case OpGt:
			return ord > 0
		case OpGte:
			return ord >= 0
		case OpLt:
			return ord < 0
		case OpLte:
			return ord <= 0
		}
		return false
	}
	// equality falls back to a deep comparison for types with no ordering
	return op == OpEq && reflect.DeepEqual(a, b)
}

// ordering reports a three-way comparison between a and b where one exists:
// numbers compare numerically across integer and float widths, strings
// lexically, timestamps chronologically and file ids bytewise.
func ordering(a any, b any) (int, bool) {
	if x, ok := numeric(a); ok {
		y, ok := numeric(b)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}

	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case x.Before(y):
			return -1, true
		case x.After(y):
			return 1, true
		}
		return 0, true
	case primitive.ObjectID:
		y, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		return bytes.Compare(x[:], y[:]), true
	}

	return 0, false
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
