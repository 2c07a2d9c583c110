package etl

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// ── Destination ────────────────────────────────────────────
// A Destination writes a transformed table into a target system.
// The production destination is a MongoDB database.

// Target names where a table is written.
type Target struct {
	Collection string   `json:"collection"`
	UniqueKeys []string `json:"uniqueKeys,omitempty"`
}

// Rejection groups documents the store refused with the same error code.
type Rejection struct {
	Code   int    `json:"code"`
	Count  int    `json:"count"`
	Sample string `json:"sample"`
}

// WriteResult summarizes one Write call.
type WriteResult struct {
	Attempted  int         `json:"attempted"`
	Inserted   int         `json:"inserted"`
	Rejected   int         `json:"rejected"`
	Rejections []Rejection `json:"rejections,omitempty"`
}

// Destination writes tables to a target system.
type Destination interface {
	Write(ctx context.Context, target Target, t *Table) (*WriteResult, error)
}

// Collection is the subset of *mongo.Collection used for loading.
type Collection interface {
	InsertMany(ctx context.Context, documents any, opts ...options.Lister[options.InsertManyOptions]) (*mongo.InsertManyResult, error)
}

// Database resolves collections and manages their indexes.
type Database interface {
	Collection(name string) Collection
	EnsureUniqueIndex(ctx context.Context, collection string, keys []string) error
}

// ── MongoDB Destination ────────────────────────────────────

// MongoDestination loads tables with a single unordered bulk insert.
// Partial failures reported by the server are logged and absorbed so
// that re-running a load over already-present documents succeeds.
type MongoDestination struct {
	DB     Database
	Logger *zap.Logger
}

func (d *MongoDestination) Write(ctx context.Context, target Target, t *Table) (*WriteResult, error) {
	logger := d.logger().With(zap.String("collection", target.Collection))
	docs := ToDocuments(t)
	result := &WriteResult{Attempted: len(docs)}
	if len(docs) == 0 {
		logger.Info("no documents to load")
		return result, nil
	}

	if len(target.UniqueKeys) > 0 {
		if err := d.DB.EnsureUniqueIndex(ctx, target.Collection, target.UniqueKeys); err != nil {
			return result, errors.Wrap(err, "ensure unique index")
		}
	}

	coll := d.DB.Collection(target.Collection)
	res, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		var bwe mongo.BulkWriteException
		if !errors.As(err, &bwe) {
			return result, errors.Wrap(err, "insert many")
		}
		result.Rejected = len(bwe.WriteErrors)
		result.Inserted = len(docs) - result.Rejected
		result.Rejections = summarizeWriteErrors(bwe.WriteErrors)

		fields := []zap.Field{
			zap.Int("attempted", result.Attempted),
			zap.Int("rejected", result.Rejected),
			zap.Any("rejections", result.Rejections),
		}
		if bwe.WriteConcernError != nil {
			fields = append(fields, zap.String("write_concern", bwe.WriteConcernError.Message))
		}
		logger.Warn("bulk insert partially rejected", fields...)
		return result, nil
	}

	if res != nil {
		result.Inserted = len(res.InsertedIDs)
	} else {
		result.Inserted = len(docs)
	}
	logger.Info("documents loaded", zap.Int("inserted", result.Inserted))
	return result, nil
}

func (d *MongoDestination) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// summarizeWriteErrors groups write errors by code, ordered by code.
func summarizeWriteErrors(errs []mongo.BulkWriteError) []Rejection {
	byCode := make(map[int]*Rejection)
	for _, we := range errs {
		r, ok := byCode[we.Code]
		if !ok {
			r = &Rejection{Code: we.Code, Sample: we.Message}
			byCode[we.Code] = r
		}
		r.Count++
	}
	out := make([]Rejection, 0, len(byCode))
	for _, r := range byCode {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ToDocuments converts every row into an ordered BSON document.
// Fields follow the table's column order; nil values become BSON null.
func ToDocuments(t *Table) []any {
	if t == nil {
		return nil
	}
	docs := make([]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		doc := make(bson.D, 0, len(t.Columns))
		for _, c := range t.Columns {
			doc = append(doc, bson.E{Key: c, Value: r.Data[c]})
		}
		docs = append(docs, doc)
	}
	return docs
}

// ── Discard Destination ────────────────────────────────────

// DiscardDestination counts documents without writing them.
// Used for dry runs.
type DiscardDestination struct {
	Logger *zap.Logger
}

func (d *DiscardDestination) Write(_ context.Context, target Target, t *Table) (*WriteResult, error) {
	n := t.Len()
	if d.Logger != nil {
		d.Logger.Info("dry run: skipping load",
			zap.String("collection", target.Collection),
			zap.Int("documents", n))
	}
	return &WriteResult{Attempted: n}, nil
}
