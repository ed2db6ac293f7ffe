package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"keyserve/internal/license"
)

const defaultCollection = "licenses"

// defaultOpTimeout caps store round-trips when the caller's context carries
// no deadline of its own.
const defaultOpTimeout = 5 * time.Second

// validCollectionName matches safe MongoDB collection names.
var validCollectionName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// MongoOption configures a MongoStore.
type MongoOption func(*MongoStore)

// WithCollectionName sets the collection name. Default: "licenses".
func WithCollectionName(name string) MongoOption {
	return func(s *MongoStore) {
		s.collectionName = name
	}
}

// WithOpTimeout sets the per-operation fallback timeout.
func WithOpTimeout(d time.Duration) MongoOption {
	return func(s *MongoStore) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// MongoStore implements Store on a MongoDB collection, one document per
// license key (_id = key). Conditional updates are revision-guarded
// ReplaceOne calls, which MongoDB applies atomically per document.
type MongoStore struct {
	collection     *mongo.Collection
	collectionName string
	opTimeout      time.Duration
}

// NewMongoStore creates a MongoDB-backed record store. The key is the
// document _id, so uniqueness comes for free; an index on activated_at
// supports operator queries over unbound inventory.
func NewMongoStore(ctx context.Context, db *mongo.Database, opts ...MongoOption) (*MongoStore, error) {
	s := &MongoStore{
		collectionName: defaultCollection,
		opTimeout:      defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !validCollectionName.MatchString(s.collectionName) {
		return nil, fmt.Errorf("invalid collection name %q: must match [a-zA-Z_][a-zA-Z0-9_]*", s.collectionName)
	}
	s.collection = db.Collection(s.collectionName)

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "activated_at", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
		},
	}
	_, err := s.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// opContext attaches the fallback timeout when the caller set no deadline.
func (s *MongoStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *MongoStore) Get(ctx context.Context, key string) (*license.Record, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var rec license.Record
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, transportError("get record", err)
	}
	return &rec, nil
}

func (s *MongoStore) Create(ctx context.Context, rec *license.Record) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rec.Revision = 1
	_, err := s.collection.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return transportError("create record", err)
	}
	return nil
}

func (s *MongoStore) UpdateIf(ctx context.Context, rec *license.Record, expectedRevision int64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	next := *rec
	next.Revision = expectedRevision + 1

	filter := bson.M{"_id": rec.Key, "revision": expectedRevision}
	result, err := s.collection.ReplaceOne(ctx, filter, &next)
	if err != nil {
		return transportError("update record", err)
	}
	if result.MatchedCount == 0 {
		// Either a concurrent writer bumped the revision or the record is
		// gone. Distinguish with a second read so callers can react.
		count, err := s.collection.CountDocuments(ctx, bson.M{"_id": rec.Key})
		if err != nil {
			return transportError("update record", err)
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	rec.Revision = next.Revision
	return nil
}

func (s *MongoStore) BumpCheckCount(ctx context.Context, key string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	// Deliberately not revision-guarded: the counter is diagnostic only and
	// must never contend with activation writes.
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"check_count": 1}},
	)
	if err != nil {
		return transportError("bump check count", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]license.Record, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, transportError("list records", err)
	}
	var recs []license.Record
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, transportError("decode records", err)
	}
	return recs, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.collection.Database().Client().Ping(ctx, readpref.Primary()); err != nil {
		return transportError("ping", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.collection.Database().Client().Disconnect(ctx)
}

// transportError classifies driver failures as ErrUnavailable so callers
// can tell transient store trouble from business rejections.
func transportError(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
