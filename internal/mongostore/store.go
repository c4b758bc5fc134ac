// Package mongostore implements the record store on a MongoDB collection,
// one document per blob.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hoard/internal/models"
	"hoard/internal/store"
)

const connectTimeout = 10 * time.Second

type blobDocument struct {
	ID           string     `bson:"_id"`
	ContentType  string     `bson:"contentType"`
	Created      time.Time  `bson:"created"`
	LastModified time.Time  `bson:"lastModified"`
	LastViewed   *time.Time `bson:"lastViewed,omitempty"`
	Length       int64      `bson:"length"`
	Level        int        `bson:"level"`
	Tags         []string   `bson:"tags"`
	Paths        []string   `bson:"paths"`
	Dirs         []string   `bson:"dirs"`
	Bucket       string     `bson:"bucket"`
}

// Store is a store.RecordStore backed by one MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ store.RecordStore = (*Store)(nil)

// Connect dials uri, verifies the connection and ensures indexes.
func Connect(ctx context.Context, uri, database, collection string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{client: client, coll: client.Database(database).Collection(collection)}
	if err := s.ensureIndexes(dialCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "level", Value: 1}, {Key: "created", Value: 1}}},
		{Keys: bson.D{{Key: "level", Value: 1}, {Key: "bucket", Value: 1}}},
		{Keys: bson.D{{Key: "level", Value: 1}, {Key: "lastModified", Value: 1}}},
		{Keys: bson.D{{Key: "dirs", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}

// FindByKey returns the record with id, or nil when none exists.
func (s *Store) FindByKey(ctx context.Context, id string) (*models.BlobRecord, error) {
	var doc blobDocument
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record := fromDocument(doc)
	return &record, nil
}

// Insert stores a new record.
func (s *Store) Insert(ctx context.Context, record *models.BlobRecord) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	_, err := s.coll.InsertOne(ctx, toDocument(*record))
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrRecordExists
	}
	return err
}

// AddLocations adds paths and dirs to the record's sets.
func (s *Store) AddLocations(ctx context.Context, id string, paths, dirs []string) error {
	update := bson.D{{Key: "$addToSet", Value: bson.D{
		{Key: "paths", Value: bson.D{{Key: "$each", Value: nonNil(paths)}}},
		{Key: "dirs", Value: bson.D{{Key: "$each", Value: nonNil(dirs)}}},
	}}}
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrRecordNotFound
	}
	return nil
}

// UpdateMatching applies patch to all matching records and reports how many matched.
func (s *Store) UpdateMatching(ctx context.Context, filter store.Filter, patch store.Patch) (int64, error) {
	if patch.IsEmpty() {
		return 0, store.ErrEmptyPatch
	}
	res, err := s.coll.UpdateMany(ctx, filterDocument(filter), bson.D{{Key: "$set", Value: patchDocument(patch)}})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// CountMatching counts matching records.
func (s *Store) CountMatching(ctx context.Context, filter store.Filter) (int64, error) {
	return s.coll.CountDocuments(ctx, filterDocument(filter))
}

// ListMatching lists matching records. A non-positive limit lists all.
func (s *Store) ListMatching(ctx context.Context, filter store.Filter, sort store.Sort, limit int) ([]models.BlobRecord, error) {
	opts := options.Find().SetSort(sortDocument(sort))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, filterDocument(filter), opts)
	if err != nil {
		return nil, err
	}
	var docs []blobDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	records := make([]models.BlobRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromDocument(doc))
	}
	return records, nil
}

// DeleteOne removes one record. Missing records are not an error.
func (s *Store) DeleteOne(ctx context.Context, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	return err
}

// DeleteMatching removes all matching records.
func (s *Store) DeleteMatching(ctx context.Context, filter store.Filter) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, filterDocument(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func toDocument(r models.BlobRecord) blobDocument {
	lastModified := r.LastModifiedAt
	if lastModified.IsZero() {
		lastModified = r.CreatedAt
	}
	return blobDocument{
		ID:           r.ID,
		ContentType:  r.ContentType,
		Created:      r.CreatedAt.UTC(),
		LastModified: lastModified.UTC(),
		LastViewed:   r.LastViewedAt,
		Length:       r.Length,
		Level:        int(r.Level),
		Tags:         nonNil(r.Tags),
		Paths:        nonNil(r.Paths),
		Dirs:         nonNil(r.Dirs),
		Bucket:       r.Bucket,
	}
}

func fromDocument(d blobDocument) models.BlobRecord {
	return models.BlobRecord{
		ID:             d.ID,
		ContentType:    d.ContentType,
		CreatedAt:      d.Created.UTC(),
		LastModifiedAt: d.LastModified.UTC(),
		LastViewedAt:   d.LastViewed,
		Length:         d.Length,
		Level:          models.Level(d.Level),
		Tags:           d.Tags,
		Paths:          d.Paths,
		Dirs:           d.Dirs,
		Bucket:         d.Bucket,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
