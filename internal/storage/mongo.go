package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
)

// Collection names shared with the ingestion side.
const (
	DiningCollection       = "dining"
	AnnouncementCollection = "announcements"
)

// MongoStore is the MongoDB backend. Records live in the "dining" and
// "announcements" collections with unique indexes on date and url.
type MongoStore struct {
	client        *mongo.Client
	dining        *mongo.Collection
	announcements *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongo connects to uri, verifies the connection and ensures indexes.
func NewMongo(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetConnectTimeout(config.MongoConnect).
		SetServerSelectionTimeout(config.MongoConnect))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.MongoConnect)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:        client,
		dining:        db.Collection(DiningCollection),
		announcements: db.Collection(AnnouncementCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.dining.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create dining index: %w", err)
	}
	if _, err := s.announcements.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("create announcement indexes: %w", err)
	}
	return nil
}

// Driver implements Store.
func (s *MongoStore) Driver() string { return config.DriverMongo }

// Ping checks the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), config.MongoConnect)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// UpsertDining implements DiningRepository.
func (s *MongoStore) UpsertDining(ctx context.Context, rec *DiningRecord) error {
	if rec.Date == "" {
		return errors.New("upsert dining: empty date")
	}
	now := time.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "items", Value: nonNil(rec.Items)},
			{Key: "location", Value: rec.Location},
			{Key: "source", Value: rec.Source},
			{Key: "updated_at", Value: now},
		}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "created_at", Value: createdAt}}},
	}
	_, err := s.dining.UpdateOne(ctx, bson.D{{Key: "date", Value: rec.Date}}, update,
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert dining %s: %w", rec.Date, err)
	}
	return nil
}

// FindDiningByDate implements DiningRepository.
func (s *MongoStore) FindDiningByDate(ctx context.Context, date string) (*DiningRecord, error) {
	var rec DiningRecord
	err := s.dining.FindOne(ctx, bson.D{{Key: "date", Value: date}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find dining %s: %w", date, err)
	}
	return &rec, nil
}

// ListDiningSince implements DiningRepository.
func (s *MongoStore) ListDiningSince(ctx context.Context, date string) ([]DiningRecord, error) {
	cur, err := s.dining.Find(ctx,
		bson.D{{Key: "date", Value: bson.D{{Key: "$gte", Value: date}}}},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list dining: %w", err)
	}
	var out []DiningRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode dining: %w", err)
	}
	return out, nil
}

// CountDining implements DiningRepository.
func (s *MongoStore) CountDining(ctx context.Context) (int, error) {
	n, err := s.dining.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count dining: %w", err)
	}
	return int(n), nil
}

// UpsertAnnouncement implements AnnouncementRepository.
func (s *MongoStore) UpsertAnnouncement(ctx context.Context, rec *AnnouncementRecord) error {
	if rec.URL == "" {
		return errors.New("upsert announcement: empty url")
	}
	source := rec.Source
	if source == "" {
		source = SourceWebsite
	}
	now := time.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	set := bson.D{
		{Key: "title", Value: rec.Title},
		{Key: "content", Value: rec.Content},
		{Key: "source", Value: source},
		{Key: "updated_at", Value: now},
	}
	if rec.Summary != "" {
		set = append(set, bson.E{Key: "summary", Value: rec.Summary})
	}
	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$setOnInsert", Value: bson.D{{Key: "created_at", Value: createdAt}}},
	}
	_, err := s.announcements.UpdateOne(ctx, bson.D{{Key: "url", Value: rec.URL}}, update,
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert announcement %s: %w", rec.URL, err)
	}
	return nil
}

// FindAnnouncementByURL implements AnnouncementRepository.
func (s *MongoStore) FindAnnouncementByURL(ctx context.Context, url string) (*AnnouncementRecord, error) {
	var rec AnnouncementRecord
	err := s.announcements.FindOne(ctx, bson.D{{Key: "url", Value: url}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find announcement: %w", err)
	}
	return &rec, nil
}

// FindRecentAnnouncements implements AnnouncementRepository.
func (s *MongoStore) FindRecentAnnouncements(ctx context.Context, limit int) ([]AnnouncementRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	cur, err := s.announcements.Find(ctx, bson.D{},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("find recent announcements: %w", err)
	}
	out := make([]AnnouncementRecord, 0, limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode announcements: %w", err)
	}
	return out, nil
}

// CountAnnouncements implements AnnouncementRepository.
func (s *MongoStore) CountAnnouncements(ctx context.Context) (int, error) {
	n, err := s.announcements.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count announcements: %w", err)
	}
	return int(n), nil
}
