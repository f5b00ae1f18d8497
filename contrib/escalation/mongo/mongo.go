// Package mongo persists escalation records in MongoDB so human teams can
// query their backlog outside the triage process.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/triagehq/triage/errors"
	"github.com/triagehq/triage/ticket"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config holds MongoDB connection configuration.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// DefaultConfig returns a local-MongoDB configuration.
func DefaultConfig() *Config {
	return &Config{
		URI:        "mongodb://localhost:27017",
		Database:   "triage",
		Collection: "escalations",
	}
}

// Store implements pipeline.EscalationStore on MongoDB. Records are
// insert-only; there is no update path.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// New connects to MongoDB and prepares the escalations collection.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(config.Database).Collection(config.Collection)

	store := &Store{client: client, collection: collection}
	if err := store.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return store, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "ticket_id", Value: 1}}},
		{Keys: bson.D{{Key: "team", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	_, err := s.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Save inserts one escalation record.
func (s *Store) Save(ctx context.Context, record *ticket.EscalationRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("escalation record cannot be nil")
	}
	if _, err := s.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to save escalation: %w", err)
	}
	return nil
}

// ListByTeam returns a team's escalations, newest first.
func (s *Store) ListByTeam(ctx context.Context, team string) ([]*ticket.EscalationRecord, error) {
	filter := bson.M{}
	if team != "" {
		filter["team"] = team
	}

	cursor, err := s.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*ticket.EscalationRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode escalations: %w", err)
	}
	return records, nil
}

// Get retrieves one escalation record by ID.
func (s *Store) Get(ctx context.Context, id string) (*ticket.EscalationRecord, error) {
	var record ticket.EscalationRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("escalation %s: %w", id, errors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get escalation: %w", err)
	}
	return &record, nil
}

// Count returns the number of stored escalations.
func (s *Store) Count(ctx context.Context) (int, error) {
	count, err := s.collection.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count escalations: %w", err)
	}
	return int(count), nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.Disconnect(ctx)
}

// Ping checks the MongoDB connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
