package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	dbName   string
}

// Collection names
const (
	// Elements holds the read-only BIM element corpus supplied upstream.
	CollectionElements = "elements"

	// Suggestions is the authoritative, audit-grade record of every
	// classification suggestion and its review history. The Redis cache
	// never substitutes for it.
	CollectionSuggestions = "suggestions"
)

// NewMongoDB creates a new MongoDB connection with connection pooling
func NewMongoDB(uri string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Configure client options with connection pooling
	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := extractDBName(uri)
	if dbName == "" {
		dbName = "bimsense"
	}

	db := &MongoDB{
		client:   client,
		database: client.Database(dbName),
		dbName:   dbName,
	}

	log.Printf("✅ Connected to MongoDB database: %s", dbName)

	return db, nil
}

// extractDBName extracts the database name from MongoDB URI
func extractDBName(uri string) string {
	// mongodb://localhost:27017/bimsense?authSource=admin -> bimsense
	lastSlash := -1
	questionMark := -1

	for i, c := range uri {
		if c == '/' {
			lastSlash = i
		}
		if c == '?' && questionMark == -1 {
			questionMark = i
		}
	}

	if lastSlash != -1 {
		start := lastSlash + 1
		end := len(uri)
		if questionMark != -1 && questionMark > lastSlash {
			end = questionMark
		}
		if start < end {
			dbName := uri[start:end]
			if dbName != "" {
				return dbName
			}
		}
	}

	return "bimsense"
}

// Initialize creates indexes for all collections
func (m *MongoDB) Initialize(ctx context.Context) error {
	log.Println("📦 Initializing MongoDB indexes...")

	// Elements collection: the categorical tuple drives pattern grouping,
	// so the compound index keeps $group and per-tuple lookups cheap.
	if err := m.createIndexes(ctx, CollectionElements, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "category", Value: 1},
			{Key: "family", Value: 1},
			{Key: "type", Value: 1},
			{Key: "material", Value: 1},
			{Key: "locationType", Value: 1},
		}},
		{Keys: bson.D{{Key: "projectId", Value: 1}}},
		{Keys: bson.D{{Key: "externalId", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create elements indexes: %w", err)
	}

	// Suggestions collection indexes
	if err := m.createIndexes(ctx, CollectionSuggestions, []mongo.IndexModel{
		{Keys: bson.D{{Key: "elementId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "patternHash", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create suggestions indexes: %w", err)
	}

	log.Println("✅ MongoDB indexes initialized")
	return nil
}

// createIndexes creates indexes for a collection
func (m *MongoDB) createIndexes(ctx context.Context, collectionName string, indexes []mongo.IndexModel) error {
	_, err := m.database.Collection(collectionName).Indexes().CreateMany(ctx, indexes)
	return err
}

// Collection returns a handle to the named collection
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Database returns the underlying database handle
func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

// Close disconnects the client
func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping verifies the connection is alive
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}
