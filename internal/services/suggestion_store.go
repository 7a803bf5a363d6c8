package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bimsense/internal/database"
	"bimsense/internal/models"
)

// SuggestionRepository is the durable, audit-grade record of every
// suggestion and its review history. The classification cache never
// substitutes for it.
type SuggestionRepository interface {
	Insert(ctx context.Context, s *models.ClassificationSuggestion) error
	GetByID(ctx context.Context, id string) (*models.ClassificationSuggestion, error)
	ListByStatus(ctx context.Context, status models.SuggestionStatus, skip, take int) ([]models.ClassificationSuggestion, error)

	// CompleteReview persists a review transition conditionally: the
	// update matches only while the stored document is still pending, so
	// two racing reviewers cannot both produce a transition.
	CompleteReview(ctx context.Context, s *models.ClassificationSuggestion) error
}

// MongoSuggestionStore is the MongoDB-backed SuggestionRepository.
type MongoSuggestionStore struct {
	collection *mongo.Collection
}

// NewMongoSuggestionStore creates the durable suggestion store.
func NewMongoSuggestionStore(mongoDB *database.MongoDB) *MongoSuggestionStore {
	return &MongoSuggestionStore{
		collection: mongoDB.Collection(database.CollectionSuggestions),
	}
}

// Insert writes a newly created suggestion.
func (s *MongoSuggestionStore) Insert(ctx context.Context, suggestion *models.ClassificationSuggestion) error {
	if _, err := s.collection.InsertOne(ctx, suggestion); err != nil {
		return fmt.Errorf("failed to insert suggestion: %w", err)
	}
	return nil
}

// GetByID loads one suggestion.
func (s *MongoSuggestionStore) GetByID(ctx context.Context, id string) (*models.ClassificationSuggestion, error) {
	var suggestion models.ClassificationSuggestion
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&suggestion)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestion %s: %w", id, err)
	}
	return &suggestion, nil
}

// ListByStatus returns a page of suggestions in the given review state,
// newest first.
func (s *MongoSuggestionStore) ListByStatus(ctx context.Context, status models.SuggestionStatus, skip, take int) ([]models.ClassificationSuggestion, error) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		return []models.ClassificationSuggestion{}, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(take))

	cursor, err := s.collection.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	defer cursor.Close(ctx)

	var suggestions []models.ClassificationSuggestion
	if err := cursor.All(ctx, &suggestions); err != nil {
		return nil, fmt.Errorf("failed to decode suggestions: %w", err)
	}
	return suggestions, nil
}

// CompleteReview persists an Approve/Reject transition with a conditional
// update on status=pending. No matching document means either the
// suggestion does not exist or another reviewer already settled it; the two
// cases are distinguished so the caller can report the right error.
func (s *MongoSuggestionStore) CompleteReview(ctx context.Context, suggestion *models.ClassificationSuggestion) error {
	update := bson.M{"$set": bson.M{
		"status":       suggestion.Status,
		"reviewedAt":   suggestion.ReviewedAt,
		"reviewedBy":   suggestion.ReviewedBy,
		"rejectReason": suggestion.RejectReason,
	}}

	result, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": suggestion.ID, "status": models.SuggestionStatusPending},
		update,
	)
	if err != nil {
		return fmt.Errorf("failed to persist review of suggestion %s: %w", suggestion.ID, err)
	}
	if result.MatchedCount == 0 {
		if _, getErr := s.GetByID(ctx, suggestion.ID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: suggestion %s was reviewed concurrently", models.ErrInvalidStateTransition, suggestion.ID)
	}
	return nil
}
