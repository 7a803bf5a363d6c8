package services

import (
	"context"
	"log"

	"bimsense/internal/models"
)

// ReviewService settles pending suggestions. The aggregate enforces the
// one-way state machine in memory and the repository re-checks it with a
// conditional update, so a race between two reviewers produces exactly one
// transition and one audit event.
type ReviewService struct {
	store     SuggestionRepository
	cache     *ClassificationCache
	publisher EventPublisher
}

// NewReviewService wires the review workflow. cache and publisher may be
// nil.
func NewReviewService(store SuggestionRepository, cache *ClassificationCache, publisher EventPublisher) *ReviewService {
	return &ReviewService{store: store, cache: cache, publisher: publisher}
}

// Approve transitions a pending suggestion to approved.
func (s *ReviewService) Approve(ctx context.Context, id, approvedBy string) (*models.ClassificationSuggestion, error) {
	suggestion, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := suggestion.Approve(approvedBy); err != nil {
		return nil, err
	}
	if err := s.store.CompleteReview(ctx, suggestion); err != nil {
		return nil, err
	}

	s.dispatch(ctx, suggestion)
	log.Printf("✅ [REVIEW] Suggestion %s approved by %s", suggestion.ID, approvedBy)
	return suggestion, nil
}

// Reject transitions a pending suggestion to rejected. The reason is
// mandatory and travels on the audit event. The cached advisory entry for
// the pattern is invalidated so a rejected suggestion stops being served.
func (s *ReviewService) Reject(ctx context.Context, id, rejectedBy, reason string) (*models.ClassificationSuggestion, error) {
	suggestion, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := suggestion.Reject(rejectedBy, reason); err != nil {
		return nil, err
	}
	if err := s.store.CompleteReview(ctx, suggestion); err != nil {
		return nil, err
	}

	if s.cache != nil && suggestion.PatternHash != "" {
		if err := s.cache.Invalidate(ctx, suggestion.PatternHash); err != nil {
			log.Printf("⚠️ [REVIEW] Failed to invalidate cache entry %s: %v", suggestion.PatternHash, err)
		}
	}

	s.dispatch(ctx, suggestion)
	log.Printf("🚫 [REVIEW] Suggestion %s rejected by %s: %s", suggestion.ID, rejectedBy, reason)
	return suggestion, nil
}

// dispatch publishes the aggregate's drained events after the durable write.
func (s *ReviewService) dispatch(ctx context.Context, suggestion *models.ClassificationSuggestion) {
	events := suggestion.DrainEvents()
	if s.publisher != nil {
		s.publisher.Publish(ctx, events)
	}
}
