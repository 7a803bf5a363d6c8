package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"bimsense/internal/logging"
	"bimsense/internal/models"
)

// ClassificationResult pairs a pattern with its advisory suggestion.
// Suggestion is nil when the collaborator failed for that pattern; the
// elements simply stay unclassified until the next run.
type ClassificationResult struct {
	Pattern    models.Pattern                   `json:"pattern"`
	Suggestion *models.ClassificationSuggestion `json:"suggestion,omitempty"`
	FromCache  bool                             `json:"from_cache"`
}

// ClassificationService orchestrates the full miss path: group elements into
// patterns, consult the cache in one batch, invoke the collaborator for the
// misses, persist each new suggestion durably, then cache it and dispatch
// its events. Cache failures never block classification — an unavailable
// store is just a miss.
type ClassificationService struct {
	patterns   *PatternService
	cache      *ClassificationCache
	classifier Classifier
	store      SuggestionRepository
	publisher  EventPublisher
	limiter    *rate.Limiter
	metrics    *Metrics
}

// NewClassificationService wires the orchestrator. limiter throttles
// collaborator calls and may be nil; publisher may be nil when no event
// consumer is configured.
func NewClassificationService(patterns *PatternService, cache *ClassificationCache, classifier Classifier, store SuggestionRepository, publisher EventPublisher, limiter *rate.Limiter) *ClassificationService {
	return &ClassificationService{
		patterns:   patterns,
		cache:      cache,
		classifier: classifier,
		store:      store,
		publisher:  publisher,
		limiter:    limiter,
	}
}

// SetMetrics attaches Prometheus metrics after construction.
func (s *ClassificationService) SetMetrics(m *Metrics) {
	s.metrics = m
}

// ClassifyElements resolves and groups the given element ids, then
// classifies the resulting patterns.
func (s *ClassificationService) ClassifyElements(ctx context.Context, elementIDs []string, sampleSize int) ([]ClassificationResult, error) {
	patterns, err := s.patterns.GroupIntoPatterns(ctx, elementIDs, sampleSize)
	if err != nil {
		return nil, err
	}
	return s.ClassifyPatterns(ctx, patterns)
}

// ClassifyPatterns serves each pattern from the cache where possible and
// invokes the collaborator for the rest.
func (s *ClassificationService) ClassifyPatterns(ctx context.Context, patterns []models.Pattern) ([]ClassificationResult, error) {
	hashes := make([]string, len(patterns))
	for i, p := range patterns {
		hashes[i] = p.Hash
	}

	// One batch round trip; an unavailable store degrades to all-miss.
	cached, err := s.cache.GetMany(ctx, hashes)
	if err != nil {
		log.Printf("⚠️ [CLASSIFY] Cache unavailable, classifying without it: %v", err)
	}

	results := make([]ClassificationResult, 0, len(patterns))
	for _, pattern := range patterns {
		if suggestion, ok := cached[pattern.Hash]; ok {
			results = append(results, ClassificationResult{Pattern: pattern, Suggestion: suggestion, FromCache: true})
			continue
		}

		suggestion, err := s.classifyAndStore(ctx, pattern)
		if err != nil {
			if ctx.Err() != nil {
				return results, fmt.Errorf("classification interrupted: %w", ctx.Err())
			}
			log.Printf("❌ [CLASSIFY] Failed to classify pattern %s: %v", pattern.Hash, err)
			results = append(results, ClassificationResult{Pattern: pattern})
			continue
		}
		results = append(results, ClassificationResult{Pattern: pattern, Suggestion: suggestion})
	}
	return results, nil
}

// classifyAndStore runs the miss path for one pattern: collaborator call,
// durable insert, best-effort cache write, event dispatch. Events leave the
// aggregate only after the insert succeeded.
func (s *ClassificationService) classifyAndStore(ctx context.Context, pattern models.Pattern) (*models.ClassificationSuggestion, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("classifier rate limit wait: %w", err)
		}
	}

	plog := logging.WithPattern(pattern.Hash, pattern.ElementCount)

	start := time.Now()
	suggestion, err := s.classifier.Classify(ctx, pattern)
	s.metrics.ObserveClassifierCall(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("classifier call: %w", err)
	}
	plog.Debug("classifier call completed", "duration", time.Since(start), "commodity_code", suggestion.CommodityCode)

	if err := s.store.Insert(ctx, suggestion); err != nil {
		return nil, err
	}

	// The cache is an optimization layer; a failed write costs a future
	// collaborator call, nothing more.
	if err := s.cache.Set(ctx, pattern.Hash, suggestion, 0); err != nil {
		log.Printf("⚠️ [CLASSIFY] Failed to cache suggestion for pattern %s: %v", pattern.Hash, err)
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, suggestion.DrainEvents())
	}
	return suggestion, nil
}
