package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bimsense/internal/models"
)

// memElementSource is an in-memory ElementSource backed by a snapshot slice.
// Pattern pages reuse BuildPatterns so the fake's grouping semantics match
// the Mongo pipeline.
type memElementSource struct {
	snapshots []models.ElementSnapshot
}

func (s *memElementSource) ByIDs(_ context.Context, ids []string) ([]models.ElementSnapshot, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var result []models.ElementSnapshot
	for _, snap := range s.snapshots {
		if wanted[snap.ID] {
			result = append(result, snap)
		}
	}
	return result, nil
}

func (s *memElementSource) PatternPage(_ context.Context, skip, take, sampleSize int) ([]models.Pattern, error) {
	patterns := BuildPatterns(s.snapshots, sampleSize)
	if skip >= len(patterns) {
		return []models.Pattern{}, nil
	}
	end := skip + take
	if end > len(patterns) {
		end = len(patterns)
	}
	return patterns[skip:end], nil
}

func (s *memElementSource) PatternCount(_ context.Context) (int64, error) {
	return int64(len(BuildPatterns(s.snapshots, 1))), nil
}

// memSuggestionRepo is an in-memory SuggestionRepository with the same
// conditional-review semantics as the Mongo store.
type memSuggestionRepo struct {
	mu          sync.Mutex
	suggestions map[string]models.ClassificationSuggestion
	inserts     int
}

func newMemSuggestionRepo() *memSuggestionRepo {
	return &memSuggestionRepo{suggestions: make(map[string]models.ClassificationSuggestion)}
}

func (r *memSuggestionRepo) Insert(_ context.Context, s *models.ClassificationSuggestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suggestions[s.ID] = *s
	r.inserts++
	return nil
}

func (r *memSuggestionRepo) GetByID(_ context.Context, id string) (*models.ClassificationSuggestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.suggestions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *memSuggestionRepo) ListByStatus(_ context.Context, status models.SuggestionStatus, skip, take int) ([]models.ClassificationSuggestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []models.ClassificationSuggestion
	for _, s := range r.suggestions {
		if s.Status == status {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if skip >= len(result) {
		return nil, nil
	}
	end := skip + take
	if end > len(result) {
		end = len(result)
	}
	return result[skip:end], nil
}

func (r *memSuggestionRepo) CompleteReview(_ context.Context, s *models.ClassificationSuggestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.suggestions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != models.SuggestionStatusPending {
		return fmt.Errorf("%w: suggestion %s was reviewed concurrently", models.ErrInvalidStateTransition, s.ID)
	}
	r.suggestions[s.ID] = *s
	return nil
}

// countingClassifier returns a canned suggestion and counts its invocations.
type countingClassifier struct {
	mu    sync.Mutex
	calls int
}

func (c *countingClassifier) Classify(_ context.Context, pattern models.Pattern) (*models.ClassificationSuggestion, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	return models.NewClassificationSuggestion(
		pattern.SampleElements[0].ID,
		pattern.Hash,
		"23.27.17",
		"P-100",
		nil,
		"matched on category and material",
	)
}

func (c *countingClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []models.SuggestionEvent
}

func (p *capturePublisher) Publish(_ context.Context, events []models.SuggestionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *capturePublisher) byType(eventType string) []models.SuggestionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var matched []models.SuggestionEvent
	for _, e := range p.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// downStore fails every operation with ErrStoreUnavailable, simulating a
// dead backing store.
type downStore struct{}

func (downStore) GetEntry(context.Context, string, time.Duration) (string, error) {
	return "", storeErr("GET", fmt.Errorf("connection refused"))
}

func (downStore) SetEntry(context.Context, string, string, time.Duration) (bool, error) {
	return false, storeErr("SET", fmt.Errorf("connection refused"))
}

func (downStore) DeleteEntry(context.Context, string) error {
	return storeErr("DEL", fmt.Errorf("connection refused"))
}

func (downStore) BatchGet(context.Context, []string) (map[string]string, error) {
	return nil, storeErr("MGET", fmt.Errorf("connection refused"))
}

func (downStore) Expire(context.Context, string, time.Duration) error {
	return storeErr("EXPIRE", fmt.Errorf("connection refused"))
}

func (downStore) ExtendEntries(context.Context, map[string]time.Duration) error {
	return storeErr("EXPIRE", fmt.Errorf("connection refused"))
}

func (downStore) IncrCounter(context.Context, string, int64) error {
	return storeErr("HINCRBY", fmt.Errorf("connection refused"))
}

func (downStore) ReadCounters(context.Context) (models.CacheStatistics, error) {
	return models.CacheStatistics{}, storeErr("HGETALL", fmt.Errorf("connection refused"))
}

func floatPtr(v float64) *float64 {
	return &v
}

func testSuggestion(elementID, patternHash string) *models.ClassificationSuggestion {
	s, err := models.NewClassificationSuggestion(elementID, patternHash, "23.27.17", "P-100", []models.DerivedItem{
		{CommodityCode: "23.27.17.11", QuantityFormula: "length * 1.05", QuantityUnit: "m"},
	}, "pipe fitting by material")
	if err != nil {
		panic(err)
	}
	s.DrainEvents()
	return s
}
