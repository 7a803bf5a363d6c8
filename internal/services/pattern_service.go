package services

import (
	"context"
	"fmt"
	"sort"

	"bimsense/internal/models"
)

// ElementSource supplies read-only element snapshots. The production
// implementation is Mongo-backed (MongoElementSource); tests use an
// in-memory fake. Pattern pages are computed source-side so bulk enumeration
// never has to stream the whole corpus through this process.
type ElementSource interface {
	// ByIDs returns the snapshots matching the given ids. Unknown ids
	// are skipped, order is unspecified.
	ByIDs(ctx context.Context, ids []string) ([]models.ElementSnapshot, error)

	// PatternPage returns one page of patterns over the full corpus,
	// ordered by categorical tuple, with samples bounded by sampleSize
	// and dimension statistics computed over each entire group.
	PatternPage(ctx context.Context, skip, take, sampleSize int) ([]models.Pattern, error)

	// PatternCount returns the number of distinct categorical tuples in
	// the corpus.
	PatternCount(ctx context.Context) (int64, error)
}

// PatternService groups elements into patterns: the aggregation step that
// lets one classifier call serve every near-duplicate element. All
// operations are read-only.
type PatternService struct {
	source ElementSource
}

// NewPatternService creates a pattern aggregator over an element source.
func NewPatternService(source ElementSource) *PatternService {
	return &PatternService{source: source}
}

// ResolveByIDs resolves element ids to snapshots, collapsing duplicates.
// Empty input yields an empty result, never an error.
func (s *PatternService) ResolveByIDs(ctx context.Context, ids []string) ([]models.ElementSnapshot, error) {
	if len(ids) == 0 {
		return []models.ElementSnapshot{}, nil
	}

	snapshots, err := s.source.ByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve elements: %w", err)
	}

	seen := make(map[string]bool, len(snapshots))
	unique := make([]models.ElementSnapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if seen[snap.ID] {
			continue
		}
		seen[snap.ID] = true
		unique = append(unique, snap)
	}
	return unique, nil
}

// GroupIntoPatterns resolves ids and groups them by the five-field
// categorical tuple, one pattern per distinct tuple. sampleSize bounds each
// pattern's representative sample; pass zero for the default.
func (s *PatternService) GroupIntoPatterns(ctx context.Context, ids []string, sampleSize int) ([]models.Pattern, error) {
	snapshots, err := s.ResolveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return BuildPatterns(snapshots, sampleSize), nil
}

// EnumerateAllPatterns returns one page of patterns over the full corpus,
// for bulk id-independent pre-processing.
func (s *PatternService) EnumerateAllPatterns(ctx context.Context, skip, take int) ([]models.Pattern, error) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		return []models.Pattern{}, nil
	}

	patterns, err := s.source.PatternPage(ctx, skip, take, models.DefaultSampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate patterns: %w", err)
	}
	return patterns, nil
}

// CountDistinctPatterns returns the number of distinct categorical tuples in
// the corpus.
func (s *PatternService) CountDistinctPatterns(ctx context.Context) (int64, error) {
	count, err := s.source.PatternCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count patterns: %w", err)
	}
	return count, nil
}

// BuildPatterns groups snapshots by normalized categorical tuple and builds
// one pattern per distinct tuple. The sample is deterministic: elements are
// ordered by id and the first sampleSize taken, so repeated aggregations of
// the same group always produce the same sample. Dimension statistics cover
// the entire group, not just the sample. The result is ordered by tuple.
func BuildPatterns(snapshots []models.ElementSnapshot, sampleSize int) []models.Pattern {
	if sampleSize <= 0 {
		sampleSize = models.DefaultSampleSize
	}

	groups := make(map[models.PatternKey][]models.ElementSnapshot)
	for _, snap := range snapshots {
		key := models.NewPatternKey(snap)
		groups[key] = append(groups[key], snap)
	}

	patterns := make([]models.Pattern, 0, len(groups))
	for key, group := range groups {
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })

		sample := group
		if len(sample) > sampleSize {
			sample = sample[:sampleSize]
		}

		patterns = append(patterns, models.Pattern{
			Key:            key,
			Hash:           key.Hash(),
			ElementCount:   len(group),
			SampleElements: sample,
			Dimensions: models.PatternDimensions{
				Length:   dimensionStats(group, func(e models.ElementSnapshot) *float64 { return e.Length }),
				Width:    dimensionStats(group, func(e models.ElementSnapshot) *float64 { return e.Width }),
				Height:   dimensionStats(group, func(e models.ElementSnapshot) *float64 { return e.Height }),
				Diameter: dimensionStats(group, func(e models.ElementSnapshot) *float64 { return e.Diameter }),
			},
		})
	}

	sort.Slice(patterns, func(i, j int) bool { return lessKey(patterns[i].Key, patterns[j].Key) })
	return patterns
}

// dimensionStats aggregates one dimension across a group; nil when no
// element reports it.
func dimensionStats(group []models.ElementSnapshot, dim func(models.ElementSnapshot) *float64) *models.DimensionStats {
	var stats *models.DimensionStats
	var sum float64
	var count int

	for _, snap := range group {
		v := dim(snap)
		if v == nil {
			continue
		}
		if stats == nil {
			stats = &models.DimensionStats{Min: *v, Max: *v}
		} else {
			if *v < stats.Min {
				stats.Min = *v
			}
			if *v > stats.Max {
				stats.Max = *v
			}
		}
		sum += *v
		count++
	}

	if stats != nil {
		stats.Avg = sum / float64(count)
	}
	return stats
}

func lessKey(a, b models.PatternKey) bool {
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	if a.Family != b.Family {
		return a.Family < b.Family
	}
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	if a.Material != b.Material {
		return a.Material < b.Material
	}
	return a.LocationType < b.LocationType
}
