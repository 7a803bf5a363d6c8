package jobs

import (
	"context"
	"log"
	"time"

	"bimsense/internal/services"
)

// prewarmPageSize bounds one enumeration page; a few hundred patterns per
// page keeps both the aggregation pipeline and the batch cache lookup cheap.
const prewarmPageSize = 200

// PatternPrewarmJob walks the full element corpus pattern by pattern and
// classifies every pattern that has no live cache entry. Scheduled off-peak,
// it means interactive classification requests mostly hit a warm cache.
type PatternPrewarmJob struct {
	patterns       *services.PatternService
	classification *services.ClassificationService
}

// NewPatternPrewarmJob creates the pre-warm job.
func NewPatternPrewarmJob(patterns *services.PatternService, classification *services.ClassificationService) *PatternPrewarmJob {
	return &PatternPrewarmJob{
		patterns:       patterns,
		classification: classification,
	}
}

// Run enumerates all patterns page by page and classifies the cache misses.
// Collaborator failures skip the pattern; the next run retries it.
func (j *PatternPrewarmJob) Run(ctx context.Context) error {
	log.Println("🔥 [PREWARM] Starting pattern pre-warm...")
	startTime := time.Now()

	total, err := j.patterns.CountDistinctPatterns(ctx)
	if err != nil {
		log.Printf("❌ [PREWARM] Failed to count patterns: %v", err)
		return err
	}
	log.Printf("🔥 [PREWARM] Corpus has %d distinct patterns", total)

	var warmed, served int
	for skip := 0; ; skip += prewarmPageSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := j.patterns.EnumerateAllPatterns(ctx, skip, prewarmPageSize)
		if err != nil {
			log.Printf("❌ [PREWARM] Failed to enumerate patterns at offset %d: %v", skip, err)
			return err
		}
		if len(page) == 0 {
			break
		}

		results, err := j.classification.ClassifyPatterns(ctx, page)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Suggestion == nil {
				continue
			}
			if r.FromCache {
				served++
			} else {
				warmed++
			}
		}
	}

	log.Printf("✅ [PREWARM] Complete: %d newly classified, %d already cached, took %v",
		warmed, served, time.Since(startTime))
	return nil
}
