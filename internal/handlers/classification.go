package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"bimsense/internal/models"
	"bimsense/internal/services"
)

// ClassificationHandler handles classification and pattern HTTP requests
type ClassificationHandler struct {
	classificationService *services.ClassificationService
	patternService        *services.PatternService
	cache                 *services.ClassificationCache
	defaultSampleSize     int
}

// NewClassificationHandler creates a new classification handler
func NewClassificationHandler(classificationService *services.ClassificationService, patternService *services.PatternService, cache *services.ClassificationCache, defaultSampleSize int) *ClassificationHandler {
	return &ClassificationHandler{
		classificationService: classificationService,
		patternService:        patternService,
		cache:                 cache,
		defaultSampleSize:     defaultSampleSize,
	}
}

// ClassifyRequest is the body of POST /api/classifications
type ClassifyRequest struct {
	ElementIDs []string `json:"element_ids"`
	SampleSize int      `json:"sample_size"`
}

// Classify groups the given elements into patterns and returns an advisory
// suggestion per pattern, served from cache where possible.
func (h *ClassificationHandler) Classify(c *fiber.Ctx) error {
	var req ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.ElementIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "element_ids is required",
		})
	}

	sampleSize := req.SampleSize
	if sampleSize <= 0 {
		sampleSize = h.defaultSampleSize
	}

	results, err := h.classificationService.ClassifyElements(c.Context(), req.ElementIDs, sampleSize)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"results": results,
		"count":   len(results),
	})
}

// ListPatterns returns one page of patterns over the full corpus.
func (h *ClassificationHandler) ListPatterns(c *fiber.Ctx) error {
	skip := c.QueryInt("skip", 0)
	take := c.QueryInt("take", 100)

	patterns, err := h.patternService.EnumerateAllPatterns(c.Context(), skip, take)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"patterns": patterns,
		"skip":     skip,
		"take":     take,
	})
}

// CountPatterns returns the number of distinct patterns in the corpus.
func (h *ClassificationHandler) CountPatterns(c *fiber.Ctx) error {
	count, err := h.patternService.CountDistinctPatterns(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

// CacheStats returns the cache's hit/miss/item counters and hit rate.
func (h *ClassificationHandler) CacheStats(c *fiber.Ctx) error {
	stats, err := h.cache.GetStatistics(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"hit_count":   stats.HitCount,
		"miss_count":  stats.MissCount,
		"total_items": stats.TotalItems,
		"hit_rate":    strconv.FormatFloat(stats.HitRate(), 'f', 4, 64),
	})
}

// InvalidateEntry removes one cache entry by pattern hash. Idempotent.
func (h *ClassificationHandler) InvalidateEntry(c *fiber.Ctx) error {
	hash := c.Params("hash")
	if err := h.cache.Invalidate(c.Context(), hash); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// errorResponse maps the service error taxonomy onto HTTP statuses.
func errorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidStateTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrStoreUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
