package handlers

import (
	"github.com/gofiber/fiber/v2"

	"bimsense/internal/models"
	"bimsense/internal/services"
)

// SuggestionHandler handles suggestion review HTTP requests
type SuggestionHandler struct {
	reviewService *services.ReviewService
	store         services.SuggestionRepository
}

// NewSuggestionHandler creates a new suggestion handler
func NewSuggestionHandler(reviewService *services.ReviewService, store services.SuggestionRepository) *SuggestionHandler {
	return &SuggestionHandler{
		reviewService: reviewService,
		store:         store,
	}
}

// Get returns one suggestion by id.
func (h *SuggestionHandler) Get(c *fiber.Ctx) error {
	suggestion, err := h.store.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(suggestion)
}

// List returns a page of suggestions filtered by review status.
func (h *SuggestionHandler) List(c *fiber.Ctx) error {
	status := models.SuggestionStatus(c.Query("status", string(models.SuggestionStatusPending)))
	skip := c.QueryInt("skip", 0)
	take := c.QueryInt("take", 100)

	suggestions, err := h.store.ListByStatus(c.Context(), status, skip, take)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

// ApproveRequest is the body of POST /api/suggestions/:id/approve
type ApproveRequest struct {
	ApprovedBy string `json:"approved_by"`
}

// Approve marks a pending suggestion approved.
func (h *SuggestionHandler) Approve(c *fiber.Ctx) error {
	var req ApproveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	suggestion, err := h.reviewService.Approve(c.Context(), c.Params("id"), req.ApprovedBy)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(suggestion)
}

// RejectRequest is the body of POST /api/suggestions/:id/reject
type RejectRequest struct {
	RejectedBy string `json:"rejected_by"`
	Reason     string `json:"reason"`
}

// Reject marks a pending suggestion rejected. The reason is mandatory.
func (h *SuggestionHandler) Reject(c *fiber.Ctx) error {
	var req RejectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	suggestion, err := h.reviewService.Reject(c.Context(), c.Params("id"), req.RejectedBy, req.Reason)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(suggestion)
}
