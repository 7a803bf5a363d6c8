package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SuggestionStatus tracks the human-review state of a classification
// suggestion. Transitions are one-way: pending → approved or pending →
// rejected, both terminal.
type SuggestionStatus string

const (
	SuggestionStatusPending  SuggestionStatus = "pending"
	SuggestionStatusApproved SuggestionStatus = "approved"
	SuggestionStatusRejected SuggestionStatus = "rejected"
)

// Suggestion event types.
const (
	EventSuggestionCreated  = "suggestion.created"
	EventSuggestionApproved = "suggestion.approved"
	EventSuggestionRejected = "suggestion.rejected"
)

// ErrInvalidStateTransition is returned when Approve or Reject is called on
// a suggestion that is no longer pending.
var ErrInvalidStateTransition = errors.New("invalid suggestion state transition")

// ErrValidation is returned for rejected input: a missing reject reason, a
// missing actor, or a malformed pattern tuple. Callers should not retry.
var ErrValidation = errors.New("validation failed")

// DerivedItem is a secondary billable item implied by a classified element.
// The quantity formula is carried as text and never evaluated here.
type DerivedItem struct {
	CommodityCode   string `bson:"commodityCode" json:"commodity_code"`
	PricingCode     string `bson:"pricingCode,omitempty" json:"pricing_code,omitempty"`
	QuantityFormula string `bson:"quantityFormula,omitempty" json:"quantity_formula,omitempty"`
	QuantityUnit    string `bson:"quantityUnit,omitempty" json:"quantity_unit,omitempty"`
}

// SuggestionEvent is an audit event emitted by the aggregate on creation and
// on each review transition. CorrelationID links a suggestion's creation
// event to its eventual review event.
type SuggestionEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	SuggestionID  string    `json:"suggestion_id"`
	ElementID     string    `json:"element_id"`
	CorrelationID string    `json:"correlation_id"`
	Actor         string    `json:"actor,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	CommodityCode string    `json:"commodity_code,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ClassificationSuggestion is the aggregate root for one advisory
// classification proposal. It is never authoritative: the durable store
// holds the audit-grade record and a human reviewer settles its fate.
//
// Mutators never publish events themselves; they append to an internal
// pending list that the orchestrating caller drains with DrainEvents after a
// successful durable write.
type ClassificationSuggestion struct {
	ID               string           `bson:"_id" json:"id"`
	ElementID        string           `bson:"elementId" json:"element_id"`
	PatternHash      string           `bson:"patternHash,omitempty" json:"pattern_hash,omitempty"`
	CommodityCode    string           `bson:"commodityCode,omitempty" json:"commodity_code,omitempty"`
	PricingCode      string           `bson:"pricingCode,omitempty" json:"pricing_code,omitempty"`
	DerivedItems     []DerivedItem    `bson:"derivedItems,omitempty" json:"derived_items,omitempty"`
	ReasoningSummary string           `bson:"reasoningSummary,omitempty" json:"reasoning_summary,omitempty"`
	Status           SuggestionStatus `bson:"status" json:"status"`
	CorrelationID    string           `bson:"correlationId" json:"correlation_id"`
	CreatedAt        time.Time        `bson:"createdAt" json:"created_at"`
	ReviewedAt       *time.Time       `bson:"reviewedAt,omitempty" json:"reviewed_at,omitempty"`
	ReviewedBy       string           `bson:"reviewedBy,omitempty" json:"reviewed_by,omitempty"`
	RejectReason     string           `bson:"rejectReason,omitempty" json:"reject_reason,omitempty"`

	pendingEvents []SuggestionEvent
}

// NewClassificationSuggestion creates a pending suggestion and records its
// creation event.
func NewClassificationSuggestion(elementID, patternHash, commodityCode, pricingCode string, items []DerivedItem, reasoning string) (*ClassificationSuggestion, error) {
	if elementID == "" {
		return nil, fmt.Errorf("%w: element id is required", ErrValidation)
	}

	s := &ClassificationSuggestion{
		ID:               uuid.New().String(),
		ElementID:        elementID,
		PatternHash:      patternHash,
		CommodityCode:    commodityCode,
		PricingCode:      pricingCode,
		DerivedItems:     items,
		ReasoningSummary: reasoning,
		Status:           SuggestionStatusPending,
		CorrelationID:    uuid.New().String(),
		CreatedAt:        time.Now().UTC(),
	}
	s.appendEvent(EventSuggestionCreated, "", "")
	return s, nil
}

// Approve marks a pending suggestion approved by the given actor.
func (s *ClassificationSuggestion) Approve(approvedBy string) error {
	if approvedBy == "" {
		return fmt.Errorf("%w: approver is required", ErrValidation)
	}
	if s.Status != SuggestionStatusPending {
		return fmt.Errorf("%w: cannot approve suggestion %s in status %q", ErrInvalidStateTransition, s.ID, s.Status)
	}

	now := time.Now().UTC()
	s.Status = SuggestionStatusApproved
	s.ReviewedAt = &now
	s.ReviewedBy = approvedBy
	s.appendEvent(EventSuggestionApproved, approvedBy, "")
	return nil
}

// Reject marks a pending suggestion rejected. The reason is mandatory; it is
// carried on the rejection event for the audit trail.
func (s *ClassificationSuggestion) Reject(rejectedBy, reason string) error {
	if rejectedBy == "" {
		return fmt.Errorf("%w: reviewer is required", ErrValidation)
	}
	if reason == "" {
		return fmt.Errorf("%w: a rejection reason is required", ErrValidation)
	}
	if s.Status != SuggestionStatusPending {
		return fmt.Errorf("%w: cannot reject suggestion %s in status %q", ErrInvalidStateTransition, s.ID, s.Status)
	}

	now := time.Now().UTC()
	s.Status = SuggestionStatusRejected
	s.ReviewedAt = &now
	s.ReviewedBy = rejectedBy
	s.RejectReason = reason
	s.appendEvent(EventSuggestionRejected, rejectedBy, reason)
	return nil
}

// DrainEvents returns the accumulated events and clears the pending list.
// The caller dispatches them only after the aggregate has been durably
// persisted, so a failed write never leaks phantom audit events.
func (s *ClassificationSuggestion) DrainEvents() []SuggestionEvent {
	events := s.pendingEvents
	s.pendingEvents = nil
	return events
}

func (s *ClassificationSuggestion) appendEvent(eventType, actor, reason string) {
	s.pendingEvents = append(s.pendingEvents, SuggestionEvent{
		ID:            uuid.New().String(),
		Type:          eventType,
		SuggestionID:  s.ID,
		ElementID:     s.ElementID,
		CorrelationID: s.CorrelationID,
		Actor:         actor,
		Reason:        reason,
		CommodityCode: s.CommodityCode,
		OccurredAt:    time.Now().UTC(),
	})
}
