package models

import (
	"errors"
	"testing"
)

func newPendingSuggestion(t *testing.T) *ClassificationSuggestion {
	t.Helper()
	s, err := NewClassificationSuggestion("element-1", "abc123", "23.27.17", "P-100", []DerivedItem{
		{CommodityCode: "23.27.17.11", QuantityFormula: "length * 1.05", QuantityUnit: "m"},
	}, "matched on category and material")
	if err != nil {
		t.Fatalf("Failed to create suggestion: %v", err)
	}
	return s
}

// TestNewSuggestionIsPending verifies a fresh suggestion starts pending with
// exactly one creation event.
func TestNewSuggestionIsPending(t *testing.T) {
	s := newPendingSuggestion(t)

	if s.Status != SuggestionStatusPending {
		t.Errorf("Expected status pending, got %s", s.Status)
	}
	if s.ID == "" || s.CorrelationID == "" {
		t.Error("Suggestion should have id and correlation id")
	}
	if s.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	events := s.DrainEvents()
	if len(events) != 1 {
		t.Fatalf("Expected 1 creation event, got %d", len(events))
	}
	if events[0].Type != EventSuggestionCreated {
		t.Errorf("Expected %s event, got %s", EventSuggestionCreated, events[0].Type)
	}
	if events[0].ElementID != "element-1" || events[0].CommodityCode != "23.27.17" {
		t.Errorf("Creation event missing payload: %+v", events[0])
	}
}

// TestNewSuggestionRequiresElement verifies creation validates its target.
func TestNewSuggestionRequiresElement(t *testing.T) {
	_, err := NewClassificationSuggestion("", "abc", "", "", nil, "")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
}

// TestApprove verifies the pending → approved transition.
func TestApprove(t *testing.T) {
	s := newPendingSuggestion(t)
	s.DrainEvents()

	if err := s.Approve("alice"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	if s.Status != SuggestionStatusApproved {
		t.Errorf("Expected status approved, got %s", s.Status)
	}
	if s.ReviewedBy != "alice" {
		t.Errorf("Expected reviewedBy alice, got %s", s.ReviewedBy)
	}
	if s.ReviewedAt == nil {
		t.Error("ReviewedAt should be set")
	}

	events := s.DrainEvents()
	if len(events) != 1 {
		t.Fatalf("Expected exactly 1 approval event, got %d", len(events))
	}
	if events[0].Type != EventSuggestionApproved || events[0].Actor != "alice" {
		t.Errorf("Unexpected approval event: %+v", events[0])
	}
	if events[0].CorrelationID != s.CorrelationID {
		t.Error("Review event should carry the aggregate's correlation id")
	}
}

// TestRejectRequiresReason verifies rejection validates its reason before
// touching state.
func TestRejectRequiresReason(t *testing.T) {
	s := newPendingSuggestion(t)
	s.DrainEvents()

	err := s.Reject("bob", "")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for empty reason, got %v", err)
	}
	if s.Status != SuggestionStatusPending {
		t.Errorf("Failed rejection should not change status, got %s", s.Status)
	}
	if events := s.DrainEvents(); len(events) != 0 {
		t.Errorf("Failed rejection should emit no events, got %d", len(events))
	}
}

// TestReject verifies the pending → rejected transition carries its reason.
func TestReject(t *testing.T) {
	s := newPendingSuggestion(t)
	s.DrainEvents()

	if err := s.Reject("bob", "wrong commodity family"); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	if s.Status != SuggestionStatusRejected {
		t.Errorf("Expected status rejected, got %s", s.Status)
	}
	if s.RejectReason != "wrong commodity family" {
		t.Errorf("Expected reject reason recorded, got %q", s.RejectReason)
	}

	events := s.DrainEvents()
	if len(events) != 1 {
		t.Fatalf("Expected exactly 1 rejection event, got %d", len(events))
	}
	if events[0].Reason != "wrong commodity family" {
		t.Errorf("Rejection event should carry the reason, got %q", events[0].Reason)
	}
}

// TestTransitionsAreTerminal verifies reviewed suggestions refuse further
// transitions.
func TestTransitionsAreTerminal(t *testing.T) {
	tests := []struct {
		name   string
		settle func(*ClassificationSuggestion) error
	}{
		{
			name:   "Approved suggestion",
			settle: func(s *ClassificationSuggestion) error { return s.Approve("alice") },
		},
		{
			name:   "Rejected suggestion",
			settle: func(s *ClassificationSuggestion) error { return s.Reject("bob", "duplicate") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newPendingSuggestion(t)
			if err := tt.settle(s); err != nil {
				t.Fatalf("Initial transition failed: %v", err)
			}
			s.DrainEvents()

			if err := s.Approve("carol"); !errors.Is(err, ErrInvalidStateTransition) {
				t.Errorf("Second Approve should fail with ErrInvalidStateTransition, got %v", err)
			}
			if err := s.Reject("carol", "late"); !errors.Is(err, ErrInvalidStateTransition) {
				t.Errorf("Second Reject should fail with ErrInvalidStateTransition, got %v", err)
			}
			if events := s.DrainEvents(); len(events) != 0 {
				t.Errorf("Refused transitions should emit no events, got %d", len(events))
			}
		})
	}
}

// TestDrainEventsClears verifies draining empties the pending list.
func TestDrainEventsClears(t *testing.T) {
	s := newPendingSuggestion(t)

	if events := s.DrainEvents(); len(events) != 1 {
		t.Fatalf("Expected 1 event on first drain, got %d", len(events))
	}
	if events := s.DrainEvents(); len(events) != 0 {
		t.Errorf("Expected empty second drain, got %d", len(events))
	}
}
