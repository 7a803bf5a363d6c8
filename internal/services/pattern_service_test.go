package services

import (
	"context"
	"testing"

	"bimsense/internal/models"
)

func pipeElement(id, material string) models.ElementSnapshot {
	return models.ElementSnapshot{
		ID:           id,
		Category:     "Pipe",
		Family:       "Standard",
		Type:         "DN50",
		Material:     material,
		LocationType: "Underground",
	}
}

// TestGroupIntoPatternsCollapsesDuplicates verifies near-duplicate elements
// land in one pattern while a differing element gets its own, with distinct
// hashes.
func TestGroupIntoPatternsCollapsesDuplicates(t *testing.T) {
	source := &memElementSource{snapshots: []models.ElementSnapshot{
		pipeElement("elem-1", "PVC"),
		pipeElement("elem-2", "PVC"),
		{ID: "elem-3", Category: "Duct", Material: "Steel"},
	}}
	svc := NewPatternService(source)

	patterns, err := svc.GroupIntoPatterns(context.Background(), []string{"elem-1", "elem-2", "elem-3"}, 0)
	if err != nil {
		t.Fatalf("GroupIntoPatterns failed: %v", err)
	}

	if len(patterns) != 2 {
		t.Fatalf("Expected 2 patterns, got %d", len(patterns))
	}

	// Ordered by tuple: duct/steel before pipe/pvc.
	duct, pipe := patterns[0], patterns[1]
	if duct.Key.Category != "duct" || pipe.Key.Category != "pipe" {
		t.Errorf("Unexpected tuple order: %q then %q", duct.Key.Category, pipe.Key.Category)
	}
	if duct.ElementCount != 1 || pipe.ElementCount != 2 {
		t.Errorf("Expected counts 1 and 2, got %d and %d", duct.ElementCount, pipe.ElementCount)
	}
	if duct.Hash == pipe.Hash {
		t.Errorf("Distinct tuples must hash differently, both got %s", duct.Hash)
	}
}

// TestGroupIntoPatternsDeduplicatesIDs verifies a repeated id contributes a
// single element to its group.
func TestGroupIntoPatternsDeduplicatesIDs(t *testing.T) {
	source := &memElementSource{snapshots: []models.ElementSnapshot{
		pipeElement("elem-1", "PVC"),
	}}
	svc := NewPatternService(source)

	patterns, err := svc.GroupIntoPatterns(context.Background(), []string{"elem-1", "elem-1", "elem-1"}, 0)
	if err != nil {
		t.Fatalf("GroupIntoPatterns failed: %v", err)
	}
	if len(patterns) != 1 || patterns[0].ElementCount != 1 {
		t.Fatalf("Expected one pattern with one element, got %+v", patterns)
	}
}

// TestGroupIntoPatternsEmptyInput verifies empty input is an empty result,
// not an error.
func TestGroupIntoPatternsEmptyInput(t *testing.T) {
	svc := NewPatternService(&memElementSource{})

	patterns, err := svc.GroupIntoPatterns(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("GroupIntoPatterns failed: %v", err)
	}
	if len(patterns) != 0 {
		t.Errorf("Expected no patterns, got %d", len(patterns))
	}
}

// TestBuildPatternsSampleBounded verifies the sample is capped at sampleSize
// and deterministic regardless of input order, while the count covers the
// whole group.
func TestBuildPatternsSampleBounded(t *testing.T) {
	forward := []models.ElementSnapshot{
		pipeElement("elem-1", "PVC"),
		pipeElement("elem-2", "PVC"),
		pipeElement("elem-3", "PVC"),
		pipeElement("elem-4", "PVC"),
		pipeElement("elem-5", "PVC"),
	}
	reversed := make([]models.ElementSnapshot, len(forward))
	for i, snap := range forward {
		reversed[len(forward)-1-i] = snap
	}

	a := BuildPatterns(forward, 2)
	b := BuildPatterns(reversed, 2)
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("Expected one pattern from each ordering, got %d and %d", len(a), len(b))
	}

	if a[0].ElementCount != 5 {
		t.Errorf("Count must cover the whole group, got %d", a[0].ElementCount)
	}
	if len(a[0].SampleElements) != 2 {
		t.Fatalf("Expected sample of 2, got %d", len(a[0].SampleElements))
	}
	for i := range a[0].SampleElements {
		if a[0].SampleElements[i].ID != b[0].SampleElements[i].ID {
			t.Errorf("Sample must be input-order independent: %s vs %s",
				a[0].SampleElements[i].ID, b[0].SampleElements[i].ID)
		}
	}
	if a[0].SampleElements[0].ID != "elem-1" || a[0].SampleElements[1].ID != "elem-2" {
		t.Errorf("Expected the first two ids by order, got %s and %s",
			a[0].SampleElements[0].ID, a[0].SampleElements[1].ID)
	}
}

// TestBuildPatternsDimensionStats verifies statistics span the full group,
// skip elements missing the dimension, and stay nil for a dimension no
// element reports.
func TestBuildPatternsDimensionStats(t *testing.T) {
	snapshots := []models.ElementSnapshot{
		{ID: "elem-1", Category: "Pipe", Length: floatPtr(2.0), Diameter: floatPtr(0.05)},
		{ID: "elem-2", Category: "Pipe", Length: floatPtr(4.0)},
		{ID: "elem-3", Category: "Pipe", Length: floatPtr(6.0), Diameter: floatPtr(0.07)},
	}

	patterns := BuildPatterns(snapshots, 1)
	if len(patterns) != 1 {
		t.Fatalf("Expected one pattern, got %d", len(patterns))
	}
	dims := patterns[0].Dimensions

	if dims.Length == nil {
		t.Fatal("Expected length statistics")
	}
	if dims.Length.Min != 2.0 || dims.Length.Max != 6.0 || dims.Length.Avg != 4.0 {
		t.Errorf("Length stats wrong: %+v", *dims.Length)
	}

	if dims.Diameter == nil {
		t.Fatal("Expected diameter statistics over the reporting elements")
	}
	if dims.Diameter.Min != 0.05 || dims.Diameter.Max != 0.07 {
		t.Errorf("Diameter stats wrong: %+v", *dims.Diameter)
	}

	if dims.Width != nil || dims.Height != nil {
		t.Errorf("Unreported dimensions must stay nil, got width=%v height=%v", dims.Width, dims.Height)
	}
}

// TestEnumerateAllPatterns verifies paging over the corpus and the count of
// distinct tuples.
func TestEnumerateAllPatterns(t *testing.T) {
	source := &memElementSource{snapshots: []models.ElementSnapshot{
		pipeElement("elem-1", "PVC"),
		pipeElement("elem-2", "Copper"),
		{ID: "elem-3", Category: "Duct", Material: "Steel"},
	}}
	svc := NewPatternService(source)
	ctx := context.Background()

	count, err := svc.CountDistinctPatterns(ctx)
	if err != nil {
		t.Fatalf("CountDistinctPatterns failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 distinct patterns, got %d", count)
	}

	first, err := svc.EnumerateAllPatterns(ctx, 0, 2)
	if err != nil {
		t.Fatalf("EnumerateAllPatterns failed: %v", err)
	}
	second, err := svc.EnumerateAllPatterns(ctx, 2, 2)
	if err != nil {
		t.Fatalf("EnumerateAllPatterns failed: %v", err)
	}
	if len(first) != 2 || len(second) != 1 {
		t.Errorf("Expected pages of 2 and 1, got %d and %d", len(first), len(second))
	}

	if empty, _ := svc.EnumerateAllPatterns(ctx, 10, 2); len(empty) != 0 {
		t.Errorf("Expected empty page past the end, got %d", len(empty))
	}
	if empty, _ := svc.EnumerateAllPatterns(ctx, 0, 0); len(empty) != 0 {
		t.Errorf("Expected empty page for zero take, got %d", len(empty))
	}
}
