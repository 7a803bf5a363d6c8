package models

import (
	"fmt"
	"strings"
	"testing"
)

// TestPatternHashDeterministic verifies identical tuples always hash to the
// same key.
func TestPatternHashDeterministic(t *testing.T) {
	key := PatternKey{Category: "pipe", Family: "copper", Type: "l", Material: "cu", LocationType: "wall"}

	first := key.Hash()
	for i := 0; i < 100; i++ {
		if h := key.Hash(); h != first {
			t.Fatalf("Hash not deterministic: got %s, want %s", h, first)
		}
	}
}

// TestPatternHashCaseInsensitive verifies tuples differing only by case
// produce the same key.
func TestPatternHashCaseInsensitive(t *testing.T) {
	lower := PatternKey{Category: "pipe", Family: "copper", Material: "pvc"}
	upper := PatternKey{Category: "PIPE", Family: "Copper", Material: "PVC"}

	if lower.Hash() != upper.Hash() {
		t.Errorf("Expected case-insensitive hashing: %s != %s", lower.Hash(), upper.Hash())
	}
}

// TestPatternHashAbsentEqualsEmpty verifies a missing field and an
// explicitly empty field hash identically.
func TestPatternHashAbsentEqualsEmpty(t *testing.T) {
	absent := NewPatternKey(ElementSnapshot{Category: "Duct"})
	explicit := PatternKey{Category: "duct", Family: "", Type: "", Material: "", LocationType: ""}

	if absent.Hash() != explicit.Hash() {
		t.Errorf("Absent and empty fields should hash identically: %s != %s", absent.Hash(), explicit.Hash())
	}
}

// TestPatternHashDelimiterImmunity verifies field values containing
// plausible delimiter characters cannot collide across field boundaries.
func TestPatternHashDelimiterImmunity(t *testing.T) {
	tests := []struct {
		name string
		a    PatternKey
		b    PatternKey
	}{
		{
			name: "Pipe separator shifted between fields",
			a:    PatternKey{Category: "a|b", Family: "c"},
			b:    PatternKey{Category: "a", Family: "b|c"},
		},
		{
			name: "Colon separator shifted between fields",
			a:    PatternKey{Category: "pipe:steel", Material: "x"},
			b:    PatternKey{Category: "pipe", Material: "steel:x"},
		},
		{
			name: "Empty field versus merged neighbors",
			a:    PatternKey{Category: "ab", Family: ""},
			b:    PatternKey{Category: "a", Family: "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.a.Hash() == tt.b.Hash() {
				t.Errorf("Distinct tuples collided: %+v vs %+v", tt.a, tt.b)
			}
		})
	}
}

// TestPatternHashLength verifies the key is a fixed-length hex string.
func TestPatternHashLength(t *testing.T) {
	h := PatternKey{Category: "wall"}.Hash()
	if len(h) != PatternHashLength {
		t.Errorf("Expected hash length %d, got %d", PatternHashLength, len(h))
	}
	if strings.Trim(h, "0123456789abcdef") != "" {
		t.Errorf("Hash contains non-hex characters: %s", h)
	}
}

// TestPatternHashNoCollisions runs a birthday-bound check over a large set
// of distinct tuples.
func TestPatternHashNoCollisions(t *testing.T) {
	seen := make(map[string]PatternKey, 12000)

	for cat := 0; cat < 30; cat++ {
		for fam := 0; fam < 20; fam++ {
			for mat := 0; mat < 20; mat++ {
				key := PatternKey{
					Category: fmt.Sprintf("category-%d", cat),
					Family:   fmt.Sprintf("family-%d", fam),
					Material: fmt.Sprintf("material-%d", mat),
				}
				h := key.Hash()
				if prev, dup := seen[h]; dup {
					t.Fatalf("Collision between %+v and %+v on %s", prev, key, h)
				}
				seen[h] = key
			}
		}
	}

	if len(seen) != 30*20*20 {
		t.Errorf("Expected %d distinct hashes, got %d", 30*20*20, len(seen))
	}
}

// TestNewPatternKeyNormalizes verifies key construction lower-cases every
// categorical field.
func TestNewPatternKeyNormalizes(t *testing.T) {
	key := NewPatternKey(ElementSnapshot{
		Category:     "Pipe",
		Family:       "M_Pipe Types",
		Type:         "Standard",
		Material:     "PVC",
		LocationType: "Underground",
	})

	want := PatternKey{
		Category:     "pipe",
		Family:       "m_pipe types",
		Type:         "standard",
		Material:     "pvc",
		LocationType: "underground",
	}
	if key != want {
		t.Errorf("Expected %+v, got %+v", want, key)
	}
}

// TestTruncateMetadataValue verifies the prompt display bound.
func TestTruncateMetadataValue(t *testing.T) {
	short := "DN50 galvanized"
	if got := TruncateMetadataValue(short); got != short {
		t.Errorf("Short value should pass through, got %q", got)
	}

	long := strings.Repeat("x", MaxMetadataValueLength+20)
	got := TruncateMetadataValue(long)
	if len([]rune(got)) != MaxMetadataValueLength+1 {
		t.Errorf("Expected %d runes (cap plus ellipsis), got %d", MaxMetadataValueLength+1, len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("Truncated value should end with ellipsis, got %q", got)
	}
}

// TestPromptSummaryBoundsMetadata verifies oversized metadata never reaches
// the classifier prompt untruncated.
func TestPromptSummaryBoundsMetadata(t *testing.T) {
	long := strings.Repeat("y", 500)
	pattern := Pattern{
		Key:          PatternKey{Category: "pipe", Material: "pvc"},
		ElementCount: 3,
		SampleElements: []ElementSnapshot{
			{ID: "e1", Metadata: map[string]string{"system": long}},
		},
	}

	summary := pattern.PromptSummary()
	if strings.Contains(summary, long) {
		t.Error("Prompt summary should truncate long metadata values")
	}
	if !strings.Contains(summary, "category=pipe") {
		t.Errorf("Prompt summary missing tuple fields: %s", summary)
	}
}
