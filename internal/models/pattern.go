package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// PatternHashLength is the length in hex characters of a pattern cache key.
// 32 hex chars = 128 bits of the combined digest, plenty of headroom against
// birthday collisions across any realistic element corpus.
const PatternHashLength = 32

// DefaultSampleSize is the default bound on a pattern's representative
// element sample.
const DefaultSampleSize = 50

// PatternKey is the normalized categorical tuple that identifies a pattern.
// All fields are lower-cased at construction; two elements belong to the
// same pattern when their normalized tuples match exactly.
type PatternKey struct {
	Category     string `bson:"category" json:"category"`
	Family       string `bson:"family" json:"family"`
	Type         string `bson:"type" json:"type"`
	Material     string `bson:"material" json:"material"`
	LocationType string `bson:"locationType" json:"location_type"`
}

// NewPatternKey builds the normalized key for an element snapshot.
func NewPatternKey(e ElementSnapshot) PatternKey {
	return PatternKey{
		Category:     strings.ToLower(e.Category),
		Family:       strings.ToLower(e.Family),
		Type:         strings.ToLower(e.Type),
		Material:     strings.ToLower(e.Material),
		LocationType: strings.ToLower(e.LocationType),
	}
}

// Hash returns the deterministic cache key for this tuple.
//
// Each field is lower-cased and hashed independently, then the five field
// digests are hashed together and the result truncated to PatternHashLength
// hex characters. Hashing fields separately (rather than joining them with a
// delimiter) means a field value containing any particular byte sequence can
// never collide with a different split of the same concatenation. Absent
// fields hash as the empty string, so "missing" and "explicitly empty" yield
// the same key.
func (k PatternKey) Hash() string {
	outer := sha256.New()
	for _, field := range []string{k.Category, k.Family, k.Type, k.Material, k.LocationType} {
		d := sha256.Sum256([]byte(strings.ToLower(field)))
		outer.Write(d[:])
	}
	return hex.EncodeToString(outer.Sum(nil))[:PatternHashLength]
}

// DimensionStats summarizes one dimension across every element of a pattern
// (not just the sample). A nil *DimensionStats on PatternDimensions means no
// element in the group reports that dimension.
type DimensionStats struct {
	Min float64 `bson:"min" json:"min"`
	Max float64 `bson:"max" json:"max"`
	Avg float64 `bson:"avg" json:"avg"`
}

// PatternDimensions holds per-dimension statistics, each independently
// optional.
type PatternDimensions struct {
	Length   *DimensionStats `bson:"length,omitempty" json:"length,omitempty"`
	Width    *DimensionStats `bson:"width,omitempty" json:"width,omitempty"`
	Height   *DimensionStats `bson:"height,omitempty" json:"height,omitempty"`
	Diameter *DimensionStats `bson:"diameter,omitempty" json:"diameter,omitempty"`
}

// Pattern is an ephemeral aggregation of elements sharing one categorical
// tuple. It is never persisted; it exists to drive cache lookups and
// classifier prompts.
type Pattern struct {
	Key            PatternKey        `json:"key"`
	Hash           string            `json:"hash"`
	ElementCount   int               `json:"element_count"`
	SampleElements []ElementSnapshot `json:"sample_elements"`
	Dimensions     PatternDimensions `json:"dimensions"`
}

// PromptSummary renders a compact textual description of the pattern for the
// classification collaborator: the categorical tuple, element count,
// dimension ranges, and the first sample element's metadata with values
// bounded at MaxMetadataValueLength.
func (p Pattern) PromptSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "category=%s family=%s type=%s material=%s location=%s elements=%d",
		p.Key.Category, p.Key.Family, p.Key.Type, p.Key.Material, p.Key.LocationType, p.ElementCount)

	writeDim := func(name string, d *DimensionStats) {
		if d != nil {
			fmt.Fprintf(&b, "\n%s: min=%.2f max=%.2f avg=%.2f", name, d.Min, d.Max, d.Avg)
		}
	}
	writeDim("length", p.Dimensions.Length)
	writeDim("width", p.Dimensions.Width)
	writeDim("height", p.Dimensions.Height)
	writeDim("diameter", p.Dimensions.Diameter)

	if len(p.SampleElements) > 0 && len(p.SampleElements[0].Metadata) > 0 {
		meta := p.SampleElements[0].Metadata
		keys := make([]string, 0, len(meta))
		for k := range meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %s", k, TruncateMetadataValue(meta[k]))
		}
	}
	return b.String()
}
