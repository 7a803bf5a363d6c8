package models

import "time"

// MaxMetadataValueLength caps metadata values when an element or pattern is
// rendered into a classifier prompt. Longer values are truncated with an
// ellipsis so a single oversized property cannot blow up the prompt.
const MaxMetadataValueLength = 80

// ElementSnapshot is a read-only record of one BIM element as resolved from
// the element source. This service never mutates elements; snapshots are
// grouped into patterns and sampled for classification prompts.
type ElementSnapshot struct {
	ID         string `bson:"_id" json:"id"`
	ExternalID string `bson:"externalId" json:"external_id"`
	ProjectID  string `bson:"projectId" json:"project_id"`

	// Categorical fields. Empty string means the element does not carry
	// the field; grouping and hashing treat absent and empty identically.
	Category     string `bson:"category" json:"category"`
	Family       string `bson:"family,omitempty" json:"family,omitempty"`
	Type         string `bson:"type,omitempty" json:"type,omitempty"`
	Spec         string `bson:"spec,omitempty" json:"spec,omitempty"`
	LocationType string `bson:"locationType,omitempty" json:"location_type,omitempty"`
	Material     string `bson:"material,omitempty" json:"material,omitempty"`

	// Dimensions are independently optional; nil means the element does
	// not report that dimension.
	Length   *float64 `bson:"length,omitempty" json:"length,omitempty"`
	Width    *float64 `bson:"width,omitempty" json:"width,omitempty"`
	Height   *float64 `bson:"height,omitempty" json:"height,omitempty"`
	Diameter *float64 `bson:"diameter,omitempty" json:"diameter,omitempty"`

	// Metadata is an opaque key/value bag owned upstream.
	Metadata map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`

	CreatedAt time.Time `bson:"createdAt,omitempty" json:"created_at,omitempty"`
}

// TruncateMetadataValue bounds a metadata value for prompt display.
func TruncateMetadataValue(v string) string {
	if len(v) <= MaxMetadataValueLength {
		return v
	}
	return v[:MaxMetadataValueLength] + "…"
}
