package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bimsense/internal/models"
)

// Classifier is the external classification collaborator: an opaque function
// invoked only on cache miss. Whatever generative machinery sits behind it
// is none of this service's business.
type Classifier interface {
	Classify(ctx context.Context, pattern models.Pattern) (*models.ClassificationSuggestion, error)
}

// HTTPClassifier calls a remote classification endpoint with a pattern
// summary and maps the response into a pending suggestion aggregate.
type HTTPClassifier struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClassifier creates a classifier adapter for the given endpoint.
func NewHTTPClassifier(endpoint string) *HTTPClassifier {
	return &HTTPClassifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

type classifyRequest struct {
	PatternHash string            `json:"pattern_hash"`
	Key         models.PatternKey `json:"key"`
	Summary     string            `json:"summary"`
}

type classifyResponse struct {
	CommodityCode    string               `json:"commodity_code"`
	PricingCode      string               `json:"pricing_code"`
	DerivedItems     []models.DerivedItem `json:"derived_items"`
	ReasoningSummary string               `json:"reasoning_summary"`
}

// Classify posts the pattern summary and builds the suggestion aggregate
// from the response. The suggestion targets the pattern's first sample
// element; callers fan the advisory result out to the rest of the group.
func (c *HTTPClassifier) Classify(ctx context.Context, pattern models.Pattern) (*models.ClassificationSuggestion, error) {
	if len(pattern.SampleElements) == 0 {
		return nil, fmt.Errorf("%w: pattern has no sample elements", models.ErrValidation)
	}

	body, err := json.Marshal(classifyRequest{
		PatternHash: pattern.Hash,
		Key:         pattern.Key,
		Summary:     pattern.PromptSummary(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, snippet)
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	return models.NewClassificationSuggestion(
		pattern.SampleElements[0].ID,
		pattern.Hash,
		parsed.CommodityCode,
		parsed.PricingCode,
		parsed.DerivedItems,
		parsed.ReasoningSummary,
	)
}
