// Package analysis calls the external scan-inference service to produce an
// analysis payload for a newly created diagnosis. The service is best-effort:
// when it is unreachable or misbehaves, a placeholder result is returned so
// diagnosis creation never fails on inference.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Finding is a single labeled observation with a model confidence score.
type Finding struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Result is the analysis payload stored on a diagnosis.
type Result struct {
	Summary      string    `json:"summary"`
	Findings     []Finding `json:"findings,omitempty"`
	ModelVersion string    `json:"model_version,omitempty"`
	Placeholder  bool      `json:"placeholder"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
}

// Request carries what the inference service needs about a diagnosis.
type Request struct {
	DiagnosisID string   `json:"diagnosis_id"`
	ScanType    string   `json:"scan_type"`
	Title       string   `json:"title"`
	Notes       string   `json:"notes,omitempty"`
	ImageIDs    []string `json:"image_ids,omitempty"`
}

// Analyzer produces an analysis result for a diagnosis.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) *Result
}

// Client calls a remote inference endpoint over HTTP.
type Client struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewClient builds an Analyzer for the given endpoint. An empty URL yields a
// client that always returns placeholders.
func NewClient(url string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "analysis").Logger(),
	}
}

// Analyze posts the diagnosis to the inference service. Any failure, including
// a missing endpoint, degrades to Placeholder().
func (c *Client) Analyze(ctx context.Context, req Request) *Result {
	if c.url == "" {
		return Placeholder()
	}

	result, err := c.call(ctx, req)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("diagnosis_id", req.DiagnosisID).
			Msg("analysis request failed, using placeholder")
		return Placeholder()
	}
	return result
}

func (c *Client) call(ctx context.Context, req Request) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call analyzer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analyzer returned %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result.Placeholder = false
	if result.AnalyzedAt.IsZero() {
		result.AnalyzedAt = time.Now().UTC()
	}
	return &result, nil
}

// Placeholder is the result stored when no analysis is available.
func Placeholder() *Result {
	return &Result{
		Summary:     "Automated analysis unavailable; pending manual review.",
		Placeholder: true,
		AnalyzedAt:  time.Now().UTC(),
	}
}
