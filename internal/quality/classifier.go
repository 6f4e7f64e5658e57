package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
	"github.com/Fantasim/nanas/internal/upstream"
)

// HTTPClassifier asks a remote grading service for a rubric and scores it locally.
type HTTPClassifier struct {
	client   *http.Client
	endpoint string
	guard    *upstream.Guard
}

// NewHTTPClassifier creates a classifier posting content references to endpoint.
func NewHTTPClassifier(client *http.Client, endpoint string) *HTTPClassifier {
	if client == nil {
		client = &http.Client{Timeout: config.CollaboratorTimeout}
	}
	slog.Info("quality classifier created", "endpoint", endpoint)
	return &HTTPClassifier{
		client:   client,
		endpoint: endpoint,
		guard:    upstream.NewGuard("quality", config.RateLimitQuality),
	}
}

// Classify implements scoring.QualityClassifier.
func (c *HTTPClassifier) Classify(ctx context.Context, ref models.ContentRef) (float64, error) {
	body, err := json.Marshal(ref)
	if err != nil {
		return 0, fmt.Errorf("%w: marshal content ref: %w", config.ErrQualityClassifierFailed, err)
	}

	var rubric Rubric
	err = c.guard.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		if err := upstream.CheckStatus("quality", resp); err != nil {
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(&rubric); err != nil {
			return fmt.Errorf("decode rubric: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", config.ErrQualityClassifierFailed, ref.VideoID, err)
	}

	result := RubricScore(rubric)
	slog.Debug("content quality graded",
		"videoID", ref.VideoID,
		"base", result.Base,
		"penalty", result.Penalty,
		"overall", result.Overall,
		"band", result.Band,
	)
	return result.Overall, nil
}

// Breaker exposes the upstream circuit breaker for health reporting.
func (c *HTTPClassifier) Breaker() *upstream.CircuitBreaker {
	return c.guard.Breaker()
}

// StaticClassifier returns the same score for every content item.
// Used offline by the score CLI and in tests.
type StaticClassifier struct {
	Score float64
}

// Classify implements scoring.QualityClassifier.
func (s StaticClassifier) Classify(_ context.Context, _ models.ContentRef) (float64, error) {
	return s.Score, nil
}
