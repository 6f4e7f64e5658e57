package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
	"github.com/Fantasim/nanas/internal/upstream"
)

// oembedResponse is the subset of the oEmbed document we use.
type oembedResponse struct {
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
	AuthorName   string `json:"author_name"`
	ProviderName string `json:"provider_name"`
}

// HTTPFetcher resolves a content URL into title, thumbnail and engagement counts.
// Title and thumbnail come from an oEmbed endpoint; counts come from the stats
// service at {statsURL}/{videoID}.
type HTTPFetcher struct {
	client    *http.Client
	oembedURL string
	statsURL  string
	guard     *upstream.Guard
}

// NewHTTPFetcher creates a fetcher. A nil client uses one with CollaboratorTimeout.
func NewHTTPFetcher(client *http.Client, oembedURL, statsURL string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: config.CollaboratorTimeout}
	}

	slog.Info("metadata fetcher created",
		"oembedURL", oembedURL,
		"statsURL", statsURL,
	)

	return &HTTPFetcher{
		client:    client,
		oembedURL: oembedURL,
		statsURL:  strings.TrimRight(statsURL, "/"),
		guard:     upstream.NewGuard("metadata", config.RateLimitMetadata),
	}
}

// Fetch returns metadata for contentURL. Any upstream failure is reported as
// ErrMetadataFetchFailed; counts are never synthesized.
func (f *HTTPFetcher) Fetch(ctx context.Context, contentURL string) (models.VideoMetadata, error) {
	videoID, err := ExtractVideoID(contentURL)
	if err != nil {
		return models.VideoMetadata{}, err
	}

	var embed oembedResponse
	err = f.guard.Do(ctx, func(ctx context.Context) error {
		return f.getJSON(ctx, f.oembedURL+"?url="+url.QueryEscape(contentURL), &embed)
	})
	if err != nil {
		return models.VideoMetadata{}, fmt.Errorf("%w: oembed for %s: %w", config.ErrMetadataFetchFailed, videoID, err)
	}

	if f.statsURL == "" {
		return models.VideoMetadata{}, fmt.Errorf("%w: no stats endpoint configured", config.ErrMetadataFetchFailed)
	}

	var metrics models.EngagementMetrics
	err = f.guard.Do(ctx, func(ctx context.Context) error {
		return f.getJSON(ctx, f.statsURL+"/"+url.PathEscape(videoID), &metrics)
	})
	if err != nil {
		return models.VideoMetadata{}, fmt.Errorf("%w: stats for %s: %w", config.ErrMetadataFetchFailed, videoID, err)
	}
	if metrics.Views < 0 || metrics.Likes < 0 || metrics.Comments < 0 || metrics.Shares < 0 {
		return models.VideoMetadata{}, fmt.Errorf("%w: stats for %s contain negative counts", config.ErrMetadataFetchFailed, videoID)
	}

	slog.Debug("video metadata fetched",
		"videoID", videoID,
		"title", embed.Title,
		"views", metrics.Views,
	)

	return models.VideoMetadata{
		VideoID:      videoID,
		Title:        embed.Title,
		ThumbnailURL: embed.ThumbnailURL,
		AuthorName:   embed.AuthorName,
		ProviderName: embed.ProviderName,
		Metrics:      metrics,
	}, nil
}

// Breaker exposes the upstream circuit breaker for health reporting.
func (f *HTTPFetcher) Breaker() *upstream.CircuitBreaker {
	return f.guard.Breaker()
}

func (f *HTTPFetcher) getJSON(ctx context.Context, target string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := upstream.CheckStatus("metadata", resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
