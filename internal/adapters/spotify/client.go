// Package spotify adapts the streaming provider's Web API to the
// catalog and player ports. The HTTP client is injected already wrapped
// with oauth2 token handling; this package never touches credentials.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/harmonia-labs/livemix/internal/core/domain"
	"github.com/harmonia-labs/livemix/internal/core/ports"
)

const defaultBaseURL = "https://api.spotify.com/v1"

// Client talks to the Spotify Web API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// compile-time interface assertions
var (
	_ ports.CatalogProvider = (*Client)(nil)
	_ ports.PlayerProvider  = (*Client)(nil)
)

// NewClient constructs a Client. httpClient should carry authorization
// (an oauth2 transport); baseURL defaults to the public API.
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

const searchMatchThreshold = 0.70

// SearchTrack resolves a title/artist pair against the catalog, scoring
// the top results for confidence. Returns a NoConfidentMatchError when
// nothing scores above the threshold.
func (c *Client) SearchTrack(ctx context.Context, title, artist string) (domain.Track, error) {
	searchURL, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return domain.Track{}, fmt.Errorf("spotify adapter: invalid search url: %w", err)
	}

	query := searchURL.Query()
	query.Set("q", fmt.Sprintf("track:%s artist:%s", title, artist))
	query.Set("type", "track")
	query.Set("limit", "5")
	searchURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return domain.Track{}, fmt.Errorf("spotify adapter: build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Track{}, fmt.Errorf("spotify adapter: search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Track{}, fmt.Errorf("spotify adapter: search status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Track{}, fmt.Errorf("spotify adapter: search decode error: %w", err)
	}

	bestScore := 0.0
	bestIndex := -1
	for i, candidate := range body.Tracks.Items {
		score := trackMatchScore(title, artist, candidate)
		if score >= searchMatchThreshold && score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}
	if bestIndex == -1 {
		return domain.Track{}, fmt.Errorf("spotify adapter: %w", ports.NoConfidentMatchError{Title: title, Artist: artist})
	}

	c.logger.Debug("catalog match", "title", title, "artist", artist, "score", bestScore)
	return body.Tracks.Items[bestIndex].toDomain(), nil
}

// GetTrack fetches a single track by its catalog ID. An unknown ID
// surfaces as ErrNoConfidentMatch so callers treat it like a failed
// search.
func (c *Client) GetTrack(ctx context.Context, id string) (domain.Track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tracks/"+url.PathEscape(id), nil)
	if err != nil {
		return domain.Track{}, fmt.Errorf("spotify adapter: build track request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Track{}, fmt.Errorf("spotify adapter: track request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		return domain.Track{}, fmt.Errorf("spotify adapter: track %s: %w", id, ports.NoConfidentMatchError{})
	default:
		return domain.Track{}, fmt.Errorf("spotify adapter: track status %d", resp.StatusCode)
	}

	var body wireTrack
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Track{}, fmt.Errorf("spotify adapter: track decode error: %w", err)
	}
	return body.toDomain(), nil
}

// Snapshot fetches the current playback state of the user's active
// device. A 204 maps to ErrNoActivePlayback, a 401 to ErrAuthExpired.
func (c *Client) Snapshot(ctx context.Context) (domain.PlaybackState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/me/player", nil)
	if err != nil {
		return domain.PlaybackState{}, fmt.Errorf("spotify adapter: build player request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PlaybackState{}, fmt.Errorf("spotify adapter: player request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNoContent:
		return domain.PlaybackState{}, ports.ErrNoActivePlayback
	case http.StatusUnauthorized:
		return domain.PlaybackState{}, ports.ErrAuthExpired
	default:
		return domain.PlaybackState{}, fmt.Errorf("spotify adapter: player status %d", resp.StatusCode)
	}

	var body playerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.PlaybackState{}, fmt.Errorf("spotify adapter: player decode error: %w", err)
	}
	return body.toDomain(), nil
}

// QueueTrack pushes a track into the device's native playback queue.
// Best-effort from the caller's point of view; a failure here never
// blocks session state.
func (c *Client) QueueTrack(ctx context.Context, trackURI string) error {
	queueURL := fmt.Sprintf("%s/me/player/queue?uri=%s", c.baseURL, url.QueryEscape(trackURI))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, queueURL, nil)
	if err != nil {
		return fmt.Errorf("spotify adapter: build queue request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("spotify adapter: queue request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ports.ErrAuthExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("spotify adapter: queue status %d", resp.StatusCode)
	}
	return nil
}
