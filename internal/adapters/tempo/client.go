// Package tempo adapts a GetSongBPM-style lookup service to the
// TempoProvider port.
package tempo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/harmonia-labs/livemix/internal/core/ports"
)

// Client queries the tempo lookup API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ ports.TempoProvider = (*Client)(nil)

type searchResponse struct {
	Search []struct {
		Tempo string `json:"tempo"`
		Title string `json:"song_title"`
	} `json:"search"`
}

// NewClient constructs a Client for the given endpoint and key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// TrackBPM looks up a track's tempo by name and artist. Readings the
// API cannot provide, or that parse to an implausible value, come back
// as an error so scoring can stay neutral.
func (c *Client) TrackBPM(ctx context.Context, name, artist string) (float64, error) {
	lookupURL, err := url.Parse(c.baseURL + "/search/")
	if err != nil {
		return 0, fmt.Errorf("tempo adapter: invalid url: %w", err)
	}

	query := lookupURL.Query()
	query.Set("type", "both")
	query.Set("lookup", fmt.Sprintf("song:%s artist:%s", name, artist))
	query.Set("api_key", c.apiKey)
	lookupURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("tempo adapter: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("tempo adapter: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("tempo adapter: status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("tempo adapter: decode error: %w", err)
	}
	if len(body.Search) == 0 {
		return 0, fmt.Errorf("tempo adapter: no result for %q by %q", name, artist)
	}

	bpm, err := strconv.ParseFloat(body.Search[0].Tempo, 64)
	if err != nil {
		return 0, fmt.Errorf("tempo adapter: unparsable tempo %q: %w", body.Search[0].Tempo, err)
	}
	if bpm <= 0 || bpm > 500 {
		return 0, fmt.Errorf("tempo adapter: implausible tempo %v", bpm)
	}
	return bpm, nil
}
