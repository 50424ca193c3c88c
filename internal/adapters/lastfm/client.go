// Package lastfm adapts the Last.fm API to the SimilarityProvider port:
// similar tracks for the fallback suggestion tier and community tags
// for scoring profiles.
package lastfm

import (
	"context"
	"fmt"
	"strings"

	"github.com/shkh/lastfm-go/lastfm"

	"github.com/harmonia-labs/livemix/internal/core/domain"
	"github.com/harmonia-labs/livemix/internal/core/ports"
)

const maxTags = 5

// Client wraps the Last.fm track API.
type Client struct {
	api *lastfm.Api
}

var _ ports.SimilarityProvider = (*Client)(nil)

// New creates a Client with the given API credentials.
func New(apiKey, apiSecret string) *Client {
	return &Client{api: lastfm.New(apiKey, apiSecret)}
}

// SimilarTracks returns up to limit crowd-sourced similar tracks,
// ordered by match score as Last.fm reports them.
func (c *Client) SimilarTracks(ctx context.Context, name, artist string, limit int) ([]domain.TrackRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	result, err := c.api.Track.GetSimilar(lastfm.P{
		"track":  name,
		"artist": artist,
		"limit":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("lastfm: get similar tracks: %w", err)
	}

	refs := make([]domain.TrackRef, 0, len(result.Tracks))
	for _, t := range result.Tracks {
		if t.Name == "" || t.Artist.Name == "" {
			continue
		}
		refs = append(refs, domain.TrackRef{Name: t.Name, Artist: t.Artist.Name})
	}
	return refs, nil
}

// TrackTags returns the top community tags for a track, lower-cased,
// capped at five.
func (c *Client) TrackTags(ctx context.Context, name, artist string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := c.api.Track.GetTopTags(lastfm.P{
		"track":  name,
		"artist": artist,
	})
	if err != nil {
		return nil, fmt.Errorf("lastfm: get top tags: %w", err)
	}

	tags := make([]string, 0, maxTags)
	for _, tag := range result.Tags {
		if tag.Name == "" {
			continue
		}
		tags = append(tags, strings.ToLower(tag.Name))
		if len(tags) == maxTags {
			break
		}
	}
	return tags, nil
}
