package spotify

import (
	"strings"

	"github.com/harmonia-labs/livemix/internal/core/domain"
)

// Raw API shapes. Only the fields the engine consumes are declared.

type wireArtist struct {
	Name string `json:"name"`
}

type wireAlbum struct {
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"` // year, year-month, or full date
	Images      []struct {
		URL string `json:"url"`
	} `json:"images"`
}

type wireTrack struct {
	ID         string       `json:"id"`
	URI        string       `json:"uri"`
	Name       string       `json:"name"`
	Artists    []wireArtist `json:"artists"`
	Album      wireAlbum    `json:"album"`
	DurationMs int          `json:"duration_ms"`
	Popularity int          `json:"popularity"`
	Explicit   bool         `json:"explicit"`
}

type searchResponse struct {
	Tracks struct {
		Items []wireTrack `json:"items"`
	} `json:"tracks"`
}

type playerResponse struct {
	Device struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Type          string `json:"type"`
		VolumePercent int    `json:"volume_percent"`
	} `json:"device"`
	ShuffleState bool   `json:"shuffle_state"`
	RepeatState  string `json:"repeat_state"`
	Context      *struct {
		URI  string `json:"uri"`
		Type string `json:"type"`
	} `json:"context"`
	Item       *wireTrack `json:"item"`
	ProgressMs int        `json:"progress_ms"`
	IsPlaying  bool       `json:"is_playing"`
}

func (t wireTrack) toDomain() domain.Track {
	coverURL := ""
	if len(t.Album.Images) > 0 {
		coverURL = t.Album.Images[0].URL
	}
	return domain.Track{
		ID:         t.ID,
		URI:        t.URI,
		Name:       t.Name,
		Artist:     joinArtistNames(t),
		Album:      t.Album.Name,
		CoverURL:   coverURL,
		DurationMs: t.DurationMs,
		Popularity: t.Popularity,
		Explicit:   t.Explicit,
		Year:       releaseYear(t.Album.ReleaseDate),
	}
}

func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year := 0
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return 0
		}
		year = year*10 + int(r-'0')
	}
	return year
}

func (p playerResponse) toDomain() domain.PlaybackState {
	state := domain.PlaybackState{
		Device: domain.PlaybackDevice{
			ID:            p.Device.ID,
			Name:          p.Device.Name,
			Type:          p.Device.Type,
			VolumePercent: p.Device.VolumePercent,
		},
		ShuffleState: p.ShuffleState,
		RepeatState:  p.RepeatState,
		ProgressMs:   p.ProgressMs,
		IsPlaying:    p.IsPlaying,
	}
	if p.Context != nil {
		state.Context = &domain.PlaybackContext{URI: p.Context.URI, Type: p.Context.Type}
	}
	if p.Item != nil {
		artists := make([]string, 0, len(p.Item.Artists))
		for _, a := range p.Item.Artists {
			artists = append(artists, a.Name)
		}
		state.Item = &domain.PlaybackItem{
			ID:         p.Item.ID,
			URI:        p.Item.URI,
			Name:       p.Item.Name,
			Artists:    artists,
			Album:      p.Item.Album.Name,
			DurationMs: p.Item.DurationMs,
			Popularity: p.Item.Popularity,
			Explicit:   p.Item.Explicit,
		}
	}
	return state
}

func joinArtistNames(t wireTrack) string {
	parts := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		parts = append(parts, a.Name)
	}
	return strings.Join(parts, ", ")
}
