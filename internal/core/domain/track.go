package domain

// Track represents a catalog track as resolved by the streaming provider.
type Track struct {
	ID         string
	URI        string
	Name       string
	Artist     string
	Album      string
	CoverURL   string
	DurationMs int
	Popularity int
	Explicit   bool
	Year       int // release year, 0 when unknown
}

// TrackRef is an unresolved name/artist pair, as produced by the AI
// generator, the similarity provider, or a seeded fallback pool.
type TrackRef struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

// TrackProfile carries the musical attributes scoring operates on.
// Nil fields mean the attribute is unknown; scorers treat unknowns as
// neutral rather than penalizing them.
type TrackProfile struct {
	Artist      string
	BPM         *float64
	Energy      *float64 // 0..1
	ReleaseYear *int
	Tags        []string
}
