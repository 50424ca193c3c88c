package domain

// PlaybackDevice identifies the external device a snapshot came from.
type PlaybackDevice struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	VolumePercent int    `json:"volumePercent"`
}

// PlaybackContext is the album or playlist playback is attached to.
type PlaybackContext struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// PlaybackItem is the currently playing track as the device reports it.
type PlaybackItem struct {
	ID         string   `json:"id"`
	URI        string   `json:"uri"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album,omitempty"`
	DurationMs int      `json:"durationMs"`
	Popularity int      `json:"popularity,omitempty"`
	Explicit   bool     `json:"explicit,omitempty"`
}

// FinishedTrack is what the streamer observed about a track that just
// stopped playing: identity plus how long it was actually listened to.
type FinishedTrack struct {
	TrackID    string
	TrackURI   string
	Name       string
	Artist     string
	Album      string
	DurationMs int
	ListenMs   int
}

// PlaybackState is one snapshot of the external playback device. The
// delta streamer diffs consecutive snapshots; nothing else consumes it.
type PlaybackState struct {
	Device       PlaybackDevice   `json:"device"`
	ShuffleState bool             `json:"shuffleState"`
	RepeatState  string           `json:"repeatState"`
	Context      *PlaybackContext `json:"context,omitempty"`
	Item         *PlaybackItem    `json:"item,omitempty"`
	ProgressMs   int              `json:"progressMs"`
	IsPlaying    bool             `json:"isPlaying"`
}
