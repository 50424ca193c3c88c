// Package domain holds the core entities of the live mix engine. All
// invariants over sessions (queue and history bounds, contiguous queue
// positions, signal caps) are enforced here so callers cannot construct
// an inconsistent record.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxQueue bounds the upcoming-track queue.
	MaxQueue = 10
	// MaxHistory bounds the played-track history.
	MaxHistory = 20
	// MaxSignals bounds the listener signal log.
	MaxSignals = 50
	// TargetQueueDepth is the depth auto-fill keeps the queue at.
	TargetQueueDepth = 5
	// QueueLowWater is the depth below which the streamer emits queue_low.
	QueueLowWater = 3
	// SessionTTL is the idle lifetime of a session record; refreshed on
	// every write.
	SessionTTL = 8 * time.Hour
)

var (
	ErrSessionNotFound = errors.New("domain: session not found")
	ErrQueueFull       = errors.New("domain: queue full")
	ErrInvalidPosition = errors.New("domain: invalid queue position")
)

// AddedBy values for QueuedTrack.
const (
	AddedByUser = "user"
	AddedByAI   = "ai"
)

// QueuedTrack is an entry in the upcoming-track queue.
type QueuedTrack struct {
	TrackID    string `json:"trackId"`
	TrackURI   string `json:"trackUri"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMs int    `json:"durationMs"`
	AddedBy    string `json:"addedBy"`
	VibeScore  int    `json:"vibeScore"`
	Reason     string `json:"reason"`
	Position   int    `json:"position"`
}

// PlayedTrack is an immutable history entry.
type PlayedTrack struct {
	TrackID    string    `json:"trackId"`
	TrackURI   string    `json:"trackUri"`
	Name       string    `json:"name"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album,omitempty"`
	DurationMs int       `json:"durationMs"`
	PlayedAt   time.Time `json:"playedAt"`
	BPM        *float64  `json:"bpm,omitempty"`
	Energy     *float64  `json:"energy,omitempty"`
}

// SignalType classifies how a listener treated a track.
type SignalType string

const (
	SignalCompleted SignalType = "completed"
	SignalSkipped   SignalType = "skipped"
	SignalPartial   SignalType = "partial"
)

// ListenerSignal records one playback outcome.
type ListenerSignal struct {
	TrackID         string     `json:"trackId"`
	Type            SignalType `json:"type"`
	ListenDurationMs int       `json:"listenDurationMs"`
	TrackDurationMs  int       `json:"trackDurationMs"`
	Timestamp       time.Time  `json:"timestamp"`
}

// Preferences are per-session user toggles.
type Preferences struct {
	AutoFill     bool     `json:"autoFill"`
	AvoidArtists []string `json:"avoidArtists,omitempty"`
	AvoidTracks  []string `json:"avoidTracks,omitempty"`
	BPMLock      bool     `json:"bpmLock"`
}

// MixSession is the durable per-user DJ session record; one active at a
// time, keyed by user identity.
type MixSession struct {
	ID           string           `json:"id"`
	UserID       string           `json:"userId"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	Vibe         VibeProfile      `json:"vibe"`
	Queue        []QueuedTrack    `json:"queue"`
	History      []PlayedTrack    `json:"history"`
	Preferences  Preferences      `json:"preferences"`
	Signals      []ListenerSignal `json:"signals"`
	Taste        *TasteModel      `json:"tasteModel,omitempty"`
	FallbackPool []TrackRef       `json:"fallbackPool,omitempty"`
}

// NewMixSession creates a session with canonical defaults. Auto-fill is
// enabled by default; callers override through Preferences afterwards.
func NewMixSession(userID string) *MixSession {
	now := time.Now().UTC()
	return &MixSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Vibe:      DefaultVibe(),
		Queue:     []QueuedTrack{},
		History:   []PlayedTrack{},
		Signals:   []ListenerSignal{},
		Preferences: Preferences{
			AutoFill: true,
		},
	}
}

// Touch bumps UpdatedAt; stores refresh the TTL from it on every save.
func (s *MixSession) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// AddToQueue appends a track, assigning the next contiguous position.
func (s *MixSession) AddToQueue(t QueuedTrack) error {
	if len(s.Queue) >= MaxQueue {
		return ErrQueueFull
	}
	t.Position = len(s.Queue)
	s.Queue = append(s.Queue, t)
	return nil
}

// RemoveFromQueue deletes the track at pos and re-indexes.
func (s *MixSession) RemoveFromQueue(pos int) error {
	if pos < 0 || pos >= len(s.Queue) {
		return ErrInvalidPosition
	}
	s.Queue = append(s.Queue[:pos], s.Queue[pos+1:]...)
	s.reindexQueue()
	return nil
}

// ReorderQueue moves the track at from to position to.
func (s *MixSession) ReorderQueue(from, to int) error {
	if from < 0 || from >= len(s.Queue) || to < 0 || to >= len(s.Queue) {
		return ErrInvalidPosition
	}
	if from == to {
		return nil
	}
	t := s.Queue[from]
	s.Queue = append(s.Queue[:from], s.Queue[from+1:]...)
	s.Queue = append(s.Queue[:to], append([]QueuedTrack{t}, s.Queue[to:]...)...)
	s.reindexQueue()
	return nil
}

// PopQueueHead removes and returns the first queued track.
func (s *MixSession) PopQueueHead() (QueuedTrack, bool) {
	if len(s.Queue) == 0 {
		return QueuedTrack{}, false
	}
	head := s.Queue[0]
	s.Queue = s.Queue[1:]
	s.reindexQueue()
	return head, true
}

// ClearQueue drops every queued track, forcing a full replan on the next
// fill cycle.
func (s *MixSession) ClearQueue() {
	s.Queue = []QueuedTrack{}
}

func (s *MixSession) reindexQueue() {
	for i := range s.Queue {
		s.Queue[i].Position = i
	}
}

// AddToHistory prepends a played track (most-recent-first) and evicts
// the oldest entries past MaxHistory. BPM values outside (0,500] are
// discarded as sensor noise.
func (s *MixSession) AddToHistory(t PlayedTrack) {
	t.BPM = ClampBPM(t.BPM)
	s.History = append([]PlayedTrack{t}, s.History...)
	if len(s.History) > MaxHistory {
		s.History = s.History[:MaxHistory]
	}
}

// AddSignal appends a listener signal, dropping the oldest past MaxSignals.
func (s *MixSession) AddSignal(sig ListenerSignal) {
	s.Signals = append(s.Signals, sig)
	if len(s.Signals) > MaxSignals {
		s.Signals = s.Signals[len(s.Signals)-MaxSignals:]
	}
}

// RecentSkipRun reports whether the n most recent signals are all skips.
func (s *MixSession) RecentSkipRun(n int) bool {
	if n <= 0 || len(s.Signals) < n {
		return false
	}
	for _, sig := range s.Signals[len(s.Signals)-n:] {
		if sig.Type != SignalSkipped {
			return false
		}
	}
	return true
}

// HasTrack reports whether the track id is already queued or in history.
func (s *MixSession) HasTrack(trackID string) bool {
	for _, q := range s.Queue {
		if q.TrackID == trackID {
			return true
		}
	}
	for _, h := range s.History {
		if h.TrackID == trackID {
			return true
		}
	}
	return false
}

// RecentArtists returns the artists of the n most recent history entries.
func (s *MixSession) RecentArtists(n int) []string {
	if n > len(s.History) {
		n = len(s.History)
	}
	artists := make([]string, 0, n)
	for _, h := range s.History[:n] {
		artists = append(artists, h.Artist)
	}
	return artists
}

const (
	completedRatio  = 0.8
	skipThresholdMs = 30_000
)

// ClassifySignal derives the signal type from listen time against track
// duration: at least 80% listened is completed, under 30s is a skip, anything
// between is partial.
func ClassifySignal(listenMs, trackMs int) SignalType {
	if trackMs > 0 && float64(listenMs)/float64(trackMs) >= completedRatio {
		return SignalCompleted
	}
	if listenMs < skipThresholdMs {
		return SignalSkipped
	}
	return SignalPartial
}

// ClampBPM discards bpm readings outside the plausible (0,500] window.
func ClampBPM(bpm *float64) *float64 {
	if bpm == nil || *bpm <= 0 || *bpm > 500 {
		return nil
	}
	return bpm
}
