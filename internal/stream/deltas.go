// Package stream implements the playback delta streamer: a per-client
// poll loop against the external playback device that turns consecutive
// snapshots into a sequence of small SSE events.
package stream

import (
	"github.com/harmonia-labs/livemix/internal/core/domain"
)

// Event types emitted over the stream. Every type except tick carries a
// monotonically increasing seq so clients can detect gaps after a
// reconnect.
const (
	EventConnected   = "connected"
	EventInit        = "init"
	EventTick        = "tick"
	EventTrack       = "track"
	EventIdle        = "idle"
	EventState       = "state"
	EventDevice      = "device"
	EventModes       = "modes"
	EventVolume      = "volume"
	EventContext     = "context"
	EventQueueLow    = "queue_low"
	EventAuthExpired = "auth_expired"
	EventError       = "error"
	EventReconnect   = "reconnect"
)

// Event is one frame on the wire.
type Event struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq,omitempty"`
	Data any    `json:"data,omitempty"`
}

type trackData struct {
	Item       *domain.PlaybackItem `json:"item"`
	ProgressMs int                  `json:"progressMs"`
	IsPlaying  bool                 `json:"isPlaying"`
}

type stateData struct {
	IsPlaying  bool `json:"isPlaying"`
	ProgressMs int  `json:"progressMs"`
}

type modesData struct {
	ShuffleState bool   `json:"shuffleState"`
	RepeatState  string `json:"repeatState"`
}

type volumeData struct {
	VolumePercent int `json:"volumePercent"`
}

type tickData struct {
	ProgressMs int `json:"progressMs"`
}

type queueLowData struct {
	Depth int `json:"depth"`
}

type errorData struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// diff computes the delta events between two successive playback
// snapshots, in a stable order: track change first, then play state,
// device, modes, volume and context. Volume is only reported while the
// device itself is unchanged, otherwise it rides along in the device
// event.
func diff(prev, next domain.PlaybackState) []Event {
	var events []Event

	if trackChanged(prev.Item, next.Item) {
		if next.Item == nil {
			events = append(events, Event{Type: EventIdle})
		} else {
			events = append(events, Event{Type: EventTrack, Data: trackData{
				Item:       next.Item,
				ProgressMs: next.ProgressMs,
				IsPlaying:  next.IsPlaying,
			}})
		}
	}

	if prev.IsPlaying != next.IsPlaying {
		events = append(events, Event{Type: EventState, Data: stateData{
			IsPlaying:  next.IsPlaying,
			ProgressMs: next.ProgressMs,
		}})
	}

	sameDevice := prev.Device.ID == next.Device.ID
	if !sameDevice {
		events = append(events, Event{Type: EventDevice, Data: next.Device})
	}

	if prev.ShuffleState != next.ShuffleState || prev.RepeatState != next.RepeatState {
		events = append(events, Event{Type: EventModes, Data: modesData{
			ShuffleState: next.ShuffleState,
			RepeatState:  next.RepeatState,
		}})
	}

	if sameDevice && prev.Device.VolumePercent != next.Device.VolumePercent {
		events = append(events, Event{Type: EventVolume, Data: volumeData{
			VolumePercent: next.Device.VolumePercent,
		}})
	}

	if contextChanged(prev.Context, next.Context) {
		events = append(events, Event{Type: EventContext, Data: next.Context})
	}

	return events
}

func trackChanged(prev, next *domain.PlaybackItem) bool {
	switch {
	case prev == nil && next == nil:
		return false
	case prev == nil || next == nil:
		return true
	default:
		return prev.ID != next.ID
	}
}

func contextChanged(prev, next *domain.PlaybackContext) bool {
	switch {
	case prev == nil && next == nil:
		return false
	case prev == nil || next == nil:
		return true
	default:
		return prev.URI != next.URI
	}
}
