package stream

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/harmonia-labs/livemix/internal/core/domain"
	"github.com/harmonia-labs/livemix/internal/core/ports"
	"github.com/harmonia-labs/livemix/internal/worker"
)

const (
	// DefaultPollInterval is how often the device is polled.
	DefaultPollInterval = 3 * time.Second
	// DefaultMaxLifetime bounds one stream; clients reconnect after it.
	DefaultMaxLifetime = 30 * time.Minute

	// maxConsecutiveFailures closes the stream; transient blips under
	// this stay retryable.
	maxConsecutiveFailures = 5
	// queueLowEvery is the poll multiple at which the queue-low check
	// runs in the background.
	queueLowEvery = 3

	eventBuffer = 64
)

// SessionHooks is the slice of the session service the streamer needs:
// reporting an observed track transition and peeking at queue depth.
type SessionHooks interface {
	OnTrackFinished(ctx context.Context, userID string, finished domain.FinishedTrack) error
	QueueStatus(ctx context.Context, userID string) (depth int, autoFill bool, err error)
}

// Config tunes one streamer instance.
type Config struct {
	UserID       string
	PollInterval time.Duration
	MaxLifetime  time.Duration
}

// Streamer polls the playback device and converts snapshot-to-snapshot
// changes into events. One Streamer serves one SSE client; Run blocks
// until the stream ends.
type Streamer struct {
	player ports.PlayerProvider
	hooks  SessionHooks
	runner *worker.Runner
	logger *slog.Logger
	cfg    Config

	events chan Event
	seq    atomic.Int64

	// poll-loop state, touched only from Run.
	prev       *domain.PlaybackState
	gotInit    bool
	idle       bool
	trackStart time.Time
	failures   int
	polls      int
}

// New builds a streamer for one client.
func New(player ports.PlayerProvider, hooks SessionHooks, runner *worker.Runner, logger *slog.Logger, cfg Config) *Streamer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxLifetime <= 0 {
		cfg.MaxLifetime = DefaultMaxLifetime
	}
	return &Streamer{
		player: player,
		hooks:  hooks,
		runner: runner,
		logger: logger,
		cfg:    cfg,
		events: make(chan Event, eventBuffer),
	}
}

// Events is the stream of frames to write to the client. The channel is
// never closed; Run returning is the end-of-stream signal.
func (s *Streamer) Events() <-chan Event {
	return s.events
}

// Run drives the poll loop until the context is canceled, the lifetime
// expires, auth expires, or failures accumulate.
func (s *Streamer) Run(ctx context.Context) {
	s.emit(EventConnected, nil)

	lifetime := time.NewTimer(s.cfg.MaxLifetime)
	defer lifetime.Stop()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	if s.poll(ctx) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-lifetime.C:
			s.emit(EventReconnect, nil)
			return
		case <-ticker.C:
			if s.poll(ctx) {
				return
			}
		}
	}
}

// poll takes one snapshot and emits whatever changed. Returns true when
// the stream should close.
func (s *Streamer) poll(ctx context.Context) (stop bool) {
	s.polls++
	if s.polls%queueLowEvery == 0 {
		s.checkQueueLow()
	}

	state, err := s.player.Snapshot(ctx)
	switch {
	case errors.Is(err, ports.ErrAuthExpired):
		s.emit(EventAuthExpired, nil)
		return true
	case errors.Is(err, ports.ErrNoActivePlayback):
		s.failures = 0
		s.goIdle()
		return false
	case err != nil:
		if ctx.Err() != nil {
			return true
		}
		s.failures++
		retryable := s.failures < maxConsecutiveFailures
		s.emit(EventError, errorData{Message: "playback poll failed", Retryable: retryable})
		if !retryable {
			s.logger.Warn("closing stream after repeated poll failures", "user", s.cfg.UserID, "failures", s.failures, "error", err)
		}
		return !retryable
	}
	s.failures = 0
	s.idle = false

	if !s.gotInit {
		s.gotInit = true
		s.prev = &state
		s.trackStart = time.Now()
		s.emit(EventInit, state)
		if state.IsPlaying {
			s.tick(state.ProgressMs)
		}
		return false
	}

	for _, ev := range diff(*s.prev, state) {
		if ev.Type == EventTrack || ev.Type == EventIdle {
			s.scheduleTransition(s.prev.Item)
			s.trackStart = time.Now()
		}
		s.emit(ev.Type, ev.Data)
	}
	if state.IsPlaying {
		s.tick(state.ProgressMs)
	}
	s.prev = &state
	return false
}

// goIdle reports the device going quiet, once per quiet stretch. A
// track that was mid-play when the device vanished still gets its
// transition recorded.
func (s *Streamer) goIdle() {
	if s.idle {
		return
	}
	if s.prev != nil && s.prev.Item != nil {
		s.scheduleTransition(s.prev.Item)
	}
	s.idle = true
	s.prev = nil
	s.gotInit = false // next playback re-inits the client
	s.emit(EventIdle, nil)
}

// scheduleTransition hands the just-finished track to the session
// service in the background, with the listen time observed since the
// track first appeared in a snapshot.
func (s *Streamer) scheduleTransition(item *domain.PlaybackItem) {
	if item == nil {
		return
	}
	finished := domain.FinishedTrack{
		TrackID:    item.ID,
		TrackURI:   item.URI,
		Name:       item.Name,
		Artist:     strings.Join(item.Artists, ", "),
		Album:      item.Album,
		DurationMs: item.DurationMs,
		ListenMs:   int(time.Since(s.trackStart).Milliseconds()),
	}
	userID := s.cfg.UserID
	s.runner.Go("track-transition", func(ctx context.Context) error {
		return s.hooks.OnTrackFinished(ctx, userID, finished)
	})
}

// checkQueueLow peeks at queue depth off the poll loop and nudges the
// client when auto-fill is on but the queue has run down anyway.
func (s *Streamer) checkQueueLow() {
	userID := s.cfg.UserID
	s.runner.Go("queue-low-check", func(ctx context.Context) error {
		depth, autoFill, err := s.hooks.QueueStatus(ctx, userID)
		if err != nil {
			return err
		}
		if autoFill && depth < domain.QueueLowWater {
			s.emit(EventQueueLow, queueLowData{Depth: depth})
		}
		return nil
	})
}

// emit numbers and buffers an event. A full buffer means the client is
// not draining; the frame is dropped rather than stalling the poll loop.
func (s *Streamer) emit(eventType string, data any) {
	ev := Event{Type: eventType, Seq: s.seq.Add(1), Data: data}
	select {
	case s.events <- ev:
	default:
		s.logger.Debug("event buffer full, dropping frame", "user", s.cfg.UserID, "type", eventType)
	}
}

// tick is the progress heartbeat; it carries no seq so clients never
// treat a missed tick as a gap.
func (s *Streamer) tick(progressMs int) {
	select {
	case s.events <- Event{Type: EventTick, Data: tickData{ProgressMs: progressMs}}:
	default:
	}
}
