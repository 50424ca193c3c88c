package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/harmonia-labs/livemix/internal/core/domain"
	"github.com/harmonia-labs/livemix/internal/core/ports"
	"github.com/harmonia-labs/livemix/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedPlayer replays a fixed sequence of snapshot results, repeating
// the last one once the script runs out.
type scriptedPlayer struct {
	mu     sync.Mutex
	script []snapshotResult
	i      int
}

type snapshotResult struct {
	state domain.PlaybackState
	err   error
}

func (p *scriptedPlayer) Snapshot(context.Context) (domain.PlaybackState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.script) == 0 {
		return domain.PlaybackState{}, ports.ErrNoActivePlayback
	}
	r := p.script[p.i]
	if p.i < len(p.script)-1 {
		p.i++
	}
	return r.state, r.err
}

func (p *scriptedPlayer) QueueTrack(context.Context, string) error { return nil }

type fakeHooks struct {
	mu       sync.Mutex
	finished []domain.FinishedTrack
	depth    int
	autoFill bool
}

func (h *fakeHooks) OnTrackFinished(_ context.Context, _ string, f domain.FinishedTrack) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = append(h.finished, f)
	return nil
}

func (h *fakeHooks) QueueStatus(context.Context, string) (int, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.depth, h.autoFill, nil
}

func (h *fakeHooks) finishedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.finished)
}

func playing(trackID, deviceID string, progress int) domain.PlaybackState {
	return domain.PlaybackState{
		Device:     domain.PlaybackDevice{ID: deviceID, Name: "Living Room", VolumePercent: 50},
		Item:       &domain.PlaybackItem{ID: trackID, Name: "Track " + trackID, Artists: []string{"Artist"}, DurationMs: 200_000},
		IsPlaying:  true,
		ProgressMs: progress,
	}
}

func newTestStreamer(player ports.PlayerProvider, hooks SessionHooks, cfg Config) *Streamer {
	if cfg.UserID == "" {
		cfg.UserID = "u1"
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}
	return New(player, hooks, worker.NewRunner(testLogger()), testLogger(), cfg)
}

// collect reads events until want types have been seen or the deadline
// passes, returning everything read.
func collect(t *testing.T, s *Streamer, want int) []Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	var got []Event
	for len(got) < want {
		select {
		case ev := <-s.Events():
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("timed out after %d events: %+v", len(got), got)
		}
	}
	return got
}

func TestDiff(t *testing.T) {
	base := playing("t1", "d1", 1000)

	tests := []struct {
		name string
		next func() domain.PlaybackState
		want []string
	}{
		{"no change", func() domain.PlaybackState { return base }, nil},
		{"track change", func() domain.PlaybackState { return playing("t2", "d1", 0) }, []string{EventTrack}},
		{"went idle", func() domain.PlaybackState {
			s := base
			s.Item = nil
			return s
		}, []string{EventIdle}},
		{"paused", func() domain.PlaybackState {
			s := base
			s.IsPlaying = false
			return s
		}, []string{EventState}},
		{"device handoff", func() domain.PlaybackState {
			s := playing("t1", "d2", 1000)
			s.Device.VolumePercent = 80
			return s
		}, []string{EventDevice}}, // volume change rides in the device event
		{"volume on same device", func() domain.PlaybackState {
			s := base
			s.Device.VolumePercent = 80
			return s
		}, []string{EventVolume}},
		{"shuffle toggled", func() domain.PlaybackState {
			s := base
			s.ShuffleState = true
			return s
		}, []string{EventModes}},
		{"context switched", func() domain.PlaybackState {
			s := base
			s.Context = &domain.PlaybackContext{URI: "spotify:playlist:p1"}
			return s
		}, []string{EventContext}},
		{"track and pause together", func() domain.PlaybackState {
			s := playing("t2", "d1", 0)
			s.IsPlaying = false
			return s
		}, []string{EventTrack, EventState}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := diff(base, tt.next())
			if len(events) != len(tt.want) {
				t.Fatalf("got %d events %+v, want %v", len(events), events, tt.want)
			}
			for i, ev := range events {
				if ev.Type != tt.want[i] {
					t.Errorf("event[%d] = %s, want %s", i, ev.Type, tt.want[i])
				}
			}
		})
	}
}

func TestStreamer_ConnectInitTick(t *testing.T) {
	player := &scriptedPlayer{script: []snapshotResult{{state: playing("t1", "d1", 1000)}}}
	s := newTestStreamer(player, &fakeHooks{}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	got := collect(t, s, 3)
	if got[0].Type != EventConnected || got[1].Type != EventInit || got[2].Type != EventTick {
		t.Fatalf("opening sequence = %s, %s, %s", got[0].Type, got[1].Type, got[2].Type)
	}
	if got[0].Seq >= got[1].Seq {
		t.Fatalf("seq not increasing: %d then %d", got[0].Seq, got[1].Seq)
	}
	if got[2].Seq != 0 {
		t.Fatalf("tick carries seq %d, want none", got[2].Seq)
	}
	if _, ok := got[1].Data.(domain.PlaybackState); !ok {
		t.Fatalf("init payload is %T, want full snapshot", got[1].Data)
	}
}

func TestStreamer_TrackChangeSchedulesTransition(t *testing.T) {
	player := &scriptedPlayer{script: []snapshotResult{
		{state: playing("t1", "d1", 1000)},
		{state: playing("t2", "d1", 0)},
	}}
	hooks := &fakeHooks{}
	s := newTestStreamer(player, hooks, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var track *Event
	for _, ev := range collect(t, s, 5) {
		if ev.Type == EventTrack {
			track = &ev
			break
		}
	}
	if track == nil {
		t.Fatal("no track event after the item changed")
	}

	deadline := time.After(2 * time.Second)
	for hooks.finishedCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("transition never reached the session hooks")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	hooks.mu.Lock()
	finished := hooks.finished[0]
	hooks.mu.Unlock()
	if finished.TrackID != "t1" {
		t.Fatalf("finished track = %s, want t1", finished.TrackID)
	}
	if finished.Artist != "Artist" {
		t.Fatalf("finished artist = %q", finished.Artist)
	}
}

func TestStreamer_SeqMonotonicExceptTick(t *testing.T) {
	player := &scriptedPlayer{script: []snapshotResult{
		{state: playing("t1", "d1", 1000)},
		{state: playing("t2", "d1", 0)},
		{state: playing("t3", "d1", 0)},
	}}
	s := newTestStreamer(player, &fakeHooks{}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var last int64
	for _, ev := range collect(t, s, 8) {
		if ev.Type == EventTick {
			if ev.Seq != 0 {
				t.Fatalf("tick carries seq %d", ev.Seq)
			}
			continue
		}
		if ev.Seq <= last {
			t.Fatalf("seq went %d -> %d on %s", last, ev.Seq, ev.Type)
		}
		last = ev.Seq
	}
}

func TestStreamer_IdleOnNoActivePlayback(t *testing.T) {
	player := &scriptedPlayer{script: []snapshotResult{
		{err: ports.ErrNoActivePlayback},
	}}
	s := newTestStreamer(player, &fakeHooks{}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	got := collect(t, s, 2)
	if got[1].Type != EventIdle {
		t.Fatalf("got %s, want idle", got[1].Type)
	}

	// Quiet stretches emit idle exactly once.
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected follow-up event %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStreamer_AuthExpiredCloses(t *testing.T) {
	player := &scriptedPlayer{script: []snapshotResult{
		{err: ports.ErrAuthExpired},
	}}
	s := newTestStreamer(player, &fakeHooks{}, Config{})

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	got := collect(t, s, 2)
	if got[1].Type != EventAuthExpired {
		t.Fatalf("got %s, want auth_expired", got[1].Type)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close on auth expiry")
	}
}

func TestStreamer_RepeatedFailuresClose(t *testing.T) {
	player := &scriptedPlayer{script: []snapshotResult{
		{err: errors.New("boom")},
	}}
	s := newTestStreamer(player, &fakeHooks{}, Config{})

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	got := collect(t, s, 1+maxConsecutiveFailures)
	for i, ev := range got[1:] {
		if ev.Type != EventError {
			t.Fatalf("event[%d] = %s, want error", i+1, ev.Type)
		}
		data := ev.Data.(errorData)
		wantRetryable := i < maxConsecutiveFailures-1
		if data.Retryable != wantRetryable {
			t.Fatalf("failure %d retryable = %v, want %v", i+1, data.Retryable, wantRetryable)
		}
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after repeated failures")
	}
}

func TestStreamer_QueueLowNotification(t *testing.T) {
	player := &scriptedPlayer{script: []snapshotResult{{state: playing("t1", "d1", 1000)}}}
	hooks := &fakeHooks{depth: 1, autoFill: true}
	s := newTestStreamer(player, hooks, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Type == EventQueueLow {
				if ev.Data.(queueLowData).Depth != 1 {
					t.Fatalf("queue_low depth = %+v", ev.Data)
				}
				return
			}
		case <-deadline:
			t.Fatal("queue_low never arrived")
		}
	}
}

func TestStreamer_LifetimeReconnect(t *testing.T) {
	player := &scriptedPlayer{script: []snapshotResult{{state: playing("t1", "d1", 1000)}}}
	s := newTestStreamer(player, &fakeHooks{}, Config{MaxLifetime: 30 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Type == EventReconnect {
				<-done
				return
			}
		case <-deadline:
			t.Fatal("reconnect never arrived")
		}
	}
}
