package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/harmonia-labs/livemix/internal/core/domain"
	"github.com/harmonia-labs/livemix/internal/core/ports"
	"github.com/harmonia-labs/livemix/internal/ratelimit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLimiter() *ratelimit.Limiter {
	return ratelimit.New(ratelimit.DefaultLanes(), 0)
}

// fakeRepo is an in-memory SessionRepository.
type fakeRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.MixSession
	saves    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: make(map[string]*domain.MixSession)}
}

func (r *fakeRepo) Get(_ context.Context, userID string) (*domain.MixSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) Save(_ context.Context, s *domain.MixSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.UserID] = &cp
	r.saves++
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	return nil
}

// fakeCatalog resolves any name/artist into a deterministic track, or
// fails for names listed in misses.
type fakeCatalog struct {
	mu     sync.Mutex
	misses map[string]bool
	calls  int
}

func (c *fakeCatalog) SearchTrack(_ context.Context, title, artist string) (domain.Track, error) {
	c.mu.Lock()
	c.calls++
	miss := c.misses[title]
	c.mu.Unlock()
	if miss {
		return domain.Track{}, ports.NoConfidentMatchError{Title: title, Artist: artist}
	}
	id := strings.ToLower(strings.ReplaceAll(title+"-"+artist, " ", "-"))
	return domain.Track{
		ID:         id,
		URI:        "spotify:track:" + id,
		Name:       title,
		Artist:     artist,
		DurationMs: 200_000,
		Year:       2020,
	}, nil
}

func (c *fakeCatalog) GetTrack(_ context.Context, id string) (domain.Track, error) {
	c.mu.Lock()
	c.calls++
	miss := c.misses[id]
	c.mu.Unlock()
	if miss {
		return domain.Track{}, ports.NoConfidentMatchError{}
	}
	return domain.Track{
		ID:         id,
		URI:        "spotify:track:" + id,
		Name:       strings.ReplaceAll(id, "-", " "),
		Artist:     "Some Artist",
		DurationMs: 200_000,
		Year:       2020,
	}, nil
}

// fakeAI returns scripted responses in order, then repeats the last.
type fakeAI struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (a *fakeAI) Complete(_ context.Context, prompt string, _ ports.CompletionOptions) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = append(a.prompts, prompt)
	if a.err != nil {
		return "", a.err
	}
	if len(a.responses) == 0 {
		return "[]", nil
	}
	resp := a.responses[0]
	if len(a.responses) > 1 {
		a.responses = a.responses[1:]
	}
	return resp, nil
}

// fakeSimilar serves a fixed similarity graph and tag table.
type fakeSimilar struct {
	similar map[string][]domain.TrackRef // keyed by track name
	tags    map[string][]string
	err     error
}

func (f *fakeSimilar) SimilarTracks(_ context.Context, name, _ string, _ int) ([]domain.TrackRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.similar[name], nil
}

func (f *fakeSimilar) TrackTags(_ context.Context, name, _ string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if tags, ok := f.tags[name]; ok {
		return tags, nil
	}
	return nil, fmt.Errorf("no tags for %s", name)
}

// fakeTempo serves bpm by track name.
type fakeTempo struct {
	bpm map[string]float64
}

func (f *fakeTempo) TrackBPM(_ context.Context, name, _ string) (float64, error) {
	if bpm, ok := f.bpm[name]; ok {
		return bpm, nil
	}
	return 0, fmt.Errorf("no tempo for %s", name)
}

// fakePlayer records queued URIs.
type fakePlayer struct {
	mu       sync.Mutex
	snapshot domain.PlaybackState
	snapErr  error
	queued   []string
	queueErr error
}

func (p *fakePlayer) Snapshot(_ context.Context) (domain.PlaybackState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot, p.snapErr
}

func (p *fakePlayer) QueueTrack(_ context.Context, uri string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queueErr != nil {
		return p.queueErr
	}
	p.queued = append(p.queued, uri)
	return nil
}

// aiTrackList renders name/artist pairs as the JSON array the prompts
// ask for.
func aiTrackList(pairs ...[2]string) string {
	items := make([]string, 0, len(pairs))
	for _, p := range pairs {
		items = append(items, fmt.Sprintf(`{"name": %q, "artist": %q}`, p[0], p[1]))
	}
	return "[" + strings.Join(items, ", ") + "]"
}

type testStack struct {
	repo     *fakeRepo
	catalog  *fakeCatalog
	similar  *fakeSimilar
	tempo    *fakeTempo
	ai       *fakeAI
	player   *fakePlayer
	suggest  *Suggester
	autofill *AutoFill
	sessions *Sessions
}

func newTestStack() *testStack {
	st := &testStack{
		repo:    newFakeRepo(),
		catalog: &fakeCatalog{misses: map[string]bool{}},
		similar: &fakeSimilar{similar: map[string][]domain.TrackRef{}, tags: map[string][]string{}},
		tempo:   &fakeTempo{bpm: map[string]float64{}},
		ai:      &fakeAI{},
		player:  &fakePlayer{},
	}
	logger := testLogger()
	st.suggest = NewSuggester(st.catalog, st.similar, st.tempo, st.ai, testLimiter(), logger)
	st.autofill = NewAutoFill(st.repo, st.suggest, st.player, logger)
	st.sessions = NewSessions(st.repo, st.catalog, st.player, st.tempo, st.ai, st.autofill, logger)
	return st
}
