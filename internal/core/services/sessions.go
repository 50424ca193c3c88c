package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harmonia-labs/livemix/internal/core/domain"
	"github.com/harmonia-labs/livemix/internal/core/ports"
	"github.com/harmonia-labs/livemix/internal/core/scoring"
)

// Sessions coordinates the per-user mix session lifecycle: creation,
// queue edits, vibe updates and the played-track transition path. All
// state lives in the repository; this service is stateless.
type Sessions struct {
	repo     ports.SessionRepository
	catalog  ports.CatalogProvider
	player   ports.PlayerProvider
	tempo    ports.TempoProvider
	ai       ports.Completer
	autofill *AutoFill
	logger   *slog.Logger
}

// NewSessions constructs the session service.
func NewSessions(
	repo ports.SessionRepository,
	catalog ports.CatalogProvider,
	player ports.PlayerProvider,
	tempo ports.TempoProvider,
	ai ports.Completer,
	autofill *AutoFill,
	logger *slog.Logger,
) *Sessions {
	return &Sessions{
		repo:     repo,
		catalog:  catalog,
		player:   player,
		tempo:    tempo,
		ai:       ai,
		autofill: autofill,
		logger:   logger,
	}
}

// StartOptions tune session creation.
type StartOptions struct {
	AutoFill *bool
	Seed     []domain.TrackRef
	Vibe     *domain.VibePatch
}

// Start creates the user's session, or returns the existing one
// unchanged. Creation seeds the fallback pool, applies any initial vibe
// patch and runs one inline fill so the first queue is ready on return.
func (s *Sessions) Start(ctx context.Context, userID string, opts StartOptions) (*domain.MixSession, error) {
	if existing, err := s.repo.Get(ctx, userID); err == nil {
		return existing, nil
	} else if !isNotFound(err) {
		return nil, err
	}

	session := domain.NewMixSession(userID)
	if opts.AutoFill != nil {
		session.Preferences.AutoFill = *opts.AutoFill
	}
	session.FallbackPool = opts.Seed
	if opts.Vibe != nil {
		session.Vibe, _ = domain.BlendVibes(session.Vibe, *opts.Vibe, 1.0)
	}

	if err := s.repo.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("services: saving new session: %w", err)
	}
	s.logger.Info("session started", "user", userID, "session", session.ID, "autoFill", session.Preferences.AutoFill)

	if _, err := s.autofill.Fill(ctx, session); err != nil {
		s.logger.Warn("initial fill failed", "user", userID, "error", err)
	}
	return session, nil
}

// Get loads the session, topping the queue up opportunistically when
// auto-fill is on and the queue has drifted below target.
func (s *Sessions) Get(ctx context.Context, userID string) (*domain.MixSession, error) {
	session, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session.Preferences.AutoFill && len(session.Queue) < domain.TargetQueueDepth {
		if _, err := s.autofill.Fill(ctx, session); err != nil {
			s.logger.Warn("opportunistic fill failed", "user", userID, "error", err)
		}
	}
	return session, nil
}

// End deletes the session. Ending a session that does not exist is not
// an error.
func (s *Sessions) End(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil && !isNotFound(err) {
		return err
	}
	s.logger.Info("session ended", "user", userID)
	return nil
}

// AddToQueue resolves a name/artist pair through the catalog and
// appends it as a user-requested track, mirroring it onto the device
// queue best-effort.
func (s *Sessions) AddToQueue(ctx context.Context, userID, name, artist string) (domain.QueuedTrack, error) {
	session, err := s.repo.Get(ctx, userID)
	if err != nil {
		return domain.QueuedTrack{}, err
	}

	track, err := s.catalog.SearchTrack(ctx, name, artist)
	if err != nil {
		return domain.QueuedTrack{}, err
	}
	return s.queueResolved(ctx, session, track)
}

// AddTrackByID skips the search and queues a track the client already
// identified by catalog ID.
func (s *Sessions) AddTrackByID(ctx context.Context, userID, trackID string) (domain.QueuedTrack, error) {
	session, err := s.repo.Get(ctx, userID)
	if err != nil {
		return domain.QueuedTrack{}, err
	}

	track, err := s.catalog.GetTrack(ctx, trackID)
	if err != nil {
		return domain.QueuedTrack{}, err
	}
	return s.queueResolved(ctx, session, track)
}

func (s *Sessions) queueResolved(ctx context.Context, session *domain.MixSession, track domain.Track) (domain.QueuedTrack, error) {
	if session.HasTrack(track.ID) {
		return domain.QueuedTrack{}, fmt.Errorf("services: %q is already in the session", track.Name)
	}

	profile := domain.TrackProfile{Artist: track.Artist}
	if track.Year > 0 {
		year := track.Year
		profile.ReleaseYear = &year
	}
	entry := domain.QueuedTrack{
		TrackID:    track.ID,
		TrackURI:   track.URI,
		Name:       track.Name,
		Artist:     track.Artist,
		Album:      track.Album,
		DurationMs: track.DurationMs,
		AddedBy:    domain.AddedByUser,
		VibeScore:  scoring.VibeFit(profile, session.Vibe),
		Reason:     "requested by you",
	}
	if err := session.AddToQueue(entry); err != nil {
		return domain.QueuedTrack{}, err
	}
	session.Touch()
	if err := s.repo.Save(ctx, session); err != nil {
		return domain.QueuedTrack{}, err
	}

	s.mirrorToDevice(ctx, entry)
	return session.Queue[len(session.Queue)-1], nil
}

// RemoveFromQueue deletes the entry at pos.
func (s *Sessions) RemoveFromQueue(ctx context.Context, userID string, pos int) error {
	session, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := session.RemoveFromQueue(pos); err != nil {
		return err
	}
	session.Touch()
	return s.repo.Save(ctx, session)
}

// ReorderQueue moves the entry at from to position to.
func (s *Sessions) ReorderQueue(ctx context.Context, userID string, from, to int) error {
	session, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := session.ReorderQueue(from, to); err != nil {
		return err
	}
	session.Touch()
	return s.repo.Save(ctx, session)
}

// UpdateVibe blends an explicit patch into the vibe (weight 1.0 means
// replace outright), drops the now-stale AI picks from the queue and
// refills inline.
func (s *Sessions) UpdateVibe(ctx context.Context, userID string, patch domain.VibePatch, weight float64) (*domain.MixSession, []string, error) {
	session, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	vibe, changes := domain.BlendVibes(session.Vibe, patch, weight)
	session.Vibe = vibe
	if len(changes) > 0 {
		s.dropAIPicks(session)
	}
	session.Touch()
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, nil, err
	}
	s.logger.Info("vibe updated", "user", userID, "changes", changes)

	if _, err := s.autofill.Fill(ctx, session); err != nil {
		s.logger.Warn("post-vibe-change fill failed", "user", userID, "error", err)
	}
	return session, changes, nil
}

// SteerVibe interprets a free-text steering request ("take it darker
// and slower") into a vibe patch via the AI and applies it like an
// explicit vibe update.
func (s *Sessions) SteerVibe(ctx context.Context, userID, text string) (*domain.MixSession, []string, error) {
	session, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	patch, err := s.interpretSteering(ctx, session.Vibe, text)
	if err != nil {
		return nil, nil, fmt.Errorf("services: interpreting steering request: %w", err)
	}
	return s.UpdateVibe(ctx, userID, patch, 1.0)
}

// OnTrackFinished handles one observed track transition: classify the
// listen, record history and signal, nudge the vibe, update taste, and
// clear the queue on a three-skip run. Finishing the queue head also
// pops it. Tracks the engine never queued still land in history.
func (s *Sessions) OnTrackFinished(ctx context.Context, userID string, finished domain.FinishedTrack) error {
	session, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}

	sig := domain.ClassifySignal(finished.ListenMs, finished.DurationMs)

	played := domain.PlayedTrack{
		TrackID:    finished.TrackID,
		TrackURI:   finished.TrackURI,
		Name:       finished.Name,
		Artist:     finished.Artist,
		Album:      finished.Album,
		DurationMs: finished.DurationMs,
		PlayedAt:   time.Now().UTC(),
	}

	head, wasHead := s.matchQueueHead(session, finished.TrackID)
	if wasHead {
		session.PopQueueHead()
		played.Name = head.Name
		played.Artist = head.Artist
		played.Album = head.Album
		if played.DurationMs == 0 {
			played.DurationMs = head.DurationMs
		}
	}

	if bpm, err := s.tempo.TrackBPM(ctx, played.Name, played.Artist); err == nil {
		played.BPM = &bpm
	}

	session.AddToHistory(played)
	session.AddSignal(domain.ListenerSignal{
		TrackID:          finished.TrackID,
		Type:             sig,
		ListenDurationMs: finished.ListenMs,
		TrackDurationMs:  finished.DurationMs,
		Timestamp:        time.Now().UTC(),
	})
	// Only a promoted queue pick steers the vibe; a track the user put
	// on out-of-band is recorded but does not count as ours.
	if wasHead {
		session.Vibe = domain.NudgeVibeFromTrack(session.Vibe, played, session.History)
	}

	if session.Taste == nil {
		session.Taste = domain.NewTasteModel()
	}
	session.Taste.Observe(sig, played.Artist, session.Vibe.Genres)

	if session.RecentSkipRun(3) {
		s.logger.Info("three consecutive skips, replanning queue", "user", userID)
		session.ClearQueue()
	}

	session.Touch()
	if err := s.repo.Save(ctx, session); err != nil {
		return err
	}

	if session.Preferences.AutoFill && len(session.Queue) < domain.TargetQueueDepth {
		if _, err := s.autofill.Fill(ctx, session); err != nil {
			s.logger.Warn("post-transition fill failed", "user", userID, "error", err)
		}
	}
	return nil
}

// QueueStatus reports the queue depth and whether auto-fill is on,
// without triggering a fill. The streamer's queue_low check uses it.
func (s *Sessions) QueueStatus(ctx context.Context, userID string) (int, bool, error) {
	session, err := s.repo.Get(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	return len(session.Queue), session.Preferences.AutoFill, nil
}

func (s *Sessions) matchQueueHead(session *domain.MixSession, trackID string) (domain.QueuedTrack, bool) {
	if len(session.Queue) == 0 || trackID == "" {
		return domain.QueuedTrack{}, false
	}
	if session.Queue[0].TrackID != trackID {
		return domain.QueuedTrack{}, false
	}
	return session.Queue[0], true
}

func (s *Sessions) dropAIPicks(session *domain.MixSession) {
	kept := session.Queue[:0]
	for _, q := range session.Queue {
		if q.AddedBy == domain.AddedByUser {
			kept = append(kept, q)
		}
	}
	session.Queue = kept
	for i := range session.Queue {
		session.Queue[i].Position = i
	}
}

func (s *Sessions) mirrorToDevice(ctx context.Context, entry domain.QueuedTrack) {
	if entry.TrackURI == "" {
		return
	}
	if err := s.player.QueueTrack(ctx, entry.TrackURI); err != nil {
		s.logger.Warn("device queue mirror failed", "track", entry.Name, "error", err)
	}
}

const steeringSystemPrompt = "You translate a listener's natural-language steering request into " +
	"a JSON adjustment of the mix's vibe. Respond with ONLY a JSON object; omit fields " +
	"the request says nothing about. Fields: energyDelta (int, -9..9), " +
	"energyDirection (building|steady|winding_down), moods ([]string), genres ([]string), " +
	"bpmMin (number), bpmMax (number), eraStart (int year), eraEnd (int year)."

type steeringPatch struct {
	EnergyDelta     *int     `json:"energyDelta"`
	EnergyDirection *string  `json:"energyDirection"`
	Moods           []string `json:"moods"`
	Genres          []string `json:"genres"`
	BPMMin          *float64 `json:"bpmMin"`
	BPMMax          *float64 `json:"bpmMax"`
	EraStart        *int     `json:"eraStart"`
	EraEnd          *int     `json:"eraEnd"`
}

func (s *Sessions) interpretSteering(ctx context.Context, vibe domain.VibeProfile, text string) (domain.VibePatch, error) {
	prompt := fmt.Sprintf("Current vibe: %s.\nListener request: %q", describeVibe(vibe), text)

	aiCtx, cancel := context.WithTimeout(ctx, suggestTimeout)
	defer cancel()

	raw, err := s.ai.Complete(aiCtx, prompt, ports.CompletionOptions{System: steeringSystemPrompt})
	if err != nil {
		return domain.VibePatch{}, err
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return domain.VibePatch{}, fmt.Errorf("no JSON object in model output")
	}
	var sp steeringPatch
	if err := json.Unmarshal([]byte(raw[start:end+1]), &sp); err != nil {
		return domain.VibePatch{}, fmt.Errorf("decoding steering patch: %w", err)
	}

	patch := domain.VibePatch{
		Moods:    sp.Moods,
		Genres:   sp.Genres,
		BPMMin:   sp.BPMMin,
		BPMMax:   sp.BPMMax,
		EraStart: sp.EraStart,
		EraEnd:   sp.EraEnd,
	}
	if sp.EnergyDelta != nil {
		level := domain.ClampEnergy(vibe.EnergyLevel + *sp.EnergyDelta)
		patch.EnergyLevel = &level
	}
	if sp.EnergyDirection != nil {
		dir := domain.EnergyDirection(*sp.EnergyDirection)
		switch dir {
		case domain.EnergyBuilding, domain.EnergySteady, domain.EnergyWindingDown:
			patch.EnergyDirection = &dir
		}
	}
	return patch, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound)
}
