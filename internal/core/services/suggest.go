package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harmonia-labs/livemix/internal/core/domain"
	"github.com/harmonia-labs/livemix/internal/core/ports"
	"github.com/harmonia-labs/livemix/internal/core/scoring"
	"github.com/harmonia-labs/livemix/internal/ratelimit"
)

// suggestTimeout bounds the AI-assisted tier; losing the race means
// "produced zero suggestions", not an error.
const suggestTimeout = 8 * time.Second

const fallbackScore = 50

// Suggester produces ranked next-track candidates for a session. Three
// tiers share one scoring contract: AI generation, a similarity-graph
// walk, and the precomputed fallback pool, each engaged only when the
// tier above produced nothing usable.
type Suggester struct {
	catalog ports.CatalogProvider
	similar ports.SimilarityProvider
	tempo   ports.TempoProvider
	ai      ports.Completer
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	timeout time.Duration
}

// NewSuggester constructs a Suggester.
func NewSuggester(
	catalog ports.CatalogProvider,
	similar ports.SimilarityProvider,
	tempo ports.TempoProvider,
	ai ports.Completer,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
) *Suggester {
	return &Suggester{
		catalog: catalog,
		similar: similar,
		tempo:   tempo,
		ai:      ai,
		limiter: limiter,
		logger:  logger,
		timeout: suggestTimeout,
	}
}

// Generate returns up to count ranked candidates. Upstream failures
// degrade tier by tier and never surface as errors; only context
// cancellation aborts.
func (g *Suggester) Generate(ctx context.Context, session *domain.MixSession, count int) ([]domain.QueuedTrack, error) {
	if count <= 0 {
		count = domain.TargetQueueDepth
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(session.History) == 0 {
		// First-ever fill: AI only. A failed cold start stays empty;
		// the fallback pool is the auto-fill coordinator's concern.
		return g.coldStart(ctx, session, count), nil
	}

	if picks := g.withHistory(ctx, session, count); len(picks) > 0 {
		return picks, nil
	}
	g.logger.Info("ai suggestion tier produced nothing, walking similarity graph", "user", session.UserID)
	return g.similarWalk(ctx, session, count), nil
}

// DrainPool consumes the session's fallback pool front-to-back,
// resolving entries and enqueueing them with a fixed neutral score.
// Entries already queued or played are discarded along the way.
func (g *Suggester) DrainPool(ctx context.Context, session *domain.MixSession, count int) []domain.QueuedTrack {
	var picks []domain.QueuedTrack
	for len(picks) < count && len(session.FallbackPool) > 0 {
		ref := session.FallbackPool[0]
		session.FallbackPool = session.FallbackPool[1:]

		track, err := g.resolveRef(ctx, ref)
		if err != nil {
			g.logger.Warn("fallback pool entry did not resolve", "name", ref.Name, "artist", ref.Artist, "error", err)
			continue
		}
		if session.HasTrack(track.ID) {
			continue
		}
		picks = append(picks, queuedFromTrack(track, fallbackScore, "from the session's fallback pool"))
	}
	return picks
}

// --- tier 1: cold start ---

func (g *Suggester) coldStart(ctx context.Context, session *domain.MixSession, count int) []domain.QueuedTrack {
	prompt := coldStartPrompt(session.Vibe, count*2)

	aiCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var text string
	err := g.limiter.Execute(aiCtx, ratelimit.LaneAI, func(ctx context.Context) error {
		var err error
		text, err = g.ai.Complete(ctx, prompt, ports.CompletionOptions{System: djSystemPrompt})
		return err
	})
	if err != nil {
		g.logger.Warn("cold start generation failed", "error", err)
		return nil
	}

	refs := parseTrackRefs(text)
	if len(refs) == 0 {
		return nil
	}

	candidates := g.resolveAndProfile(ctx, refs, nil)

	// Select the best fits, then sequence that set across a planned arc
	// so the opening stretch plays in a coherent order.
	fit := make(map[string]int, len(candidates))
	for _, c := range candidates {
		fit[c.Track.ID] = scoring.VibeFit(c.Profile, session.Vibe)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return fit[candidates[i].Track.ID] > fit[candidates[j].Track.ID]
	})
	if len(candidates) > count {
		candidates = candidates[:count]
	}

	ordered := scoring.OrderByTransition(candidates, arcPhases(session.Vibe), nil)
	picks := make([]domain.QueuedTrack, 0, len(ordered))
	for _, seq := range ordered {
		picks = append(picks, queuedFromTrack(seq.Track, fit[seq.Track.ID], seq.Reason))
	}
	return picks
}

// arcPhases plans the listening arc the cold-start sequencing targets,
// from the vibe's energy level and direction.
func arcPhases(v domain.VibeProfile) []scoring.ArcPhase {
	target := float64(v.EnergyLevel) / 10
	switch v.EnergyDirection {
	case domain.EnergyBuilding:
		return []scoring.ArcPhase{
			{Name: "warmup", TargetEnergy: clamp01(target - 0.2), DurationMin: 20},
			{Name: "build", TargetEnergy: target, DurationMin: 20},
			{Name: "peak", TargetEnergy: clamp01(target + 0.2), DurationMin: 20},
		}
	case domain.EnergyWindingDown:
		return []scoring.ArcPhase{
			{Name: "glide", TargetEnergy: target, DurationMin: 30},
			{Name: "landing", TargetEnergy: clamp01(target - 0.25), DurationMin: 30},
		}
	default:
		return []scoring.ArcPhase{{Name: "steady", TargetEnergy: target, DurationMin: 60}}
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// --- tier 2: history-aware AI ---

func (g *Suggester) withHistory(ctx context.Context, session *domain.MixSession, count int) []domain.QueuedTrack {
	prompt := historyPrompt(session, count)

	aiCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var text string
	err := g.limiter.Execute(aiCtx, ratelimit.LaneAI, func(ctx context.Context) error {
		var err error
		text, err = g.ai.Complete(ctx, prompt, ports.CompletionOptions{
			System:          djSystemPrompt,
			ReasoningBudget: 1024,
		})
		return err
	})
	if err != nil {
		g.logger.Warn("history-aware generation failed", "error", err)
		return nil
	}

	refs := parseTrackRefs(text)
	if len(refs) == 0 {
		return nil
	}
	return g.rankAgainstSession(ctx, session, refs, count)
}

// --- tier 3: similarity-graph walk ---

func (g *Suggester) similarWalk(ctx context.Context, session *domain.MixSession, count int) []domain.QueuedTrack {
	anchors := session.History
	if len(anchors) > 3 {
		anchors = anchors[:3]
	}

	seen := make(map[string]struct{})
	var refs []domain.TrackRef
	for _, anchor := range anchors {
		similar, err := g.similarTracks(ctx, anchor.Name, anchor.Artist, count)
		if err != nil {
			g.logger.Warn("similarity lookup failed", "track", anchor.Name, "error", err)
			continue
		}
		for _, ref := range similar {
			key := strings.ToLower(ref.Artist + "|" + ref.Name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return nil
	}
	if len(refs) > count*2 {
		refs = refs[:count*2]
	}
	return g.rankAgainstSession(ctx, session, refs, count)
}

func (g *Suggester) similarTracks(ctx context.Context, name, artist string, limit int) ([]domain.TrackRef, error) {
	var out []domain.TrackRef
	err := g.limiter.Execute(ctx, ratelimit.LaneSimilarity, func(ctx context.Context) error {
		var err error
		out, err = g.similar.SimilarTracks(ctx, name, artist, limit)
		return err
	})
	return out, err
}

// rankAgainstSession scores resolved candidates against the vibe and
// against transition quality from the most recently played track; the
// two halves average into the final rank.
func (g *Suggester) rankAgainstSession(ctx context.Context, session *domain.MixSession, refs []domain.TrackRef, count int) []domain.QueuedTrack {
	exclude := func(t domain.Track) bool { return session.HasTrack(t.ID) }
	candidates := g.resolveAndProfile(ctx, refs, exclude)
	if len(candidates) == 0 {
		return nil
	}

	prev := g.profileFromPlayed(ctx, session.History[0])
	recent := session.RecentArtists(5)
	phase := scoring.ArcPhase{
		Name:         string(session.Vibe.EnergyDirection),
		TargetEnergy: float64(session.Vibe.EnergyLevel) / 10,
	}

	picks := make([]domain.QueuedTrack, 0, len(candidates))
	for _, c := range candidates {
		vibeFit := scoring.VibeFit(c.Profile, session.Vibe)
		transition := scoring.Score(prev, c.Profile, phase, recent)
		combined := scoring.CombinedScore(vibeFit, transition)
		reason := fmt.Sprintf("follows %s well: %s", session.History[0].Name, transitionSummary(transition))
		picks = append(picks, queuedFromTrack(c.Track, combined, reason))
	}
	sortByScore(picks)
	return topN(picks, count)
}

// --- resolution & enrichment ---

// resolveAndProfile resolves refs through the catalog lane and enriches
// each hit with tags and tempo, fanned out under the per-provider lane
// caps. Failures drop the candidate or leave the attribute unknown.
func (g *Suggester) resolveAndProfile(ctx context.Context, refs []domain.TrackRef, exclude func(domain.Track) bool) []scoring.Candidate {
	resolved := make([]*domain.Track, len(refs))
	tasks := make([]ratelimit.Task, len(refs))
	for i, ref := range refs {
		tasks[i] = func(ctx context.Context) error {
			track, err := g.catalog.SearchTrack(ctx, ref.Name, ref.Artist)
			if err != nil {
				g.logger.Debug("candidate did not resolve", "name", ref.Name, "artist", ref.Artist, "error", err)
				return nil // unresolvable candidates are dropped, not fatal
			}
			resolved[i] = &track
			return nil
		}
	}
	if err := g.limiter.ExecuteBatch(ctx, ratelimit.LaneCatalog, tasks); err != nil {
		g.logger.Warn("catalog resolution batch aborted", "error", err)
	}

	var candidates []scoring.Candidate
	seen := make(map[string]struct{})
	for _, track := range resolved {
		if track == nil {
			continue
		}
		if _, dup := seen[track.ID]; dup {
			continue
		}
		seen[track.ID] = struct{}{}
		if exclude != nil && exclude(*track) {
			continue
		}
		candidates = append(candidates, scoring.Candidate{Track: *track})
	}

	g.enrich(ctx, candidates)
	return candidates
}

// enrich fills in tags and bpm for each candidate in parallel. Both
// providers are best-effort; a miss leaves the field nil and scoring
// stays neutral.
func (g *Suggester) enrich(ctx context.Context, candidates []scoring.Candidate) {
	var wg sync.WaitGroup
	for i := range candidates {
		c := &candidates[i]
		c.Profile.Artist = c.Track.Artist
		if c.Track.Year > 0 {
			year := c.Track.Year
			c.Profile.ReleaseYear = &year
		}

		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = g.limiter.Execute(ctx, ratelimit.LaneSimilarity, func(ctx context.Context) error {
				tags, err := g.similar.TrackTags(ctx, c.Track.Name, c.Track.Artist)
				if err == nil {
					c.Profile.Tags = tags
				}
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = g.limiter.Execute(ctx, ratelimit.LaneTempo, func(ctx context.Context) error {
				bpm, err := g.tempo.TrackBPM(ctx, c.Track.Name, c.Track.Artist)
				if err == nil {
					c.Profile.BPM = &bpm
				}
				return nil
			})
		}()
	}
	wg.Wait()
}

func (g *Suggester) resolveRef(ctx context.Context, ref domain.TrackRef) (domain.Track, error) {
	var track domain.Track
	err := g.limiter.Execute(ctx, ratelimit.LaneCatalog, func(ctx context.Context) error {
		var err error
		track, err = g.catalog.SearchTrack(ctx, ref.Name, ref.Artist)
		return err
	})
	return track, err
}

// profileFromPlayed builds the transition anchor from a history entry,
// reusing stored bpm/energy and pulling tags best-effort.
func (g *Suggester) profileFromPlayed(ctx context.Context, played domain.PlayedTrack) domain.TrackProfile {
	profile := domain.TrackProfile{
		Artist: played.Artist,
		BPM:    played.BPM,
		Energy: played.Energy,
	}
	_ = g.limiter.Execute(ctx, ratelimit.LaneSimilarity, func(ctx context.Context) error {
		tags, err := g.similar.TrackTags(ctx, played.Name, played.Artist)
		if err == nil {
			profile.Tags = tags
		}
		return nil
	})
	return profile
}

// --- prompts and parsing ---

const djSystemPrompt = "You are a seasoned club DJ planning what plays next. " +
	"Answer with ONLY a JSON array of objects, each {\"name\": \"...\", \"artist\": \"...\"}. " +
	"No commentary outside the JSON."

func coldStartPrompt(vibe domain.VibeProfile, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest %d real tracks matching this vibe: %s.\n", n, describeVibe(vibe))
	b.WriteString("Prefer well-known recordings that a streaming catalog will have.")
	return b.String()
}

func historyPrompt(session *domain.MixSession, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pick the next %d tracks for a live mix.\nTarget vibe: %s.\n", n, describeVibe(session.Vibe))

	b.WriteString("Recently played, newest first:\n")
	recent := session.History
	if len(recent) > 5 {
		recent = recent[:5]
	}
	for _, h := range recent {
		fmt.Fprintf(&b, "- %s by %s", h.Name, h.Artist)
		if h.BPM != nil {
			fmt.Fprintf(&b, " (%.0f bpm)", *h.BPM)
		}
		b.WriteString("\n")
	}

	if t := session.Taste; t != nil {
		if liked := t.Liked(0.2); len(liked) > 0 {
			fmt.Fprintf(&b, "The listener is enjoying: %s.\n", strings.Join(liked, ", "))
		}
		if disliked := t.Disliked(0.2); len(disliked) > 0 {
			fmt.Fprintf(&b, "The listener is not enjoying: %s.\n", strings.Join(disliked, ", "))
		}
		if len(t.SkippedArtists) > 0 {
			fmt.Fprintf(&b, "Avoid these recently skipped artists: %s.\n", strings.Join(t.SkippedArtists, ", "))
		}
	}

	b.WriteString("Do not repeat anything already played.")
	return b.String()
}

func describeVibe(v domain.VibeProfile) string {
	var parts []string
	if len(v.Genres) > 0 {
		parts = append(parts, strings.Join(v.Genres, "/"))
	}
	if len(v.Moods) > 0 {
		parts = append(parts, strings.Join(v.Moods, ", ")+" mood")
	}
	parts = append(parts, fmt.Sprintf("energy %d/10 and %s", v.EnergyLevel, strings.ReplaceAll(string(v.EnergyDirection), "_", " ")))
	if v.BPMMax > 0 {
		parts = append(parts, fmt.Sprintf("%.0f-%.0f bpm", v.BPMMin, v.BPMMax))
	}
	if v.EraStart > 0 {
		parts = append(parts, fmt.Sprintf("from %d-%d", v.EraStart, v.EraEnd))
	}
	return strings.Join(parts, ", ")
}

func transitionSummary(s scoring.TransitionScore) string {
	switch {
	case s.Overall >= 0.8:
		return "a near-seamless transition"
	case s.Overall >= 0.6:
		return "a solid transition"
	default:
		return "a workable change of pace"
	}
}

// parseTrackRefs extracts a JSON array of name/artist objects from
// free-form model output, tolerating fenced code blocks and prose
// around the payload.
func parseTrackRefs(text string) []domain.TrackRef {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		return nil
	}

	var raw []struct {
		Name   string `json:"name"`
		Title  string `json:"title"`
		Artist string `json:"artist"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil
	}

	refs := make([]domain.TrackRef, 0, len(raw))
	for _, r := range raw {
		name := r.Name
		if name == "" {
			name = r.Title
		}
		if name == "" || r.Artist == "" {
			continue
		}
		refs = append(refs, domain.TrackRef{Name: name, Artist: r.Artist})
	}
	return refs
}

// --- shared helpers ---

func queuedFromTrack(t domain.Track, score int, reason string) domain.QueuedTrack {
	return domain.QueuedTrack{
		TrackID:    t.ID,
		TrackURI:   t.URI,
		Name:       t.Name,
		Artist:     t.Artist,
		Album:      t.Album,
		DurationMs: t.DurationMs,
		AddedBy:    domain.AddedByAI,
		VibeScore:  score,
		Reason:     reason,
	}
}

func sortByScore(picks []domain.QueuedTrack) {
	sort.SliceStable(picks, func(i, j int) bool {
		return picks[i].VibeScore > picks[j].VibeScore
	})
}

func topN(picks []domain.QueuedTrack, n int) []domain.QueuedTrack {
	if len(picks) > n {
		picks = picks[:n]
	}
	return picks
}
