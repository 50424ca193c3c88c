package scoring

import (
	"math"
	"testing"

	"github.com/harmonia-labs/livemix/internal/core/domain"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func TestBPMCompatibility(t *testing.T) {
	tests := []struct {
		name string
		a, b *float64
		want float64
	}{
		{"identical", f64(128), f64(128), 1.0},
		{"within ten bpm", f64(128), f64(137), 1.0},
		{"exactly ten apart", f64(120), f64(130), 1.0},
		{"either side nil is neutral", nil, f64(120), 0.5},
		{"both nil is neutral", nil, nil, 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := BPMCompatibility(tc.a, tc.b); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}

	t.Run("gaussian decay beyond window", func(t *testing.T) {
		// 25 apart: excess 15, one sigma out.
		got := BPMCompatibility(f64(100), f64(125))
		want := math.Exp(-0.5)
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("got %v, want %v", got, want)
		}
		if got >= 1.0 || got <= 0 {
			t.Fatalf("decay out of range: %v", got)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		pairs := [][2]float64{{100, 125}, {90, 200}, {128, 129}, {60, 61}}
		for _, p := range pairs {
			ab := BPMCompatibility(f64(p[0]), f64(p[1]))
			ba := BPMCompatibility(f64(p[1]), f64(p[0]))
			if ab != ba {
				t.Fatalf("asymmetric for %v: %v != %v", p, ab, ba)
			}
		}
	})
}

func TestEnergyFlow(t *testing.T) {
	if got := EnergyFlow(f64(0.6), 0.7); got != 1.0 {
		t.Fatalf("within tolerance: got %v", got)
	}
	if got := EnergyFlow(nil, 0.7); got != 0.5 {
		t.Fatalf("nil energy: got %v", got)
	}
	far := EnergyFlow(f64(0.1), 0.9)
	if far >= 0.5 || far <= 0 {
		t.Fatalf("distant energy should decay strongly: %v", far)
	}
}

func TestGenreBridge(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical single tag", []string{"House"}, []string{"house"}, 1.0},
		{"disjoint", []string{"house"}, []string{"metal"}, 0.0},
		{"half overlap", []string{"house", "techno"}, []string{"house", "ambient"}, 1.0 / 3.0},
		{"empty side neutral", nil, []string{"house"}, 0.5},
		{"both empty neutral", nil, nil, 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := GenreBridge(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestArtistDiversity(t *testing.T) {
	recent := []string{"A", "B", "C", "D", "E", "F"}

	if got := ArtistDiversity("f", recent); got != 0 {
		t.Fatalf("recent artist (case-insensitive): got %v, want 0", got)
	}
	// "A" fell out of the five-entry window.
	if got := ArtistDiversity("A", recent); got != 1.0 {
		t.Fatalf("artist outside window: got %v, want 1.0", got)
	}
	if got := ArtistDiversity("anyone", nil); got != 1.0 {
		t.Fatalf("empty list: got %v, want 1.0", got)
	}
}

func TestEraProximity(t *testing.T) {
	tests := []struct {
		name string
		a, b *int
		want float64
	}{
		{"same decade", intp(1994), intp(1991), 1.0},
		{"adjacent decade", intp(1994), intp(1985), 0.5},
		{"two decades", intp(1990), intp(2010), 0.6},
		{"far apart floors at zero", intp(1950), intp(2020), 0},
		{"unknown year neutral", nil, intp(1990), 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := EraProximity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOrderByTransition_Empty(t *testing.T) {
	got := OrderByTransition(nil, []ArcPhase{{Name: "warmup", DurationMin: 30}}, nil)
	if len(got) != 0 {
		t.Fatalf("empty candidates must give empty output, got %d", len(got))
	}
}

func TestOrderByTransition_SingleCandidate(t *testing.T) {
	phases := []ArcPhase{
		{Name: "warmup", TargetEnergy: 0.4, DurationMin: 30},
		{Name: "peak", TargetEnergy: 0.9, DurationMin: 30},
	}
	cands := []Candidate{{
		Track:   domain.Track{ID: "t1", Name: "Only One", Artist: "Solo"},
		Profile: domain.TrackProfile{Artist: "Solo", BPM: f64(120)},
	}}

	got := OrderByTransition(cands, phases, nil)
	if len(got) != 1 {
		t.Fatalf("output length %d, want 1", len(got))
	}
	if got[0].ArcPhase != "warmup" {
		t.Fatalf("phase: got %s, want warmup", got[0].ArcPhase)
	}
	if got[0].Reason == "" {
		t.Fatal("expected a human-readable reason")
	}

	// Still the opening phase when every rounded share is zero.
	three := []ArcPhase{
		{Name: "warmup", TargetEnergy: 0.4, DurationMin: 20},
		{Name: "build", TargetEnergy: 0.7, DurationMin: 20},
		{Name: "peak", TargetEnergy: 0.9, DurationMin: 20},
	}
	got = OrderByTransition(cands, three, nil)
	if len(got) != 1 || got[0].ArcPhase != "warmup" {
		t.Fatalf("three phases: got %+v, want one pick in warmup", got)
	}
}

func TestOrderByTransition_GreedyPlacement(t *testing.T) {
	start := domain.TrackProfile{Artist: "Opener", BPM: f64(120), Tags: []string{"house"}}
	phases := []ArcPhase{{Name: "main", TargetEnergy: 0.7, DurationMin: 60}}
	cands := []Candidate{
		{Track: domain.Track{ID: "far"}, Profile: domain.TrackProfile{Artist: "X", BPM: f64(190), Tags: []string{"metal"}}},
		{Track: domain.Track{ID: "close"}, Profile: domain.TrackProfile{Artist: "Y", BPM: f64(123), Tags: []string{"house"}, Energy: f64(0.7)}},
	}

	got := OrderByTransition(cands, phases, &start)
	if len(got) != 2 {
		t.Fatalf("output length %d, want 2", len(got))
	}
	if got[0].Track.ID != "close" {
		t.Fatalf("greedy pick: got %s first, want close", got[0].Track.ID)
	}
	// Every candidate is placed exactly once.
	if got[1].Track.ID != "far" {
		t.Fatalf("second pick: got %s, want far", got[1].Track.ID)
	}
}

func TestOrderByTransition_PhasePartition(t *testing.T) {
	phases := []ArcPhase{
		{Name: "a", TargetEnergy: 0.5, DurationMin: 20},
		{Name: "b", TargetEnergy: 0.7, DurationMin: 40},
	}
	cands := make([]Candidate, 6)
	for i := range cands {
		bpm := 120.0 + float64(i)
		cands[i] = Candidate{Profile: domain.TrackProfile{BPM: &bpm}}
	}

	got := OrderByTransition(cands, phases, nil)
	phaseCount := map[string]int{}
	for _, s := range got {
		phaseCount[s.ArcPhase]++
	}
	// 6 candidates, 1:2 duration ratio: 2 in a, 4 in b.
	if phaseCount["a"] != 2 || phaseCount["b"] != 4 {
		t.Fatalf("partition: got %v, want a:2 b:4", phaseCount)
	}
}

func TestScore_OverallWeighting(t *testing.T) {
	prev := domain.TrackProfile{Artist: "A", BPM: f64(120), Tags: []string{"house"}, ReleaseYear: intp(1995)}
	next := domain.TrackProfile{Artist: "B", BPM: f64(124), Energy: f64(0.7), Tags: []string{"house"}, ReleaseYear: intp(1997)}
	s := Score(prev, next, ArcPhase{TargetEnergy: 0.7}, []string{"A"})

	// All components perfect: overall must be exactly the weight sum.
	if s.BPM != 1 || s.Energy != 1 || s.Genre != 1 || s.Artist != 1 || s.Era != 1 {
		t.Fatalf("components: %+v", s)
	}
	if math.Abs(s.Overall-1.0) > 1e-9 {
		t.Fatalf("overall: got %v, want 1.0", s.Overall)
	}
}
