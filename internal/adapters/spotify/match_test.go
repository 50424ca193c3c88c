package spotify

import "testing"

func candidate(name string, artists ...string) wireTrack {
	t := wireTrack{Name: name}
	for _, a := range artists {
		t.Artists = append(t.Artists, wireArtist{Name: a})
	}
	return t
}

func TestTrackMatchScore(t *testing.T) {
	tests := []struct {
		name      string
		reqTitle  string
		reqArtist string
		cand      wireTrack
		wantMatch bool
	}{
		{
			name:      "exact match",
			reqTitle:  "One More Time",
			reqArtist: "Daft Punk",
			cand:      candidate("One More Time", "Daft Punk"),
			wantMatch: true,
		},
		{
			name:      "remaster suffix ignored",
			reqTitle:  "Blue Monday",
			reqArtist: "New Order",
			cand:      candidate("Blue Monday (2016 Remaster)", "New Order"),
			wantMatch: true,
		},
		{
			name:      "bracketed feature ignored",
			reqTitle:  "Latch",
			reqArtist: "Disclosure",
			cand:      candidate("Latch [feat. Sam Smith]", "Disclosure"),
			wantMatch: true,
		},
		{
			name:      "wrong artist rejected",
			reqTitle:  "One More Time",
			reqArtist: "Daft Punk",
			cand:      candidate("One More Time", "Completely Different Band"),
			wantMatch: false,
		},
		{
			name:      "different song rejected",
			reqTitle:  "One More Time",
			reqArtist: "Daft Punk",
			cand:      candidate("Harder Better Faster Stronger", "Daft Punk"),
			wantMatch: false,
		},
		{
			name:      "empty candidate rejected",
			reqTitle:  "Anything",
			reqArtist: "Anyone",
			cand:      wireTrack{},
			wantMatch: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			score := trackMatchScore(tc.reqTitle, tc.reqArtist, tc.cand)
			matched := score >= searchMatchThreshold
			if matched != tc.wantMatch {
				t.Fatalf("score %.2f, matched=%v, want %v", score, matched, tc.wantMatch)
			}
		})
	}
}

func TestNormalizeSearchInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  One More Time  ", "one more time"},
		{"Blue Monday (2016 Remaster)", "blue monday"},
		{"Latch [feat. Sam Smith]", "latch"},
		{"Song - Radio Edit", "song"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := normalizeSearchInput(tc.in); got != tc.want {
			t.Errorf("normalizeSearchInput(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := similarity("abc", "abc"); got != 1.0 {
		t.Fatalf("identical strings: got %v", got)
	}
	if got := similarity("abc", "xyz"); got != 0.0 {
		t.Fatalf("disjoint strings: got %v", got)
	}
	mid := similarity("house", "hose")
	if mid <= 0 || mid >= 1 {
		t.Fatalf("partial overlap should score between 0 and 1: %v", mid)
	}
}
