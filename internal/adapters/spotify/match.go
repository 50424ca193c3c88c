package spotify

import "strings"

// Search results come back noisy: remaster suffixes, featured-artist
// brackets, radio edits. Matching normalizes both sides, then blends
// title and artist edit-distance similarity with per-field floors so a
// perfect title can't carry a wrong artist.

var noiseTokens = map[string]struct{}{
	"clean": {}, "deluxe": {}, "edition": {}, "edit": {}, "explicit": {},
	"feat": {}, "featuring": {}, "ft": {}, "live": {}, "mix": {},
	"mono": {}, "radio": {}, "remaster": {}, "remastered": {},
	"stereo": {}, "version": {},
}

const (
	minTitleSimilarity  = 0.65
	minArtistSimilarity = 0.55
)

func trackMatchScore(requestTitle, requestArtist string, candidate wireTrack) float64 {
	title := normalizeSearchInput(requestTitle)
	artist := normalizeSearchInput(requestArtist)
	candTitle := normalizeSearchInput(candidate.Name)
	candArtist := normalizeSearchInput(joinArtistNames(candidate))

	if title == "" || artist == "" || candTitle == "" || candArtist == "" {
		return 0
	}

	titleSim := similarity(title, candTitle)
	artistSim := similarity(artist, candArtist)
	if titleSim < minTitleSimilarity || artistSim < minArtistSimilarity {
		return 0
	}
	return 0.7*titleSim + 0.3*artistSim
}

func normalizeSearchInput(input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	if lower == "" {
		return ""
	}

	var b strings.Builder
	depth := 0
	for _, r := range lower {
		switch {
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			} else {
				b.WriteRune(' ')
			}
		}
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, drop := noiseTokens[tok]; !drop {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(maxLen)
}

func levenshtein(ra, rb []rune) int {
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		copy(prev, curr)
	}
	return prev[len(rb)]
}
