// Package genre classifies track and artist text into coarse music genres.
//
// The default KeywordDetector performs case-insensitive substring matching
// against small per-genre vocabularies. It is a brittle heuristic, so it sits
// behind the Detector interface and can be swapped for a lookup table or an
// external service without touching scoring code.
package genre

import (
	"sort"
	"strings"
)

// Detector maps free text (track title and artist) to a set of genres.
type Detector interface {
	// Detect returns the distinct genres found in text, sorted. An empty
	// result means no genre could be detected.
	Detect(text string) []string
}

// Vocabulary maps a genre name to the keywords that indicate it.
type Vocabulary map[string][]string

// DefaultVocabulary covers the artists and keywords most often seen in
// bar and nightlife playlists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		"country": {"country", "zach bryan", "morgan wallen", "luke combs", "chris stapleton",
			"kenny chesney", "jason aldean", "luke bryan", "garth brooks", "shania twain", "dolly parton"},
		"hip-hop": {"hip hop", "hip-hop", "rap", "drake", "kendrick", "travis scott", "j. cole",
			"eminem", "kanye", "lil ", "21 savage", "future", "post malone"},
		"pop": {"pop", "taylor swift", "dua lipa", "ariana grande", "the weeknd", "harry styles",
			"sabrina carpenter", "olivia rodrigo", "bruno mars", "ed sheeran"},
		"rock": {"rock", "foo fighters", "ac/dc", "guns n' roses", "bon jovi", "queen",
			"led zeppelin", "the killers", "red hot chili peppers", "nirvana"},
		"edm": {"edm", "remix", "house", "techno", "calvin harris", "david guetta", "avicii",
			"tiesto", "marshmello", "skrillex", "fisher", "john summit"},
		"latin": {"latin", "reggaeton", "bad bunny", "j balvin", "karol g", "shakira",
			"daddy yankee", "peso pluma"},
		"r&b": {"r&b", "rnb", "soul", "sza", "usher", "beyonce", "beyoncé", "alicia keys", "frank ocean"},
		"jazz": {"jazz", "miles davis", "john coltrane", "norah jones", "michael bublé", "michael buble"},
		"indie": {"indie", "arctic monkeys", "tame impala", "vampire weekend", "the strokes", "hozier"},
	}
}

// KeywordDetector is a Detector backed by keyword substring matching.
type KeywordDetector struct {
	vocab Vocabulary
}

// NewKeywordDetector creates a detector for the given vocabulary. A nil
// vocabulary selects DefaultVocabulary.
func NewKeywordDetector(vocab Vocabulary) *KeywordDetector {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	normalized := make(Vocabulary, len(vocab))
	for g, words := range vocab {
		lowered := make([]string, 0, len(words))
		for _, w := range words {
			if w = strings.ToLower(w); w != "" {
				lowered = append(lowered, w)
			}
		}
		normalized[strings.ToLower(g)] = lowered
	}
	return &KeywordDetector{vocab: normalized}
}

// Detect implements Detector.
func (d *KeywordDetector) Detect(text string) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil
	}
	var found []string
	for g, words := range d.vocab {
		for _, w := range words {
			if strings.Contains(text, w) {
				found = append(found, g)
				break
			}
		}
	}
	sort.Strings(found)
	return found
}

// TrackText joins a track title and artist into detector input.
func TrackText(track, artist string) string {
	return strings.TrimSpace(track + " " + artist)
}

// Intersects reports whether a and b share at least one genre.
func Intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, g := range a {
		set[g] = struct{}{}
	}
	for _, g := range b {
		if _, ok := set[g]; ok {
			return true
		}
	}
	return false
}
