package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Normalizer folds catalog labels (genres, moods, tags, keys) into a
// comparable form: lowercase, accent-stripped, punctuation collapsed.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize lowercases the text, strips diacritics and replaces punctuation
// runs with single spaces.
func (n *Normalizer) Normalize(text string) string {
	text = norm.NFKD.String(text)

	var result strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	text = result.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	text = strings.ToLower(text)
	text = strings.TrimSpace(text)

	return text
}

// NormalizeGenre additionally folds "and" into "&"-less form so that
// "Drum & Bass" and "drum and bass" compare equal.
func (n *Normalizer) NormalizeGenre(genre string) string {
	genre = n.Normalize(genre)
	genre = strings.ReplaceAll(genre, " and ", " ")
	genre = whitespaceRegex.ReplaceAllString(genre, " ")
	return strings.TrimSpace(genre)
}

// Match reports whether two labels are the same after normalization.
func (n *Normalizer) Match(a, b string) bool {
	return n.Normalize(a) == n.Normalize(b)
}

// MatchGenre reports whether a track genre equals any of the wanted genres,
// ignoring case, accents and the "&"/"and" spelling difference.
func (n *Normalizer) MatchGenre(genre string, wanted []string) bool {
	g := n.NormalizeGenre(genre)
	for _, w := range wanted {
		if g == n.NormalizeGenre(w) {
			return true
		}
	}
	return false
}

// ContainsTerm reports whether a normalized term occurs as a substring of
// the normalized text. Used for matching comma-separated catalog tags.
func (n *Normalizer) ContainsTerm(text, term string) bool {
	term = n.Normalize(term)
	if term == "" {
		return false
	}
	return strings.Contains(n.Normalize(text), term)
}
