package sentence

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer rewrites phrases to NFKC with control characters replaced by
// spaces and whitespace collapsed, so text that sounds the same gets the
// same clip id. It is not safe for concurrent use.
type Normalizer struct {
	t transform.Transformer
}

// NewNormalizer creates a normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		t: transform.Chain(norm.NFKC, runes.Map(func(r rune) rune {
			if unicode.IsControl(r) {
				return ' '
			}
			return r
		})),
	}
}

// Process implements tts.TextProcessor.
func (n *Normalizer) Process(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		s, _, err := transform.String(n.t, phrase)
		if err != nil {
			s = phrase
		}
		out = append(out, strings.Join(strings.Fields(s), " "))
	}
	return out
}
