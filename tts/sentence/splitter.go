// Package sentence provides text processors that prepare phrases for
// speech: sentence splitting and markdown stripping.
package sentence

import (
	"strings"
	"unicode"
)

// Splitter breaks phrases into sentences. It implements tts.TextProcessor.
type Splitter struct {
	// MaxLength caps phrase length in runes. Longer sentences are broken
	// at clause punctuation or whitespace. 0 disables the cap.
	MaxLength int

	abbreviations map[string]bool
}

// NewSplitter creates a splitter with the built-in abbreviation list.
func NewSplitter(maxLength int) *Splitter {
	return &Splitter{
		MaxLength:     maxLength,
		abbreviations: makeAbbreviationMap(),
	}
}

// Process implements tts.TextProcessor.
func (s *Splitter) Process(phrases []string) []string {
	var out []string
	for _, phrase := range phrases {
		for _, sentence := range s.Split(phrase) {
			out = append(out, s.limit(sentence)...)
		}
	}
	return out
}

// Split returns the sentences of text, trimmed, in order.
func (s *Splitter) Split(text string) []string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	var sentences []string
	lastStart := 0

	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}

		// Collect runs like "?!" or "..."
		punctEnd := i + 1
		for punctEnd < len(runes) && strings.ContainsRune(".!?", runes[punctEnd]) {
			punctEnd++
		}
		for punctEnd < len(runes) && isCloser(runes[punctEnd]) {
			punctEnd++
		}

		if !s.isSentenceEnd(runes, i, punctEnd) {
			i = punctEnd - 1
			continue
		}

		if sentence := strings.TrimSpace(string(runes[lastStart:punctEnd])); sentence != "" {
			sentences = append(sentences, sentence)
		}
		lastStart = punctEnd
		i = punctEnd - 1
	}

	if lastStart < len(runes) {
		if rest := strings.TrimSpace(string(runes[lastStart:])); rest != "" {
			sentences = append(sentences, rest)
		}
	}
	return sentences
}

// isSentenceEnd decides whether the punctuation run runes[pos:end] closes a
// sentence.
func (s *Splitter) isSentenceEnd(runes []rune, pos, end int) bool {
	if end >= len(runes) {
		return true
	}
	if !unicode.IsSpace(runes[end]) {
		return false
	}
	punct := runes[pos]

	// An ellipsis only ends a sentence at the end of the text.
	if end-pos >= 3 && punct == '.' && runes[pos+1] == '.' {
		return false
	}

	if punct == '.' {
		start := pos - 1
		for start >= 0 && !unicode.IsSpace(runes[start]) {
			start--
		}
		word := strings.ToLower(string(runes[start+1 : pos]))
		word = strings.TrimLeft(word, `"'([`)

		if s.abbreviations[word] {
			return false
		}
		// Initials and dotted abbreviations such as "J." or "Ph.D."
		if strings.Contains(word, ".") {
			return false
		}
		if r := []rune(word); len(r) == 1 && unicode.IsLetter(r[0]) && unicode.IsUpper(runes[pos-1]) {
			return false
		}
	}

	next := end + 1
	for next < len(runes) && unicode.IsSpace(runes[next]) {
		next++
	}
	if next >= len(runes) {
		return true
	}
	if punct == '!' || punct == '?' {
		return true
	}
	// A period needs the next sentence to start like one.
	r := runes[next]
	return unicode.IsUpper(r) || unicode.IsDigit(r) || r == '"' || r == '\'' || r == '('
}

// limit breaks a sentence that exceeds MaxLength.
func (s *Splitter) limit(sentence string) []string {
	if s.MaxLength <= 0 {
		return []string{sentence}
	}

	var out []string
	runes := []rune(sentence)
	for len(runes) > s.MaxLength {
		cut := breakPoint(runes[:s.MaxLength+1])
		if part := strings.TrimSpace(string(runes[:cut])); part != "" {
			out = append(out, part)
		}
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		out = append(out, rest)
	}
	return out
}

// breakPoint returns where to cut window: after the last clause
// punctuation, else at the last space, else at the end.
func breakPoint(window []rune) int {
	limit := len(window) - 1
	for i := limit - 1; i > limit/2; i-- {
		if strings.ContainsRune(",;:", window[i]) && unicode.IsSpace(window[i+1]) {
			return i + 1
		}
	}
	for i := limit; i > 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return limit
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '”' || r == '’'
}

// makeAbbreviationMap creates a map of common abbreviations, without the
// trailing period.
func makeAbbreviationMap() map[string]bool {
	abbrevs := []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st",
		"llc", "inc", "ltd", "co", "corp",
		"etc", "vs", "cf", "al", "approx", "no", "vol",
		"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
		"mon", "tue", "wed", "thu", "fri", "sat", "sun",
		"rd", "ave", "blvd", "ln", "ct", "mt",
		"ft", "lbs", "oz", "kg", "km", "cm", "mm", "mi", "yd",
		"hr", "hrs", "min", "mins", "sec", "secs",
	}

	m := make(map[string]bool, len(abbrevs))
	for _, abbrev := range abbrevs {
		m[abbrev] = true
	}
	return m
}
