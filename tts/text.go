package tts

import (
	"strings"

	"github.com/dgnsrekt/ttspeaker/pkg/logging"
)

// TextPipeline turns raw input into the phrases that get queued.
type TextPipeline struct {
	Pre     []TextProcessor
	Post    []TextProcessor
	Prepend string
	Append  string
}

// Final runs the pre-processors over the single raw phrase, wraps every
// non-blank phrase with Prepend and Append, runs the post-processors and
// drops blank phrases. It fails with ErrEmptyPhrase when nothing is left.
func (p TextPipeline) Final(raw string, log *logging.Logger) ([]string, error) {
	phrases := []string{raw}
	for _, proc := range p.Pre {
		phrases = proc.Process(phrases)
	}

	for i, phrase := range phrases {
		if isBlank(phrase) {
			continue
		}
		phrases[i] = strings.TrimSpace(p.Prepend + phrase + p.Append)
	}

	for _, proc := range p.Post {
		phrases = proc.Process(phrases)
	}

	out := phrases[:0:0]
	for i, phrase := range phrases {
		if isBlank(phrase) {
			log.Debug("dropping blank phrase", "index", i)
			continue
		}
		out = append(out, phrase)
	}
	if len(out) == 0 {
		return nil, ErrEmptyPhrase
	}
	return out, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
