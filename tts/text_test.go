package tts

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgnsrekt/ttspeaker/pkg/logging"
)

func TestTextPipelineFinal(t *testing.T) {
	splitLines := TextProcessorFunc(func(in []string) []string {
		var out []string
		for _, p := range in {
			out = append(out, strings.Split(p, "\n")...)
		}
		return out
	})
	upper := TextProcessorFunc(func(in []string) []string {
		out := make([]string, len(in))
		for i, p := range in {
			out[i] = strings.ToUpper(p)
		}
		return out
	})
	blankOut := TextProcessorFunc(func(in []string) []string {
		return make([]string, len(in))
	})

	tests := []struct {
		name     string
		pipeline TextPipeline
		raw      string
		want     []string
		wantErr  error
	}{
		{name: "plain", raw: "hello", want: []string{"hello"}},
		{name: "trims after wrapping", pipeline: TextPipeline{Prepend: " ", Append: " "}, raw: "hi", want: []string{"hi"}},
		{name: "prepend and append", pipeline: TextPipeline{Prepend: "[", Append: "]"}, raw: "hi", want: []string{"[hi]"}},
		{
			name:     "pre splits then wraps each",
			pipeline: TextPipeline{Pre: []TextProcessor{splitLines}, Prepend: "> "},
			raw:      "one\n\ntwo",
			want:     []string{"> one", "> two"},
		},
		{
			name:     "post sees wrapped phrases",
			pipeline: TextPipeline{Post: []TextProcessor{upper}, Append: "!"},
			raw:      "go",
			want:     []string{"GO!"},
		},
		{name: "whitespace only", raw: " \t\n", wantErr: ErrEmptyPhrase},
		{name: "blank is not wrapped", pipeline: TextPipeline{Prepend: "x"}, raw: "   ", wantErr: ErrEmptyPhrase},
		{name: "post blanks everything", pipeline: TextPipeline{Post: []TextProcessor{blankOut}}, raw: "hi", wantErr: ErrEmptyPhrase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.pipeline.Final(tt.raw, logging.Nop())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Final() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Final() error = %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Final() = %q, want %q", got, tt.want)
			}
		})
	}
}
