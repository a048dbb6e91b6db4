package sentence

import (
	"reflect"
	"testing"
	"unicode/utf8"
)

func TestSplit(t *testing.T) {
	s := NewSplitter(0)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "simple sentences",
			text: "Hello world. This is a test.",
			want: []string{"Hello world.", "This is a test."},
		},
		{
			name: "question and exclamation",
			text: "Is it? Yes! It is.",
			want: []string{"Is it?", "Yes!", "It is."},
		},
		{
			name: "combined punctuation",
			text: "Really?! I had no idea.",
			want: []string{"Really?!", "I had no idea."},
		},
		{
			name: "title abbreviation",
			text: "Dr. Smith arrived. He sat down.",
			want: []string{"Dr. Smith arrived.", "He sat down."},
		},
		{
			name: "dotted abbreviation",
			text: "Use tools, e.g. hammers. Then rest.",
			want: []string{"Use tools, e.g. hammers.", "Then rest."},
		},
		{
			name: "decimal number",
			text: "Pi is 3.14 roughly. Neat.",
			want: []string{"Pi is 3.14 roughly.", "Neat."},
		},
		{
			name: "ellipsis mid text",
			text: "Wait... what happened? Nothing.",
			want: []string{"Wait... what happened?", "Nothing."},
		},
		{
			name: "closing quote",
			text: `He said "stop." Then he left.`,
			want: []string{`He said "stop."`, "Then he left."},
		},
		{
			name: "no terminal punctuation",
			text: "First one. trailing words",
			want: []string{"First one. trailing words"},
		},
		{
			name: "whitespace collapsed",
			text: "  One.\n\n  Two.  ",
			want: []string{"One.", "Two."},
		},
		{
			name: "empty",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Split(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestSplitterMaxLength(t *testing.T) {
	s := NewSplitter(20)
	got := s.Process([]string{"This sentence, which is rather long, keeps going on and on."})

	if len(got) < 2 {
		t.Fatalf("Process() = %q, expected the sentence to be broken", got)
	}
	for _, p := range got {
		if n := utf8.RuneCountInString(p); n > 20 {
			t.Errorf("phrase %q has %d runes, limit 20", p, n)
		}
	}
	if got[0] != "This sentence," {
		t.Errorf("first part = %q, want break at comma", got[0])
	}
}

func TestSplitterUnbreakableWord(t *testing.T) {
	s := NewSplitter(5)
	got := s.Process([]string{"abcdefghijkl"})
	want := []string{"abcde", "fghij", "kl"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Process() = %q, want %q", got, want)
	}
}

func TestSplitterProcessKeepsOrder(t *testing.T) {
	s := NewSplitter(0)
	got := s.Process([]string{"A one. B two.", "C three."})
	want := []string{"A one.", "B two.", "C three."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Process() = %q, want %q", got, want)
	}
}
