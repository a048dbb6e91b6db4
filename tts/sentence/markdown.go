package sentence

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownStripper turns markdown into plain spoken text. Each text block
// (paragraph, heading, list item) becomes its own phrase. It implements
// tts.TextProcessor.
type MarkdownStripper struct {
	// IncludeCode speaks code blocks and code spans instead of skipping them.
	IncludeCode bool

	md goldmark.Markdown
}

// NewMarkdownStripper creates a markdown stripper.
func NewMarkdownStripper() *MarkdownStripper {
	return &MarkdownStripper{md: goldmark.New()}
}

// Process implements tts.TextProcessor.
func (m *MarkdownStripper) Process(phrases []string) []string {
	var out []string
	for _, phrase := range phrases {
		out = append(out, m.Strip(phrase)...)
	}
	return out
}

// Strip returns the text blocks of source as plain text.
func (m *MarkdownStripper) Strip(source string) []string {
	src := []byte(source)
	doc := m.md.Parser().Parse(text.NewReader(src))

	var blocks []string
	var cur strings.Builder
	flush := func(terminate bool) {
		block := strings.Join(strings.Fields(cur.String()), " ")
		cur.Reset()
		if block == "" {
			return
		}
		if terminate && !endsSentence(block) {
			block += "."
		}
		blocks = append(blocks, block)
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering && m.IncludeCode {
				cur.WriteString(string(codeLines(n, src)))
				flush(false)
			}
			return ast.WalkSkipChildren, nil

		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil

		case *ast.CodeSpan:
			if !m.IncludeCode {
				return ast.WalkSkipChildren, nil
			}

		case *ast.Heading:
			if !entering {
				flush(true)
			}

		case *ast.Paragraph, *ast.TextBlock:
			if !entering {
				flush(false)
			}

		case *ast.Text:
			if entering {
				cur.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					cur.WriteByte(' ')
				}
			}

		case *ast.String:
			if entering {
				cur.Write(node.Value)
			}

		case *ast.AutoLink:
			if entering {
				cur.Write(node.Label(src))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	flush(false)
	return blocks
}

func codeLines(n ast.Node, src []byte) []byte {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.Bytes()
}

func endsSentence(s string) bool {
	return strings.ContainsRune(".!?:;", rune(s[len(s)-1]))
}
