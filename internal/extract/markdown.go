package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor flattens a Markdown file into plain text using the
// goldmark AST, keeping headings inline as section markers.
type MarkdownExtractor struct{}

func (e *MarkdownExtractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	var out strings.Builder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		var block string
		switch node := n.(type) {
		case *ast.Heading:
			block = string(node.Text(src))
		default:
			block = nodeText(n, src)
		}
		if block == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(block)
	}

	flat := strings.TrimSpace(out.String())
	if flat == "" {
		return nil, nil
	}
	return []Unit{{Text: flat}}, nil
}

// nodeText gets the text content of a goldmark AST node, including nested
// inline children.
func nodeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		if lines := n.Lines(); lines.Len() > 0 {
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				buf.Write(line.Value(src))
			}
			return strings.TrimSpace(buf.String())
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(nodeText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
