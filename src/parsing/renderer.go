package parsing

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
)

/*
Renders only the words of a document, separated by single spaces, for post
previews. Markup is dropped, code is kept as text, and images contribute their
alt text.
*/
type plaintextRenderer struct{}

var _ renderer.Renderer = plaintextRenderer{}

var markdownEscapeRegex = regexp.MustCompile("\\\\([\\\\\\x60!\"#$%&'()*+,-./:;<=>?@\\[\\]^_{|}~])")

func (plaintextRenderer) Render(w io.Writer, source []byte, doc ast.Node) error {
	var words bytes.Buffer
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				words.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}

		switch n := n.(type) {
		case *ast.Text:
			words.Write(markdownEscapeRegex.ReplaceAll(n.Segment.Value(source), []byte("$1")))
			if n.SoftLineBreak() || n.HardLineBreak() {
				words.WriteByte(' ')
			}
		case *ast.AutoLink:
			words.Write(n.Label(source))
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				words.Write(line.Value(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, strings.Join(strings.Fields(words.String()), " "))
	return err
}

func (plaintextRenderer) AddOptions(...renderer.Option) {}
