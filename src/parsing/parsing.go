package parsing

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/util"
)

// Used for generating the final HTML for a post.
var ForumRealMarkdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlightExtension,
	),
)

// Used for generating plain-text previews of posts.
var PlaintextMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRenderer(plaintextRenderer{}),
)

func ParseMarkdown(source string, md goldmark.Markdown) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		panic(err)
	}

	return buf.String()
}

const (
	MaxPostContentLength = 200000
	PreviewMaxLength     = 100
)

// The stored forms of a post's text.
type PostContent struct {
	Raw     string
	Parsed  string
	Preview string
}

/*
Renders post text into HTML and a short plain-text preview. Callers are
expected to reject text longer than MaxPostContentLength beforehand.
*/
func PreparePostContent(raw string) PostContent {
	preview := strings.TrimSpace(ParseMarkdown(raw, PlaintextMarkdown))
	if utf8.RuneCountInString(preview) > PreviewMaxLength-1 {
		preview = string([]rune(preview)[:PreviewMaxLength-1]) + "…"
	}

	return PostContent{
		Raw:     raw,
		Parsed:  ParseMarkdown(raw, ForumRealMarkdown),
		Preview: preview,
	}
}

var highlightExtension = highlighting.NewHighlighting(
	highlighting.WithFormatOptions(postCodeFormatOptions...),
	highlighting.WithWrapperRenderer(func(w util.BufWriter, context highlighting.CodeBlockContext, entering bool) {
		if entering {
			w.WriteString(`<pre class="hmn-code">`)
		} else {
			w.WriteString(`</pre>`)
		}
	}),
)
