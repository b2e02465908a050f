package parsing

import "github.com/alecthomas/chroma/formatters/html"

// Chroma output for code blocks in posts. The surrounding <pre> comes from
// the highlighting wrapper, so chroma only wraps the tokens in <code>.
var postCodeFormatOptions = []html.Option{
	html.WithClasses(true),
	html.WithPreWrapper(codeOnlyWrapper{}),
}

type codeOnlyWrapper struct{}

var _ html.PreWrapper = codeOnlyWrapper{}

func (codeOnlyWrapper) Start(code bool, styleAttr string) string {
	if code {
		return "<code>"
	}
	return ""
}

func (codeOnlyWrapper) End(code bool) string {
	if code {
		return "</code>"
	}
	return ""
}
