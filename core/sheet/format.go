package sheet

import (
	"html"
	"regexp"
)

var inlineFormats = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\\textbf\{(.+?)\}`), "<strong>$1</strong>"},
	{regexp.MustCompile(`\\textit\{(.+?)\}`), "<em>$1</em>"},
	{regexp.MustCompile(`\\text\{(.+?)\}`), "$1"},
}

// Format escapes s and applies the inline commands (\textbf, \textit, \text).
// The result is an inert HTML fragment.
func Format(s string) string {
	s = html.EscapeString(s)
	for _, f := range inlineFormats {
		s = f.re.ReplaceAllString(s, f.repl)
	}
	return s
}
