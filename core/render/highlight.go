package render

import (
	"bytes"
	"io"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/trezcool/pogil/core/sheet"
)

// HighlightStyle is the chroma style of code cells in the Viewing state.
const HighlightStyle = "github"

var formatter = chromahtml.New(chromahtml.WithClasses(true), chromahtml.TabWidth(4))

func lexerFor(lang sheet.Language) chroma.Lexer {
	name := "python"
	if lang == sheet.Cpp {
		name = "cpp"
	}
	l := lexers.Get(name)
	if l == nil {
		l = lexers.Fallback
	}
	return chroma.Coalesce(l)
}

func style() *chroma.Style {
	s := styles.Get(HighlightStyle)
	if s == nil {
		s = styles.Fallback
	}
	return s
}

// highlight returns the syntax highlighted view of code, falling back to a
// plain <pre> when highlighting fails.
func highlight(lang sheet.Language, code string) []*html.Node {
	if nodes, err := chromaNodes(lang, code); err == nil {
		return nodes
	}
	return []*html.Node{appendChildren(el(atom.Pre, "class", "chroma"), appendChildren(el(atom.Code), text(code)))}
}

func chromaNodes(lang sheet.Language, code string) ([]*html.Node, error) {
	it, err := lexerFor(lang).Tokenise(nil, code)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style(), it); err != nil {
		return nil, err
	}
	return html.ParseFragment(&buf, el(atom.Div))
}

// WriteCSS writes the stylesheet of the highlighted code cells.
func WriteCSS(w io.Writer) error {
	return formatter.WriteCSS(w, style())
}
