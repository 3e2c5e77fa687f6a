package render

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// el builds an element; attrs are key/value pairs.
func el(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func flag(n *html.Node, key string) {
	n.Attr = append(n.Attr, html.Attribute{Key: key})
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func appendChildren(parent *html.Node, children ...*html.Node) *html.Node {
	for _, c := range children {
		if c != nil {
			parent.AppendChild(c)
		}
	}
	return parent
}

// appendFragment parses an inert HTML fragment produced at parse time and
// appends it to parent.
func appendFragment(parent *html.Node, fragment string) *html.Node {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		// unreachable with a strings.Reader; keep the text visible anyway
		return appendChildren(parent, text(fragment))
	}
	return appendChildren(parent, nodes...)
}

// ToHTML serializes nodes in order.
func ToHTML(nodes []*html.Node) (string, error) {
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
