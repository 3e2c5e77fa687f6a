package responses

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DOM attributes binding a rendered element to its response key.
const (
	KeyAttr  = "data-response-key"
	KindAttr = "data-response-kind"
)

// DuplicateKeyError reports response keys bound to more than one element of a render pass.
// It is a content or programming error, never a user error.
type DuplicateKeyError struct {
	Counts map[string]int // {key: number of elements}
}

func (e *DuplicateKeyError) Error() string {
	keys := make([]string, 0, len(e.Counts))
	for k := range e.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s(%d)", k, e.Counts[k])
	}
	return "duplicate " + KeyAttr + "(s) in scope: " + strings.Join(parts, ", ")
}

// Elements returns every element under root carrying a non-empty response key, in document order.
func Elements(root *html.Node) []*html.Node {
	var els []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && Attr(n, KeyAttr) != "" {
			els = append(els, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return els
}

// Find returns the element bound to key, or nil.
func Find(root *html.Node, key string) *html.Node {
	for _, el := range Elements(root) {
		if Attr(el, KeyAttr) == key {
			return el
		}
	}
	return nil
}

// Collect reads the current value of every response element under root.
// It fails with a *DuplicateKeyError when a key is bound more than once.
func Collect(root *html.Node) (map[string]string, error) {
	if root == nil {
		return nil, fmt.Errorf("responses.Collect: root is nil")
	}
	els := Elements(root)

	counts := make(map[string]int, len(els))
	for _, el := range els {
		counts[Attr(el, KeyAttr)]++
	}
	dups := make(map[string]int)
	for k, n := range counts {
		if n > 1 {
			dups[k] = n
		}
	}
	if len(dups) > 0 {
		return nil, &DuplicateKeyError{Counts: dups}
	}

	out := make(map[string]string, len(els))
	for _, el := range els {
		out[Attr(el, KeyAttr)] = Value(el)
	}
	return out, nil
}

// MustCollect is like Collect but panics on duplicate keys.
func MustCollect(root *html.Node) map[string]string {
	out, err := Collect(root)
	if err != nil {
		panic(err)
	}
	return out
}

// Value reads an element's current value: the form value of textarea, input
// and select elements, or the text content of a contenteditable region.
// Anything else reads as "".
func Value(el *html.Node) string {
	switch el.DataAtom {
	case atom.Textarea:
		return Text(el)
	case atom.Input:
		return Attr(el, "value")
	case atom.Select:
		return selectValue(el)
	}
	if strings.EqualFold(Attr(el, "contenteditable"), "true") {
		return Text(el)
	}
	return ""
}

func selectValue(sel *html.Node) string {
	var first, selected *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Option {
			if first == nil {
				first = n
			}
			if selected == nil && HasAttr(n, "selected") {
				selected = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(sel)
	if selected == nil {
		selected = first
	}
	if selected == nil {
		return ""
	}
	if HasAttr(selected, "value") {
		return Attr(selected, "value")
	}
	return strings.TrimSpace(Text(selected))
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

// Text concatenates the text nodes under n.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
