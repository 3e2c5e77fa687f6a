package coderun

import (
	"bytes"
	"io"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/trezcool/pogil/core/responses"
	"github.com/trezcool/pogil/core/sheet"
)

// Capture mirrors everything a program shows into a buffer read at grading
// time, independently of the visible terminal.
type Capture struct {
	mu        sync.Mutex
	outputKey string
	term      io.Writer
	buf       bytes.Buffer
}

// NewCapture returns a Capture for the code cell keyed codeKey. term may be nil.
func NewCapture(codeKey string, term io.Writer) *Capture {
	outKey, _ := sheet.OutputKey(codeKey)
	return &Capture{outputKey: outKey, term: term}
}

func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.buf.Write(p)
	c.mu.Unlock()
	if c.term != nil {
		if _, err := c.term.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Println writes a message line, eg. a status or an error.
func (c *Capture) Println(msg string) {
	_, _ = c.Write([]byte(msg + "\n"))
}

func (c *Capture) OutputKey() string { return c.outputKey }

func (c *Capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Node is the hidden, grading-readable element holding the captured output.
func (c *Capture) Node() *html.Node {
	return OutputNode(c.outputKey, c.String())
}

// OutputNode builds the hidden element holding a code cell's output.
func OutputNode(outputKey, output string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Textarea,
		Data:     "textarea",
		Attr: []html.Attribute{
			{Key: "hidden"},
			{Key: "readonly"},
			{Key: "class", Val: "code-output"},
			{Key: responses.KeyAttr, Val: outputKey},
			{Key: responses.KindAttr, Val: responses.TypeOutput},
		},
	}
	if output != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: output})
	}
	return n
}
