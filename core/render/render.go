// Package render turns parsed activity blocks into the DOM students work in.
//
// Every student-fillable element carries its response key in the
// data-response-key attribute (and its answer type in data-response-kind),
// so responses.Collect can harvest a rendered tree.
package render

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/trezcool/pogil/core/coderun"
	"github.com/trezcool/pogil/core/responses"
	"github.com/trezcool/pogil/core/sheet"
)

type Mode string

const (
	Preview Mode = "preview"
	Run     Mode = "run"
	Edit    Mode = "edit"
)

// Options of a render pass.
type Options struct {
	Mode Mode
	// Editable marks the whole pass editable. Fields are only editable when
	// the actor IsActive as well.
	Editable bool
	IsActive bool
	Prefill  responses.Prefill
	// CodeStates gives the state of code cells by code key; cells default to Viewing.
	CodeStates map[string]coderun.State
}

func (o Options) canEdit() bool { return o.Editable && o.IsActive }

// Group is a question group with the blocks it encloses.
type Group struct {
	ID     int
	Intro  sheet.GroupIntro
	Blocks []sheet.Block
}

// Split separates the preamble from the question groups. Blocks outside of
// any group (before the first one or between an endGroup and the next group)
// belong to the preamble; a group ends at its endGroup or at the next group.
func Split(blocks []sheet.Block) (preamble []sheet.Block, groups []Group) {
	var cur *Group
	for _, b := range blocks {
		switch b := b.(type) {
		case sheet.GroupIntro:
			if cur != nil {
				groups = append(groups, *cur)
			}
			cur = &Group{ID: b.GroupID, Intro: b}
		case sheet.EndGroup:
			if cur != nil {
				groups = append(groups, *cur)
				cur = nil
			}
		default:
			if cur != nil {
				cur.Blocks = append(cur.Blocks, b)
			} else {
				preamble = append(preamble, b)
			}
		}
	}
	if cur != nil {
		groups = append(groups, *cur)
	}
	return preamble, groups
}

// Render maps blocks to UI nodes, in order. Hidden blocks are left out.
func Render(blocks []sheet.Block, opts Options) []*html.Node {
	return newRenderer(opts).blocks(blocks)
}

// RenderSheet renders a whole activity: the preamble read-only, then each
// group in its own section.
func RenderSheet(blocks []sheet.Block, opts Options) []*html.Node {
	preamble, groups := Split(blocks)

	readOnly := opts
	readOnly.Editable, readOnly.IsActive = false, false
	r := newRenderer(readOnly)
	nodes := r.blocks(preamble)

	r.opts = opts
	for _, g := range groups {
		sec := el(atom.Section, "class", "question-group", "data-group-id", strconv.Itoa(g.ID))
		r.enterGroup(g.Intro)
		appendChildren(sec, r.block(g.Intro))
		appendChildren(sec, r.blocks(g.Blocks)...)
		r.leaveGroup()
		nodes = append(nodes, sec)
	}
	return nodes
}

// Document wraps rendered nodes in a single root, as harvested by responses.Collect.
func Document(nodes []*html.Node) *html.Node {
	return appendChildren(el(atom.Div, "class", "activity"), nodes...)
}

type renderer struct {
	opts     Options
	group    int         // current group, 0 for the preamble
	complete bool        // current group already submitted
	cells    map[int]int // standalone code cells seen per group
}

func newRenderer(opts Options) *renderer {
	return &renderer{opts: opts, cells: make(map[int]int)}
}

func (r *renderer) enterGroup(g sheet.GroupIntro) {
	r.group = g.GroupID
	r.complete = r.opts.Prefill.Get(sheet.GroupStateKey(g.GroupID)) == sheet.StatusComplete
}

func (r *renderer) leaveGroup() {
	r.group, r.complete = 0, false
}

func (r *renderer) blocks(blocks []sheet.Block) []*html.Node {
	nodes := make([]*html.Node, 0, len(blocks))
	for _, b := range blocks {
		switch b := b.(type) {
		case sheet.GroupIntro:
			r.enterGroup(b)
		case sheet.EndGroup:
			r.leaveGroup()
		}
		if n := r.block(b); n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (r *renderer) block(b sheet.Block) *html.Node {
	if b.Kind().Hidden() && r.opts.Mode != Preview {
		return nil
	}

	switch b := b.(type) {
	case sheet.Text:
		return appendFragment(el(atom.P, "class", "text"), b.Content)
	case sheet.List:
		return r.list(b)
	case sheet.Header:
		return r.header(b)
	case sheet.Section:
		sec := el(atom.Section, "class", "sheet-section")
		appendChildren(sec, appendFragment(el(atom.H2), b.Name))
		return appendChildren(sec, r.blocks(b.Content)...)
	case sheet.GroupIntro:
		intro := el(atom.Div, "class", "group-intro", "data-group-id", strconv.Itoa(b.GroupID))
		appendChildren(intro, appendChildren(el(atom.Strong), text(strconv.Itoa(b.GroupID)+".")), text(" "))
		return appendFragment(intro, b.Content)
	case sheet.EndGroup:
		return nil
	case sheet.Code:
		r.cells[r.group]++
		return r.codeCell(b, sheet.CellKey(r.group, r.cells[r.group]))
	case sheet.Question:
		return r.question(b)
	case sheet.Note:
		return note(noteLabel(b.Field), b.Items)
	}
	return nil
}

func (r *renderer) list(b sheet.List) *html.Node {
	tag := atom.Ol
	if b.ListType == sheet.Unordered {
		tag = atom.Ul
	}
	list := el(tag, "class", "sheet-list")
	for _, item := range b.Items {
		list.AppendChild(appendFragment(el(atom.Li), item))
	}
	return list
}

func (r *renderer) header(b sheet.Header) *html.Node {
	tag := atom.H3
	switch b.Tag {
	case sheet.TagTitle:
		tag = atom.H1
	case sheet.TagName:
		tag = atom.H2
	}
	return appendFragment(el(tag, "class", "sheet-"+string(b.Tag)), b.Content)
}

func (r *renderer) question(q sheet.Question) *html.Node {
	key := q.ResponseKey()
	div := el(atom.Div, "class", "question", "data-question-id", key)

	prompt := el(atom.P, "class", "prompt")
	appendChildren(prompt, appendChildren(el(atom.Strong), text(q.Label)), text(" "))
	div.AppendChild(appendFragment(prompt, q.Prompt))

	for i, c := range q.CodeBlocks {
		div.AppendChild(r.codeCell(c, q.CodeKey(i+1)))
	}

	lines := q.ResponseLines
	if lines < 2 {
		lines = 2
	}
	answer := el(atom.Textarea,
		"class", "response",
		"rows", strconv.Itoa(lines),
		responses.KeyAttr, key,
		responses.KindAttr, responses.TypeText,
	)
	if !r.opts.canEdit() || r.complete || r.opts.Prefill.Get(sheet.StatusKey(key)) == sheet.StatusComplete {
		flag(answer, "readonly")
	}
	if v := r.opts.Prefill.Get(key); v != "" {
		answer.AppendChild(text(v))
	}
	div.AppendChild(answer)

	if r.opts.Mode == Preview {
		appendChildren(div,
			note("Sample", q.Samples),
			note("Feedback", q.Feedback),
			note("Follow-up", q.Followups),
		)
	}
	appendChildren(div, r.savedFollowups(key)...)
	return div
}

// savedFollowups shows the follow-up questions asked so far and their
// answers, read-only, in follow-up order.
func (r *renderer) savedFollowups(key string) []*html.Node {
	prefix := key + "F"
	var ns []int
	for k := range r.opts.Prefill {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if n, err := strconv.Atoi(k[len(prefix):]); err == nil && n > 0 {
			ns = append(ns, n)
		}
	}
	sort.Ints(ns)

	nodes := make([]*html.Node, 0, len(ns))
	for i, n := range ns {
		fu := el(atom.Div, "class", "followup")
		label := appendChildren(el(atom.Strong), text("Follow-up "+strconv.Itoa(i+1)+":"))
		fu.AppendChild(appendChildren(el(atom.Div, "class", "text-muted"),
			label, text(" "+r.opts.Prefill.Get(sheet.FollowupKey(key, n)))))
		if a := r.opts.Prefill.Get(sheet.FollowupAnswerKey(key, n)); a != "" {
			fu.AppendChild(appendChildren(el(atom.Div, "class", "followup-answer"), text(a)))
		}
		nodes = append(nodes, fu)
	}
	return nodes
}

func noteLabel(k sheet.Kind) string {
	switch k {
	case sheet.KindSamples:
		return "Sample"
	case sheet.KindFeedback:
		return "Feedback"
	}
	return "Follow-up"
}

// note is an instructor-only line, shown in preview.
func note(label string, items []string) *html.Node {
	if len(items) == 0 {
		return nil
	}
	em := appendFragment(el(atom.Em), label+": "+strings.Join(items, "; "))
	return appendChildren(el(atom.P, "class", "text-muted note"), em)
}
