package render

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/trezcool/pogil/core/coderun"
	"github.com/trezcool/pogil/core/responses"
	"github.com/trezcool/pogil/core/sheet"
)

// codeCell renders an interactive code cell. The source textarea holds the
// cell's answer whatever its state; the Viewing state shows it highlighted
// instead. The captured output sits in a hidden element under the output key.
func (r *renderer) codeCell(c sheet.Code, key string) *html.Node {
	code := c.Content
	if saved, ok := r.opts.Prefill[key]; ok {
		code = saved.Response
	}

	state := r.opts.CodeStates[key]
	if state == coderun.Editing && !r.opts.canEdit() {
		state = coderun.Viewing
	}

	cell := el(atom.Div,
		"class", "code-cell",
		"data-code-key", key,
		"data-language", string(c.Language),
		"data-state", state.String(),
	)
	if r.opts.canEdit() {
		flag(cell, "data-editable")
	}

	editor := el(atom.Textarea,
		"class", "code-editor",
		"spellcheck", "false",
		responses.KeyAttr, key,
		responses.KindAttr, string(c.Language),
	)
	if state != coderun.Editing {
		flag(editor, "readonly")
	}
	if code != "" {
		editor.AppendChild(text(code))
	}

	if state == coderun.Editing {
		cell.AppendChild(editor)
	} else {
		flag(editor, "hidden")
		view := appendChildren(el(atom.Div, "class", "code-view"), highlight(c.Language, code)...)
		appendChildren(cell, view, editor)
	}

	if outKey, ok := sheet.OutputKey(key); ok {
		cell.AppendChild(coderun.OutputNode(outKey, r.opts.Prefill.Get(outKey)))
	}
	return cell
}
