package render

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/net/html"

	"github.com/trezcool/pogil/core/coderun"
	"github.com/trezcool/pogil/core/responses"
	"github.com/trezcool/pogil/core/sheet"
)

func renderLines(t *testing.T, nodes []*html.Node) string {
	t.Helper()
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		s, err := ToHTML([]*html.Node{n})
		if err != nil {
			t.Fatalf("ToHTML() error = %v", err)
		}
		lines = append(lines, s)
	}
	return strings.Join(lines, "\n") + "\n"
}

func assertHTML(t *testing.T, got, want string) {
	t.Helper()
	if got == want {
		return
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	t.Errorf("rendered HTML mismatch:\n%s", diff)
}

func TestRender_golden(t *testing.T) {
	blocks := []sheet.Block{
		sheet.Header{Tag: sheet.TagTitle, Content: "Loops"},
		sheet.Text{Content: "Read <strong>carefully</strong>."},
		sheet.List{ListType: sheet.Unordered, Items: []string{"one", "<em>two</em>"}},
		sheet.GroupIntro{GroupID: 1, Content: "Basics"},
		sheet.Question{ID: "a", GroupID: 1, Label: "a.", Prompt: "What is 1+1?", ResponseLines: 1},
		sheet.Note{Field: sheet.KindFeedback, Items: []string{"be kind"}},
		sheet.EndGroup{},
	}
	opts := Options{
		Mode:     Run,
		Editable: true,
		IsActive: true,
		Prefill:  responses.Prefill{"1a": {Response: "2 & 2", Type: responses.TypeText}},
	}

	want := `<h1 class="sheet-title">Loops</h1>
<p class="text">Read <strong>carefully</strong>.</p>
<ul class="sheet-list"><li>one</li><li><em>two</em></li></ul>
<div class="group-intro" data-group-id="1"><strong>1.</strong> Basics</div>
<div class="question" data-question-id="1a"><p class="prompt"><strong>a.</strong> What is 1+1?</p><textarea class="response" rows="2" data-response-key="1a" data-response-kind="text">2 &amp; 2</textarea></div>
`
	assertHTML(t, renderLines(t, Render(blocks, opts)), want)

	opts.Mode = Preview
	got := renderLines(t, Render(blocks, opts))
	if !strings.Contains(got, `<p class="text-muted note"><em>Feedback: be kind</em></p>`) {
		t.Errorf("preview does not show the feedback note:\n%s", got)
	}
}

func TestRender_questionReadOnly(t *testing.T) {
	q := sheet.Question{ID: "b", GroupID: 2, Label: "b.", Prompt: "Why?", ResponseLines: 3,
		Samples: []string{"because"}, Followups: []string{"Are you sure?"}}
	tests := []struct {
		name         string
		opts         Options
		wantReadOnly bool
	}{
		{name: "active editor", opts: Options{Mode: Run, Editable: true, IsActive: true}},
		{name: "observer", opts: Options{Mode: Run, Editable: true}, wantReadOnly: true},
		{name: "not editable", opts: Options{Mode: Run, IsActive: true}, wantReadOnly: true},
		{
			name: "answer complete",
			opts: Options{Mode: Run, Editable: true, IsActive: true,
				Prefill: responses.Prefill{"2bS": {Response: sheet.StatusComplete, Type: responses.TypeStatus}}},
			wantReadOnly: true,
		},
		{
			name: "group submitted",
			opts: Options{Mode: Run, Editable: true, IsActive: true,
				Prefill: responses.Prefill{"2state": {Response: sheet.StatusComplete, Type: responses.TypeStatus}}},
			wantReadOnly: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := []sheet.Block{sheet.GroupIntro{GroupID: 2}, q, sheet.EndGroup{}}
			root := Document(Render(blocks, tt.opts))
			answer := responses.Find(root, "2b")
			if answer == nil {
				t.Fatal("no element bound to 2b")
			}
			if got := responses.HasAttr(answer, "readonly"); got != tt.wantReadOnly {
				t.Errorf("readonly = %v, want %v", got, tt.wantReadOnly)
			}
			if got := responses.Attr(answer, "rows"); got != "3" {
				t.Errorf("rows = %q, want 3", got)
			}
			s, _ := ToHTML([]*html.Node{root})
			if strings.Contains(s, "Sample:") || strings.Contains(s, "Follow-up:") {
				t.Errorf("instructor notes rendered outside preview:\n%s", s)
			}
		})
	}
}

func TestRender_savedFollowups(t *testing.T) {
	q := sheet.Question{ID: "a", GroupID: 1, Label: "a.", Prompt: "Explain."}
	prefill := responses.Prefill{
		"1a":    {Response: "first try"},
		"1aF10": {Response: "tenth"},
		"1aF2":  {Response: "Why <that>?"},
		"1aFA2": {Response: "because"},
		"1aF1":  {Response: "Can you elaborate?"},
	}
	nodes := Render([]sheet.Block{q}, Options{Mode: Run, Prefill: prefill})

	want := `<div class="question" data-question-id="1a"><p class="prompt"><strong>a.</strong> Explain.</p>` +
		`<textarea class="response" rows="2" data-response-key="1a" data-response-kind="text" readonly="">first try</textarea>` +
		`<div class="followup"><div class="text-muted"><strong>Follow-up 1:</strong> Can you elaborate?</div></div>` +
		`<div class="followup"><div class="text-muted"><strong>Follow-up 2:</strong> Why &lt;that&gt;?</div><div class="followup-answer">because</div></div>` +
		`<div class="followup"><div class="text-muted"><strong>Follow-up 3:</strong> tenth</div></div>` +
		"</div>\n"
	assertHTML(t, renderLines(t, nodes), want)
}

func TestRender_codeKeys(t *testing.T) {
	blocks := sheet.Parse([]string{
		`\python`,
		`print("preamble")`,
		`\endpython`,
		`\questiongroup{Loops}`,
		`\python`,
		`for i in range(3): print(i)`,
		`\endpython`,
		`\question{Predict the output.}`,
		`\cpp`,
		`int main() {}`,
		`\endcpp`,
		`\endquestion`,
		`\python`,
		`print("second")`,
		`\endpython`,
		`\endquestiongroup`,
		`\python`,
		`print("after")`,
		`\endpython`,
	})
	opts := Options{
		Mode:     Run,
		Editable: true,
		IsActive: true,
		Prefill: responses.Prefill{
			"1code2":   {Response: "print('saved')", Type: responses.TypePython},
			"1output2": {Response: "saved\n", Type: responses.TypeOutput},
		},
		CodeStates: map[string]coderun.State{"1acode1": coderun.Editing},
	}

	for name, nodes := range map[string][]*html.Node{
		"Render":      Render(blocks, opts),
		"RenderSheet": RenderSheet(blocks, opts),
	} {
		t.Run(name, func(t *testing.T) {
			got, err := responses.Collect(Document(nodes))
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			want := map[string]string{
				"0code1": `print("preamble")`, "0output1": "",
				"1code1": "for i in range(3): print(i)", "1output1": "",
				"1acode1": "int main() {}", "1aoutput1": "",
				"1a":     "",
				"1code2": "print('saved')", "1output2": "saved\n",
				"0code2": `print("after")`, "0output2": "",
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Collect() = %v, want %v", got, want)
			}
		})
	}

	root := Document(Render(blocks, opts))
	editing := responses.Find(root, "1acode1")
	if responses.HasAttr(editing, "readonly") || responses.HasAttr(editing, "hidden") {
		t.Error("code cell in Editing state is not editable")
	}
	viewing := responses.Find(root, "1code1")
	if !responses.HasAttr(viewing, "readonly") || !responses.HasAttr(viewing, "hidden") {
		t.Error("code cell in Viewing state shows its raw editor")
	}
	if responses.Attr(responses.Find(root, "1acode1"), responses.KindAttr) != "cpp" {
		t.Error("embedded C++ cell not typed cpp")
	}
	s, _ := ToHTML([]*html.Node{root})
	if !strings.Contains(s, `class="chroma"`) {
		t.Errorf("viewing cells are not highlighted:\n%s", s)
	}

	// an observer never gets an editor, whatever the cell state
	opts.IsActive = false
	root = Document(Render(blocks, opts))
	if !responses.HasAttr(responses.Find(root, "1acode1"), "readonly") {
		t.Error("observer can edit a code cell")
	}
}

func TestRenderSheet_preambleReadOnly(t *testing.T) {
	blocks := []sheet.Block{
		sheet.Question{ID: "a", GroupID: 0, Label: "a.", Prompt: "Warm up"},
		sheet.GroupIntro{GroupID: 1, Content: "Group"},
		sheet.Question{ID: "a", GroupID: 1, Label: "a.", Prompt: "Go"},
		sheet.EndGroup{},
	}
	root := Document(RenderSheet(blocks, Options{Mode: Run, Editable: true, IsActive: true}))
	if !responses.HasAttr(responses.Find(root, "0a"), "readonly") {
		t.Error("preamble question is editable")
	}
	if responses.HasAttr(responses.Find(root, "1a"), "readonly") {
		t.Error("group question is read-only")
	}
	s, _ := ToHTML([]*html.Node{root})
	if !strings.Contains(s, `<section class="question-group" data-group-id="1"><div class="group-intro" data-group-id="1">`) {
		t.Errorf("group not wrapped in its section:\n%s", s)
	}
}

func TestSplit(t *testing.T) {
	intro1 := sheet.GroupIntro{GroupID: 1, Content: "one"}
	intro2 := sheet.GroupIntro{GroupID: 2, Content: "two"}
	a, b, c, d := sheet.Text{Content: "a"}, sheet.Text{Content: "b"}, sheet.Text{Content: "c"}, sheet.Text{Content: "d"}

	preamble, groups := Split([]sheet.Block{a, intro1, b, intro2, c, sheet.EndGroup{}, d})

	if want := []sheet.Block{a, d}; !reflect.DeepEqual(preamble, want) {
		t.Errorf("Split() preamble = %v, want %v", preamble, want)
	}
	want := []Group{
		{ID: 1, Intro: intro1, Blocks: []sheet.Block{b}},
		{ID: 2, Intro: intro2, Blocks: []sheet.Block{c}},
	}
	if !reflect.DeepEqual(groups, want) {
		t.Errorf("Split() groups = %+v, want %+v", groups, want)
	}
}
