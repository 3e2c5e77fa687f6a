package sheet

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

type warnRecorder struct {
	warnings []map[string]interface{}
}

func (r *warnRecorder) Debug(string, ...interface{}) {}
func (r *warnRecorder) Info(string, ...interface{})  {}
func (r *warnRecorder) Error(string, ...interface{}) {}
func (r *warnRecorder) Fatal(string, ...interface{}) {}
func (r *warnRecorder) Warn(_ string, args ...interface{}) {
	for _, arg := range args {
		if m, ok := arg.(map[string]interface{}); ok {
			r.warnings = append(r.warnings, m)
		}
	}
}

func question(group int, id string, responseID int, prompt string, lines int) Question {
	return Question{
		ID:            id,
		GroupID:       group,
		Label:         id + ".",
		ResponseID:    responseID,
		Prompt:        prompt,
		ResponseLines: lines,
		Samples:       []string{},
		Feedback:      []string{},
		Followups:     []string{},
	}
}

func TestParse(t *testing.T) {
	withSamples := question(1, "a", 1, "Why?", 1)
	withSamples.Samples = []string{"because", "it is <strong>so</strong>"}
	withSamples.Feedback = []string{"be kind"}
	withSamples.Followups = []string{"why not?", "and then?"}

	withCode := question(0, "a", 1, "Run it.", 1)
	withCode.CodeBlocks = []Code{
		{Language: Python, Content: "x = 1\n  print(x)"},
		{Language: Cpp, Content: "int main() {}"},
	}

	tests := []struct {
		name  string
		lines []string
		want  []Block
		warns int
	}{
		{
			name: "group with question",
			lines: []string{
				`\questiongroup{intro}`,
				`\question{What is 1+1?}`,
				`\textresponse{2}`,
				`\endquestion`,
				`\endquestiongroup`,
			},
			want: []Block{
				GroupIntro{GroupID: 1, Content: "intro"},
				question(1, "a", 1, "What is 1+1?", 2),
				EndGroup{},
			},
		},
		{
			name:  "stray endquestion",
			lines: []string{`\endquestion`},
			want:  []Block{},
			warns: 1,
		},
		{
			name: "headers and text",
			lines: []string{
				`\title{Loops}`,
				`\name{Activity \textit{1}}`,
				`\section*{Model 1}`,
				`first line`,
				`  second \textbf{bold} line  `,
				``,
				`\textbf{Note}`,
				`a < b`,
			},
			want: []Block{
				Header{Tag: TagTitle, Content: "Loops"},
				Header{Tag: TagName, Content: "Activity <em>1</em>"},
				Section{Name: "Model 1", Content: []Block{}},
				Text{Content: "first line second <strong>bold</strong> line"},
				Text{Content: "<strong>Note</strong>"},
				Text{Content: "a &lt; b"},
			},
		},
		{
			name: "lists",
			lines: []string{
				`intro`,
				`\begin{enumerate}`,
				`\item one`,
				`\item \text{two}`,
				`  wrapped`,
				`\end{enumerate}`,
				`\begin{itemize}`,
				`\item x`,
			},
			want: []Block{
				Text{Content: "intro"},
				List{ListType: Ordered, Items: []string{"one", "two wrapped"}},
				List{ListType: Unordered, Items: []string{"x"}},
			},
			warns: 1,
		},
		{
			name: "question fields",
			lines: []string{
				`\questiongroup{g}`,
				`\question{Why?}`,
				`\sampleresponses{because}`,
				`\sampleresponses`,
				`it is \textbf{so}`,
				`\endsampleresponses`,
				`\feedbackprompt{be kind}`,
				`\followupprompt`,
				`why not?`,
				`and then?`,
				`\endfollowupprompt`,
				`\endquestion`,
			},
			want: []Block{
				GroupIntro{GroupID: 1, Content: "g"},
				withSamples,
			},
		},
		{
			name: "code cells",
			lines: []string{
				`\python`,
				`print("hi")`,
				`\endpython`,
				`\question{Run it.}`,
				`\python`,
				`x = 1`,
				`  print(x)`,
				`\endpython`,
				`\cpp`,
				`int main() {}`,
				`\endcpp`,
				`\endquestion`,
			},
			want: []Block{
				Code{Language: Python, Content: `print("hi")`},
				withCode,
			},
		},
		{
			name: "unclosed question dropped",
			lines: []string{
				`\questiongroup{g}`,
				`\question{lost}`,
				`\question{kept}`,
				`\endquestion`,
				`\question{lost at eof}`,
			},
			want: []Block{
				GroupIntro{GroupID: 1, Content: "g"},
				question(1, "b", 2, "kept", 1),
			},
			warns: 2,
		},
		{
			name: "unclosed code flushed at eof",
			lines: []string{
				`\cpp`,
				`int x;`,
			},
			want:  []Block{Code{Language: Cpp, Content: "int x;"}},
			warns: 1,
		},
		{
			name: "standalone notes",
			lines: []string{
				`\feedbackprompt{be nice}`,
				`\sampleresponses`,
				`one`,
				`\endsampleresponses`,
			},
			want: []Block{
				Note{Field: KindFeedback, Items: []string{"be nice"}},
				Note{Field: KindSamples, Items: []string{"one"}},
			},
		},
		{
			name: "invalid textresponse",
			lines: []string{
				`\question{q}`,
				`\textresponse{zero}`,
				`\endquestion`,
				`\textresponse{3}`,
			},
			want:  []Block{question(0, "a", 1, "q", 1)},
			warns: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(warnRecorder)
			got := NewParser(rec).Parse(tt.lines)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() =\n%#v\nwant\n%#v", got, tt.want)
			}
			if len(rec.warnings) != tt.warns {
				t.Errorf("Parse() warnings = %v, want %d", rec.warnings, tt.warns)
			}
		})
	}
}

func TestParse_letters(t *testing.T) {
	lines := []string{`\questiongroup{one}`}
	for i := 0; i < 28; i++ {
		lines = append(lines, `\question{q}`, `\endquestion`)
	}
	lines = append(lines, `\endquestiongroup`, `\questiongroup{two}`, `\question{q}`, `\endquestion`)

	var ids []string
	var responseIDs []int
	for _, b := range Parse(lines) {
		if q, ok := b.(Question); ok {
			ids = append(ids, q.ResponseKey())
			responseIDs = append(responseIDs, q.ResponseID)
		}
	}
	if len(ids) != 29 {
		t.Fatalf("got %d questions, want 29", len(ids))
	}
	for i, want := range map[int]string{0: "1a", 1: "1b", 25: "1z", 26: "1aa", 27: "1ab", 28: "2a"} {
		if ids[i] != want {
			t.Errorf("question %d key = %s, want %s", i, ids[i], want)
		}
	}
	if responseIDs[28] != 29 {
		t.Errorf("responseId is global, got %d, want 29", responseIDs[28])
	}
}

func TestParse_deterministic(t *testing.T) {
	text := strings.Join([]string{
		`\title{T}`,
		`\questiongroup{g}`,
		`\question{a \textbf{b}}`,
		`\python`,
		`print(1)`,
		`\endpython`,
		`\endquestion`,
		`\begin{itemize}`,
		`\item i`,
		`\end{itemize}`,
		`\endquestiongroup`,
	}, "\r\n")

	first, second := NewParser(nil).ParseText(text), NewParser(nil).ParseText(text)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("ParseText() is not deterministic:\n%#v\n%#v", first, second)
	}
}

func TestColumnID(t *testing.T) {
	tests := map[int]string{-1: "", 0: "a", 1: "b", 25: "z", 26: "aa", 27: "ab", 51: "az", 52: "ba", 701: "zz", 702: "aaa"}
	for n, want := range tests {
		if got := ColumnID(n); got != want {
			t.Errorf("ColumnID(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestOutputKey(t *testing.T) {
	tests := []struct {
		key    string
		want   string
		wantOk bool
	}{
		{key: "2pcode1", want: "2poutput1", wantOk: true},
		{key: "0code12", want: "0output12", wantOk: true},
		{key: "1aacode3", want: "1aaoutput3", wantOk: true},
		{key: "1a"},
		{key: "codex1"},
		{key: "1acode"},
		{key: "x1acode1"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := OutputKey(tt.key)
			if got != tt.want || ok != tt.wantOk {
				t.Errorf("OutputKey(%q) = %q, %v; want %q, %v", tt.key, got, ok, tt.want, tt.wantOk)
			}
		})
	}
}

func TestBlock_MarshalJSON(t *testing.T) {
	q := question(1, "a", 1, "p", 2)
	q.CodeBlocks = []Code{{Language: Python, Content: "x"}}
	blocks := []Block{GroupIntro{GroupID: 1, Content: "g"}, q, EndGroup{}, Note{Field: KindSamples, Items: []string{"s"}}}

	got, err := json.Marshal(blocks)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	want := `[{"type":"groupIntro","groupId":1,"content":"g"},` +
		`{"type":"question","id":"a","groupId":1,"label":"a.","responseId":1,"prompt":"p","responseLines":2,` +
		`"samples":[],"feedback":[],"followups":[],"codeBlocks":[{"type":"python","content":"x"}]},` +
		`{"type":"endGroup"},{"type":"sampleresponses","items":["s"]}]`
	if string(got) != want {
		t.Errorf("json.Marshal() =\n%s\nwant\n%s", got, want)
	}
}
