// Package sheet turns activity markup into an ordered list of typed blocks.
package sheet

import (
	"encoding/json"
	"strconv"
)

// Kind identifies a block variant. It is also the "type" field of the JSON form.
type Kind string

const (
	KindText       Kind = "text"
	KindList       Kind = "list"
	KindHeader     Kind = "header"
	KindSection    Kind = "section"
	KindGroupIntro Kind = "groupIntro"
	KindEndGroup   Kind = "endGroup"
	KindQuestion   Kind = "question"
	KindPython     Kind = "python"
	KindCpp        Kind = "cpp"

	// standalone authoring notes, only shown in preview
	KindSamples   Kind = "sampleresponses"
	KindFeedback  Kind = "feedbackprompt"
	KindFollowups Kind = "followupprompt"
)

// Hidden reports whether blocks of this kind are suppressed outside preview mode.
func (k Kind) Hidden() bool {
	switch k {
	case KindSamples, KindFeedback, KindFollowups:
		return true
	}
	return false
}

// Block is one parsed unit of activity content.
type Block interface {
	Kind() Kind
}

type ListType string

const (
	Ordered   ListType = "ordered"
	Unordered ListType = "unordered"
)

type HeaderTag string

const (
	TagTitle   HeaderTag = "title"
	TagName    HeaderTag = "name"
	TagSection HeaderTag = "section"
)

type Language string

const (
	Python Language = "python"
	Cpp    Language = "cpp"
)

type (
	Text struct {
		Content string `json:"content"`
	}

	List struct {
		ListType ListType `json:"listType"`
		Items    []string `json:"items"`
	}

	Header struct {
		Tag     HeaderTag `json:"tag"`
		Content string    `json:"content"`
	}

	Section struct {
		Name    string  `json:"name"`
		Content []Block `json:"content"`
	}

	GroupIntro struct {
		GroupID int    `json:"groupId"`
		Content string `json:"content"`
	}

	EndGroup struct{}

	// Code is a python or cpp cell, standalone or embedded in a question.
	Code struct {
		Language Language `json:"language"`
		Content  string   `json:"content"`
	}

	Question struct {
		ID            string   `json:"id"`
		GroupID       int      `json:"groupId"`
		Label         string   `json:"label"`
		ResponseID    int      `json:"responseId"`
		Prompt        string   `json:"prompt"`
		ResponseLines int      `json:"responseLines"`
		Samples       []string `json:"samples"`
		Feedback      []string `json:"feedback"`
		Followups     []string `json:"followups"`
		CodeBlocks    []Code   `json:"codeBlocks,omitempty"`
	}

	// Note is a samples, feedback or followup list written outside of any question.
	Note struct {
		Field Kind     `json:"-"`
		Items []string `json:"items"`
	}
)

func (Text) Kind() Kind       { return KindText }
func (List) Kind() Kind       { return KindList }
func (Header) Kind() Kind     { return KindHeader }
func (Section) Kind() Kind    { return KindSection }
func (GroupIntro) Kind() Kind { return KindGroupIntro }
func (EndGroup) Kind() Kind   { return KindEndGroup }
func (Question) Kind() Kind   { return KindQuestion }
func (n Note) Kind() Kind     { return n.Field }

func (c Code) Kind() Kind {
	if c.Language == Cpp {
		return KindCpp
	}
	return KindPython
}

// ResponseKey is the composite key (group + letter) the question's answer is stored under.
func (q Question) ResponseKey() string {
	return ResponseKey(q.GroupID, q.ID)
}

// CodeKey is the response key of the question's m-th (1-based) embedded code block.
func (q Question) CodeKey(m int) string {
	return q.ResponseKey() + "code" + strconv.Itoa(m)
}

func typed(k Kind, v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	head := []byte(`{"type":` + strconv.Quote(string(k)))
	if string(raw) == "{}" {
		return append(head, '}'), nil
	}
	return append(append(head, ','), raw[1:]...), nil
}

func (b Text) MarshalJSON() ([]byte, error) {
	type plain Text
	return typed(b.Kind(), plain(b))
}

func (b List) MarshalJSON() ([]byte, error) {
	type plain List
	return typed(b.Kind(), plain(b))
}

func (b Header) MarshalJSON() ([]byte, error) {
	type plain Header
	return typed(b.Kind(), plain(b))
}

func (b Section) MarshalJSON() ([]byte, error) {
	type plain Section
	if b.Content == nil {
		b.Content = []Block{}
	}
	return typed(b.Kind(), plain(b))
}

func (b GroupIntro) MarshalJSON() ([]byte, error) {
	type plain GroupIntro
	return typed(b.Kind(), plain(b))
}

func (b EndGroup) MarshalJSON() ([]byte, error) {
	return typed(b.Kind(), struct{}{})
}

func (b Code) MarshalJSON() ([]byte, error) {
	return typed(b.Kind(), struct {
		Content string `json:"content"`
	}{b.Content})
}

func (b Question) MarshalJSON() ([]byte, error) {
	type plain Question
	return typed(b.Kind(), plain(b))
}

func (b Note) MarshalJSON() ([]byte, error) {
	type plain Note
	return typed(b.Kind(), plain(b))
}
