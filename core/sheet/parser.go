package sheet

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/trezcool/pogil/core"
)

// mode is the parser's current state. Every line is classified into a token
// and dispatched through the transition table of the current mode.
type mode int

const (
	modeNormal mode = iota
	modeList
	modeQuestion
	modeSamples
	modeFeedback
	modeFollowups
	modeCode
)

var modeNames = [...]string{"normal", "list", "question", "samples", "feedback", "followups", "code"}

func (m mode) String() string { return modeNames[m] }

type tokenKind int

const (
	tokText tokenKind = iota
	tokBlank
	tokBeginList
	tokEndList
	tokItem
	tokBeginCode
	tokEndCode
	tokHeader
	tokSection
	tokGroup
	tokEndGroup
	tokQuestion
	tokEndQuestion
	tokTextResponse
	tokInlineField
	tokBeginField
	tokEndField
	tokBold
)

type token struct {
	kind tokenKind
	line string // raw line
	arg  string // first capture
	arg2 string // second capture
}

var lexicon = []struct {
	kind tokenKind
	re   *regexp.Regexp
}{
	{tokBeginList, regexp.MustCompile(`^\\begin\{(itemize|enumerate)\}$`)},
	{tokEndList, regexp.MustCompile(`^\\end\{(itemize|enumerate)\}$`)},
	{tokItem, regexp.MustCompile(`^\\item(?:\s+(.*))?$`)},
	{tokBeginCode, regexp.MustCompile(`^\\(python|cpp)$`)},
	{tokEndCode, regexp.MustCompile(`^\\end(python|cpp)$`)},
	{tokHeader, regexp.MustCompile(`^\\(title|name)\{(.*)\}$`)},
	{tokSection, regexp.MustCompile(`^\\section\*?\{(.*)\}$`)},
	{tokGroup, regexp.MustCompile(`^\\questiongroup\{(.*)\}`)},
	{tokEndGroup, regexp.MustCompile(`^\\endquestiongroup$`)},
	{tokQuestion, regexp.MustCompile(`^\\question\{(.*)\}`)},
	{tokEndQuestion, regexp.MustCompile(`^\\endquestion$`)},
	{tokTextResponse, regexp.MustCompile(`^\\textresponse(?:\{(.*)\})?`)},
	{tokInlineField, regexp.MustCompile(`^\\(sampleresponses|feedbackprompt|followupprompt)\{(.*)\}`)},
	{tokBeginField, regexp.MustCompile(`^\\(sampleresponses|feedbackprompt|followupprompt)$`)},
	{tokEndField, regexp.MustCompile(`^\\end(sampleresponses|feedbackprompt|followupprompt)$`)},
	{tokBold, regexp.MustCompile(`^\\textbf\{([^{}]*)\}$`)},
}

func (t token) text() string { return strings.TrimSpace(t.line) }

func classify(line string) token {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return token{kind: tokBlank, line: line}
	}
	for _, lx := range lexicon {
		if m := lx.re.FindStringSubmatch(trimmed); m != nil {
			t := token{kind: lx.kind, line: line}
			if len(m) > 1 {
				t.arg = m[1]
			}
			if len(m) > 2 {
				t.arg2 = m[2]
			}
			return t
		}
	}
	return token{kind: tokText, line: line, arg: trimmed}
}

type handler func(p *parser, t token)

var (
	// transitions[mode][token] handles the token; tokens missing from a mode's
	// row go to fallbacks[mode].
	transitions map[mode]map[tokenKind]handler
	fallbacks   map[mode]handler
)

func init() {
	structural := map[tokenKind]handler{
		tokBeginList:    (*parser).beginList,
		tokBeginCode:    (*parser).beginCode,
		tokHeader:       (*parser).header,
		tokSection:      (*parser).section,
		tokGroup:        (*parser).openGroup,
		tokEndGroup:     (*parser).endGroup,
		tokQuestion:     (*parser).openQuestion,
		tokBold:         (*parser).bold,
		tokInlineField:  (*parser).inlineNote,
		tokBeginField:   (*parser).beginNote,
		tokEndQuestion:  (*parser).strayEndQuestion,
		tokTextResponse: (*parser).strayTextResponse,
		tokBlank:        (*parser).skip,
		tokEndCode:      (*parser).stray,
		tokEndList:      (*parser).stray,
		tokEndField:     (*parser).stray,
	}
	inQuestion := map[tokenKind]handler{
		tokBeginCode:    (*parser).beginCode,
		tokEndQuestion:  (*parser).endQuestion,
		tokTextResponse: (*parser).textResponse,
		tokInlineField:  (*parser).inlineField,
		tokBeginField:   (*parser).beginField,
		tokQuestion:     (*parser).abandonQuestion,
		tokGroup:        (*parser).abandonQuestion,
		tokEndGroup:     (*parser).abandonQuestion,
		tokBeginList:    (*parser).beginList,
		tokHeader:       (*parser).header,
		tokSection:      (*parser).section,
		tokBlank:        (*parser).skip,
		tokEndCode:      (*parser).stray,
		tokEndList:      (*parser).stray,
		tokEndField:     (*parser).stray,
	}
	inField := map[tokenKind]handler{
		tokEndField: (*parser).endField,
		tokText:     (*parser).fieldEntry,
		tokBold:     (*parser).fieldEntry,
		tokBlank:    (*parser).skip,
	}

	transitions = map[mode]map[tokenKind]handler{
		modeNormal:   structural,
		modeQuestion: inQuestion,
		modeList: {
			tokItem:    (*parser).item,
			tokEndList: (*parser).endList,
			tokText:    (*parser).continueItem,
			tokBold:    (*parser).continueItem,
			tokBlank:   (*parser).skip,
		},
		modeSamples:   inField,
		modeFeedback:  inField,
		modeFollowups: inField,
		modeCode: {
			tokEndCode: (*parser).endCode,
		},
	}
	fallbacks = map[mode]handler{
		modeNormal:    (*parser).text,
		modeQuestion:  (*parser).promptText,
		modeList:      (*parser).implicitEndList,
		modeSamples:   (*parser).implicitEndField,
		modeFeedback:  (*parser).implicitEndField,
		modeFollowups: (*parser).implicitEndField,
		modeCode:      (*parser).codeLine,
	}
}

// Parser converts activity markup into blocks. Malformed markup never fails
// the parse; it is reported as warnings on the logger and recovered from.
type Parser struct {
	log core.Logger
}

// NewParser returns a Parser. log may be nil to discard warnings.
func NewParser(log core.Logger) *Parser {
	return &Parser{log: log}
}

// Parse parses lines in a single forward pass.
func (ps *Parser) Parse(lines []string) []Block {
	p := &parser{log: ps.log, blocks: make([]Block, 0)}
	for i, line := range lines {
		p.lineNo = i + 1
		p.dispatch(classify(line))
	}
	p.finish()
	return p.blocks
}

// ParseText splits text into lines and parses them.
func (ps *Parser) ParseText(text string) []Block {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return ps.Parse(strings.Split(text, "\n"))
}

// Parse parses lines without reporting warnings.
func Parse(lines []string) []Block {
	return NewParser(nil).Parse(lines)
}

type parser struct {
	log    core.Logger
	lineNo int
	blocks []Block

	mode   mode
	resume mode // mode to return to after a list or code block

	group      int
	letter     int // next question letter index within the group
	responseID int

	pending  []string // text lines waiting to be flushed
	list     *List
	question *Question
	code     *Code
	codeBuf  []string
	note     *Note
}

func (p *parser) dispatch(t token) {
	if p.mode == modeNormal && t.kind != tokText && t.kind != tokBlank {
		p.flushText()
	}
	if h, ok := transitions[p.mode][t.kind]; ok {
		h(p, t)
		return
	}
	fallbacks[p.mode](p, t)
}

func (p *parser) warn(format string, args ...interface{}) {
	if p.log == nil {
		return
	}
	p.log.Warn("sheet.Parse", map[string]interface{}{
		"line":    p.lineNo,
		"mode":    p.mode.String(),
		"warning": fmt.Sprintf(format, args...),
	})
}

func (p *parser) emit(b Block) { p.blocks = append(p.blocks, b) }

func (p *parser) skip(token) {}

// normal mode

func (p *parser) text(t token) {
	p.pending = append(p.pending, Format(t.text()))
}

func (p *parser) flushText() {
	if len(p.pending) == 0 {
		return
	}
	p.emit(Text{Content: strings.TrimSpace(strings.Join(p.pending, " "))})
	p.pending = nil
}

func (p *parser) bold(t token) {
	p.emit(Text{Content: "<strong>" + Format(t.arg) + "</strong>"})
}

func (p *parser) header(t token) {
	p.emit(Header{Tag: HeaderTag(t.arg), Content: Format(t.arg2)})
}

func (p *parser) section(t token) {
	p.emit(Section{Name: Format(t.arg), Content: []Block{}})
}

func (p *parser) openGroup(t token) {
	p.group++
	p.letter = 0
	p.emit(GroupIntro{GroupID: p.group, Content: Format(t.arg)})
}

func (p *parser) endGroup(token) {
	p.emit(EndGroup{})
}

func (p *parser) strayEndQuestion(token) {
	p.warn(`\endquestion without an open \question`)
}

func (p *parser) stray(t token) {
	p.warn(`%s without a matching opening line`, t.text())
}

func (p *parser) strayTextResponse(token) {
	p.warn(`\textresponse outside of a question`)
}

// lists

func (p *parser) beginList(t token) {
	lt := Unordered
	if t.arg == "enumerate" {
		lt = Ordered
	}
	p.list = &List{ListType: lt, Items: []string{}}
	p.resume = p.mode
	p.mode = modeList
}

func (p *parser) item(t token) {
	p.list.Items = append(p.list.Items, Format(strings.TrimSpace(t.arg)))
}

// continueItem appends a wrapped line to the last item.
func (p *parser) continueItem(t token) {
	if len(p.list.Items) == 0 {
		p.list.Items = append(p.list.Items, Format(t.text()))
		return
	}
	last := len(p.list.Items) - 1
	p.list.Items[last] += " " + Format(t.text())
}

func (p *parser) endList(token) {
	p.emit(*p.list)
	p.list = nil
	p.mode = p.resume
}

func (p *parser) implicitEndList(t token) {
	p.warn(`list not closed before %s`, t.text())
	p.endList(t)
	p.dispatch(t)
}

// questions

func (p *parser) openQuestion(t token) {
	id := ColumnID(p.letter)
	p.letter++
	p.responseID++
	p.question = &Question{
		ID:            id,
		GroupID:       p.group,
		Label:         id + ".",
		ResponseID:    p.responseID,
		Prompt:        Format(t.arg),
		ResponseLines: 1,
		Samples:       []string{},
		Feedback:      []string{},
		Followups:     []string{},
	}
	p.mode = modeQuestion
}

func (p *parser) promptText(t token) {
	if p.question.Prompt == "" {
		p.question.Prompt = Format(t.text())
		return
	}
	p.question.Prompt += " " + Format(t.text())
}

func (p *parser) textResponse(t token) {
	n, err := strconv.Atoi(strings.TrimSpace(t.arg))
	if err != nil || n < 1 {
		p.warn(`invalid \textresponse{%s}, keeping 1 line`, t.arg)
		return
	}
	p.question.ResponseLines = n
}

func (p *parser) endQuestion(token) {
	p.emit(*p.question)
	p.question = nil
	p.mode = modeNormal
}

// abandonQuestion drops an unterminated question and replays the line in normal mode.
func (p *parser) abandonQuestion(t token) {
	p.warn(`question %s dropped: not closed by \endquestion`, p.question.ResponseKey())
	p.question = nil
	p.mode = modeNormal
	p.dispatch(t)
}

// question sub-fields

func fieldMode(name string) mode {
	switch Kind(name) {
	case KindFeedback:
		return modeFeedback
	case KindFollowups:
		return modeFollowups
	}
	return modeSamples
}

func (p *parser) fieldSlice() *[]string {
	if p.note != nil {
		return &p.note.Items
	}
	switch p.mode {
	case modeFeedback:
		return &p.question.Feedback
	case modeFollowups:
		return &p.question.Followups
	}
	return &p.question.Samples
}

func (p *parser) inlineField(t token) {
	prev := p.mode
	p.mode = fieldMode(t.arg)
	dst := p.fieldSlice()
	*dst = append(*dst, Format(t.arg2))
	p.mode = prev
}

func (p *parser) beginField(t token) {
	p.resume = p.mode
	p.mode = fieldMode(t.arg)
}

func (p *parser) fieldEntry(t token) {
	dst := p.fieldSlice()
	*dst = append(*dst, Format(t.text()))
}

func (p *parser) endField(token) {
	if p.note != nil {
		p.emit(*p.note)
		p.note = nil
	}
	p.mode = p.resume
}

func (p *parser) implicitEndField(t token) {
	p.warn(`%s not closed before %s`, p.mode.String(), t.text())
	p.endField(t)
	p.dispatch(t)
}

// standalone notes

func (p *parser) inlineNote(t token) {
	p.emit(Note{Field: Kind(t.arg), Items: []string{Format(t.arg2)}})
}

func (p *parser) beginNote(t token) {
	p.note = &Note{Field: Kind(t.arg), Items: []string{}}
	p.resume = modeNormal
	p.mode = fieldMode(t.arg)
}

// code

func (p *parser) beginCode(t token) {
	p.code = &Code{Language: Language(t.arg)}
	p.codeBuf = nil
	p.resume = p.mode
	p.mode = modeCode
}

func (p *parser) codeLine(t token) {
	p.codeBuf = append(p.codeBuf, t.line)
}

func (p *parser) endCode(t token) {
	if Language(t.arg) != p.code.Language {
		p.codeLine(t)
		return
	}
	p.closeCode()
}

func (p *parser) closeCode() {
	p.code.Content = strings.Join(p.codeBuf, "\n")
	if p.resume == modeQuestion && p.question != nil {
		p.question.CodeBlocks = append(p.question.CodeBlocks, *p.code)
	} else {
		p.emit(*p.code)
	}
	p.code, p.codeBuf = nil, nil
	p.mode = p.resume
}

// finish closes whatever is still open at end of input.
func (p *parser) finish() {
	p.lineNo++
	for {
		switch p.mode {
		case modeCode:
			p.warn(`code block not closed at end of input`)
			p.closeCode()
			continue
		case modeList:
			p.warn(`list not closed at end of input`)
			p.endList(token{})
			continue
		case modeSamples, modeFeedback, modeFollowups:
			p.endField(token{})
			continue
		case modeQuestion:
			p.warn(`question %s dropped: not closed by \endquestion`, p.question.ResponseKey())
			p.question = nil
			p.mode = modeNormal
			continue
		}
		break
	}
	p.flushText()
}
