package responses

import (
	"errors"
	"net/mail"
	"sort"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/net/html"

	"github.com/trezcool/pogil/core"
	"github.com/trezcool/pogil/core/sheet"
)

var (
	// errors
	ErrNotFound      = errors.New("response not found")
	ErrGroupComplete = errors.New("this group has already completed this section")
	ErrNotCodeKey    = errors.New("not a code response key")
)

type (
	Repository interface {
		QueryInstanceResponses(instanceID int) ([]Response, error)
		GetResponse(instanceID int, key string) (Response, error)
		// UpsertResponses inserts responses or replaces the values stored under the same (instance, key).
		UpsertResponses(rs ...Response) error
	}

	// Broadcaster mirrors transient code edits to the other viewers of an instance.
	Broadcaster interface {
		Broadcast(change CodeChange)
	}

	Service struct {
		repo    Repository
		mail    core.EmailService
		live    Broadcaster
		log     core.Logger
		nowFunc func() time.Time
	}
)

func NewService(repo Repository, mailSvc core.EmailService, live Broadcaster, log core.Logger) *Service {
	return &Service{repo: repo, mail: mailSvc, live: live, log: log, nowFunc: time.Now}
}

// Prefill returns every saved answer of an instance keyed by response key.
func (svc *Service) Prefill(instanceID int) (Prefill, error) {
	rs, err := svc.repo.QueryInstanceResponses(instanceID)
	if err != nil {
		return nil, err
	}
	pf := make(Prefill, len(rs))
	for _, r := range rs {
		pf[r.Key] = r.Record()
	}
	return pf, nil
}

// CollectRecords is Collect with each value typed by its element's response kind.
func CollectRecords(root *html.Node) (map[string]AnswerRecord, error) {
	values, err := Collect(root)
	if err != nil {
		return nil, err
	}
	out := make(map[string]AnswerRecord, len(values))
	for _, el := range Elements(root) {
		key := Attr(el, KeyAttr)
		typ := Attr(el, KindAttr)
		if typ == "" {
			typ = TypeText
		}
		out[key] = AnswerRecord{Response: values[key], Type: typ}
	}
	return out, nil
}

// Submit harvests the answers of a rendered group and saves them.
// A group can only be submitted once: its state key is then set to "complete".
func (svc *Service) Submit(sub Submission) (map[string]AnswerRecord, error) {
	var stateKey string
	if sub.GroupID > 0 {
		stateKey = sheet.GroupStateKey(sub.GroupID)
		state, err := svc.repo.GetResponse(sub.InstanceID, stateKey)
		switch {
		case err == nil && state.Value == sheet.StatusComplete:
			return nil, ErrGroupComplete
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}

	doc, err := html.Parse(strings.NewReader(sub.HTML))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "parsing submitted html")
	}
	records, err := CollectRecords(doc)
	if err != nil {
		if svc.log != nil {
			svc.log.Error("responses.Submit", err, map[string]interface{}{"instance": sub.InstanceID, "group": sub.GroupID})
		}
		return nil, err
	}

	now := svc.nowFunc().UTC()
	rs := make([]Response, 0, len(records)+1)
	for key, rec := range records {
		rs = append(rs, svc.newResponse(sub.InstanceID, sub.GroupID, sub.UserID, key, rec, now))
	}
	if stateKey != "" {
		rec := AnswerRecord{Response: sheet.StatusComplete, Type: TypeStatus}
		rs = append(rs, svc.newResponse(sub.InstanceID, sub.GroupID, sub.UserID, stateKey, rec, now))
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Key < rs[j].Key })
	if err := svc.repo.UpsertResponses(rs...); err != nil {
		return nil, err
	}

	svc.sendReceipt(sub, records)
	return records, nil
}

func (svc *Service) newResponse(instanceID, groupID, userID int, key string, rec AnswerRecord, now time.Time) Response {
	r := Response{
		InstanceID: instanceID,
		Key:        key,
		Type:       rec.Type,
		Value:      rec.Response,
		UpdatedAt:  now,
	}
	if groupID > 0 {
		r.GroupID = null.IntFrom(groupID)
	}
	if userID > 0 {
		r.AnsweredBy = null.IntFrom(userID)
	}
	return r
}

// SaveCode applies a code cell update. Broadcast-only updates are mirrored to
// the other viewers and never stored; durable ones are stored then mirrored.
func (svc *Service) SaveCode(ch CodeChange) error {
	if err := core.Validate.Struct(ch); err != nil {
		return err
	}
	if ch.BroadcastOnly {
		svc.broadcast(ch)
		return nil
	}

	typ := ch.Language
	if typ == "" {
		typ = TypePython
	}
	if _, ok := sheet.OutputKey(ch.Key); !ok {
		return core.NewValidationError(
			ErrNotCodeKey, core.FieldError{Field: "response_key", Error: ErrNotCodeKey.Error()},
		)
	}
	r := svc.newResponse(ch.InstanceID, 0, ch.UserID, ch.Key, AnswerRecord{Response: ch.Value, Type: typ}, svc.nowFunc().UTC())
	if err := svc.repo.UpsertResponses(r); err != nil {
		return err
	}
	svc.broadcast(ch)
	return nil
}

func (svc *Service) broadcast(ch CodeChange) {
	if svc.live != nil {
		svc.live.Broadcast(ch)
	}
}

type receiptData struct {
	InstanceID int
	GroupID    int
	Answered   int
	Keys       []string
}

func (svc *Service) sendReceipt(sub Submission, records map[string]AnswerRecord) {
	if svc.mail == nil || len(sub.ReceiptTo) == 0 {
		return
	}
	data := receiptData{InstanceID: sub.InstanceID, GroupID: sub.GroupID}
	for key, rec := range records {
		data.Keys = append(data.Keys, key)
		if strings.TrimSpace(rec.Response) != "" {
			data.Answered++
		}
	}
	sort.Strings(data.Keys)

	msg := &core.EmailMessage{
		To:           append([]mail.Address(nil), sub.ReceiptTo...),
		Subject:      "Your answers were submitted",
		TemplateName: "submission_receipt",
		TemplateData: data,
	}
	svc.mail.SendMessages(msg)
}
