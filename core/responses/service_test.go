package responses

import (
	"errors"
	"net/mail"
	"reflect"
	"testing"
	"time"

	"github.com/trezcool/pogil/core"
)

type fakeRepo struct {
	rows map[int]map[string]Response
}

func newFakeRepo() *fakeRepo { return &fakeRepo{rows: make(map[int]map[string]Response)} }

func (r *fakeRepo) QueryInstanceResponses(instanceID int) ([]Response, error) {
	var out []Response
	for _, row := range r.rows[instanceID] {
		out = append(out, row)
	}
	return out, nil
}

func (r *fakeRepo) GetResponse(instanceID int, key string) (Response, error) {
	row, ok := r.rows[instanceID][key]
	if !ok {
		return Response{}, ErrNotFound
	}
	return row, nil
}

func (r *fakeRepo) UpsertResponses(rs ...Response) error {
	for _, row := range rs {
		if r.rows[row.InstanceID] == nil {
			r.rows[row.InstanceID] = make(map[string]Response)
		}
		r.rows[row.InstanceID][row.Key] = row
	}
	return nil
}

type fakeMail struct{ sent []*core.EmailMessage }

func (m *fakeMail) SendMessages(msgs ...*core.EmailMessage) { m.sent = append(m.sent, msgs...) }

type fakeLive struct{ changes []CodeChange }

func (l *fakeLive) Broadcast(ch CodeChange) { l.changes = append(l.changes, ch) }

func newTestService() (*Service, *fakeRepo, *fakeMail, *fakeLive) {
	repo, ml, live := newFakeRepo(), new(fakeMail), new(fakeLive)
	svc := NewService(repo, ml, live, nil)
	svc.nowFunc = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc, repo, ml, live
}

func TestService_Submit(t *testing.T) {
	svc, repo, ml, _ := newTestService()
	page := `<div>
		<textarea data-response-key="1a">two</textarea>
		<textarea data-response-key="1acode1" data-response-kind="python">print(2)</textarea>
		<textarea data-response-key="1aoutput1" data-response-kind="output">2</textarea>
	</div>`
	sub := Submission{
		InstanceID: 7,
		GroupID:    1,
		UserID:     3,
		HTML:       page,
		ReceiptTo:  []mail.Address{{Address: "s@test.test"}},
	}

	got, err := svc.Submit(sub)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Submit() returned %d records, want 3", len(got))
	}

	pf, err := svc.Prefill(7)
	if err != nil {
		t.Fatalf("Prefill() error = %v", err)
	}
	want := Prefill{
		"1a":        {Response: "two", Type: TypeText},
		"1acode1":   {Response: "print(2)", Type: TypePython},
		"1aoutput1": {Response: "2", Type: TypeOutput},
		"1state":    {Response: "complete", Type: TypeStatus},
	}
	if !reflect.DeepEqual(pf, want) {
		t.Errorf("Prefill() = %v, want %v", pf, want)
	}
	if row := repo.rows[7]["1a"]; row.AnsweredBy.Int != 3 || row.GroupID.Int != 1 {
		t.Errorf("stored row = %+v, want answered by 3 in group 1", row)
	}

	if len(ml.sent) != 1 || ml.sent[0].TemplateName != "submission_receipt" {
		t.Errorf("sent = %+v, want one submission receipt", ml.sent)
	}
	data := ml.sent[0].TemplateData.(receiptData)
	if data.Answered != 3 || !reflect.DeepEqual(data.Keys, []string{"1a", "1acode1", "1aoutput1"}) {
		t.Errorf("receipt data = %+v", data)
	}

	if _, err := svc.Submit(sub); err != ErrGroupComplete {
		t.Errorf("second Submit() error = %v, want %v", err, ErrGroupComplete)
	}
}

func TestService_Submit_duplicateKeys(t *testing.T) {
	svc, repo, ml, _ := newTestService()
	_, err := svc.Submit(Submission{
		InstanceID: 1,
		HTML:       `<textarea data-response-key="1a"></textarea><textarea data-response-key="1a"></textarea>`,
		ReceiptTo:  []mail.Address{{Address: "s@test.test"}},
	})
	var dupErr *DuplicateKeyError
	if !errors.As(err, &dupErr) {
		t.Fatalf("Submit() error = %v, want *DuplicateKeyError", err)
	}
	if len(repo.rows) != 0 || len(ml.sent) != 0 {
		t.Error("Submit() must not save nor send anything on duplicate keys")
	}
}

func TestService_SaveCode(t *testing.T) {
	tests := []struct {
		name      string
		change    CodeChange
		wantSaved bool
		wantLive  int
		wantErr   bool
	}{
		{
			name:     "broadcast only",
			change:   CodeChange{InstanceID: 1, Key: "1acode1", Value: "x", BroadcastOnly: true},
			wantLive: 1,
		},
		{
			name:      "durable save",
			change:    CodeChange{InstanceID: 1, UserID: 2, Key: "0code1", Value: "int x;", Language: "cpp"},
			wantSaved: true,
			wantLive:  1,
		},
		{
			name:    "not a code key",
			change:  CodeChange{InstanceID: 1, Key: "1a", Value: "x"},
			wantErr: true,
		},
		{
			name:    "invalid key",
			change:  CodeChange{InstanceID: 1, Key: "a1", Value: "x", BroadcastOnly: true},
			wantErr: true,
		},
		{
			name:    "unknown language",
			change:  CodeChange{InstanceID: 1, Key: "1acode1", Language: "rust"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, live := newTestService()
			err := svc.SaveCode(tt.change)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SaveCode() error = %v, wantErr %v", err, tt.wantErr)
			}
			_, saved := repo.rows[1][tt.change.Key]
			if saved != tt.wantSaved {
				t.Errorf("saved = %v, want %v", saved, tt.wantSaved)
			}
			if len(live.changes) != tt.wantLive {
				t.Errorf("broadcasts = %d, want %d", len(live.changes), tt.wantLive)
			}
		})
	}
}
