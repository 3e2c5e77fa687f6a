package emailsvc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/sendgrid/rest"

	"github.com/trezcool/pogil/core"
	logsvc "github.com/trezcool/pogil/services/logger"
)

func receipt() *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: "Ada", Address: "ada@example.com"}},
		Subject:      "Your answers were submitted",
		TemplateName: "submission_receipt",
		TemplateData: struct {
			InstanceID int
			GroupID    int
			Answered   int
			Keys       []string
		}{InstanceID: 7, GroupID: 2, Answered: 1, Keys: []string{"2a", "2b"}},
	}
}

func TestConsoleService(t *testing.T) {
	var out bytes.Buffer
	svc := NewConsoleService(&out, logsvc.Nop())
	svc.sync = true

	svc.SendMessages(receipt(), &core.EmailMessage{Subject: "no recipients", BodyStr: "ignored"})

	outbox := svc.Outbox()
	if len(outbox) != 1 {
		t.Fatalf("outbox holds %d messages, want 1", len(outbox))
	}
	if !strings.Contains(outbox[0].TextContent, "activity instance #7, group 2 were submitted") {
		t.Errorf("text content = %q", outbox[0].TextContent)
	}
	if !strings.Contains(outbox[0].HTMLContent, "<li>2b</li>") {
		t.Errorf("html content = %q", outbox[0].HTMLContent)
	}

	printed := out.String()
	for _, want := range []string{
		"Subject: [" + core.Conf.AppName + "] Your answers were submitted\r\n",
		"To: \"Ada\" <ada@example.com>\r\n",
		"Content-Type: multipart/alternative; boundary=",
		"Content-Type: text/html; charset=utf-8",
	} {
		if !strings.Contains(printed, want) {
			t.Errorf("printed message lacks %q:\n%s", want, printed)
		}
	}
	if strings.Contains(printed, "Cc:") {
		t.Errorf("empty Cc header printed:\n%s", printed)
	}
}

func TestConsoleService_attachment(t *testing.T) {
	msg := &core.EmailMessage{
		To:      []mail.Address{{Address: "ada@example.com"}},
		Subject: "export",
		BodyStr: "see attached",
	}
	if err := msg.Attach(strings.NewReader("1a,42\n"), "answers.csv", "text/csv"); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if err := msg.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	svc := NewConsoleServiceMock()
	got, err := svc.format(*msg, time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("format() error = %v", err)
	}
	for _, want := range []string{
		"Date: Sat, 02 Jan 2021 03:04:05 +0000\r\n",
		"Content-Type: multipart/mixed; boundary=",
		"Content-Disposition: attachment; filename=answers.csv",
		"MWEsNDIK", // base64 of the csv
		"see attached",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("message lacks %q:\n%s", want, got)
		}
	}
}

func TestSendgridService_send(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "accepted", status: http.StatusAccepted},
		{name: "rejected", status: http.StatusBadRequest, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent rest.Request
			svc := NewSendgridService(logsvc.Nop())
			svc.key = "SG.test"
			svc.api = func(req rest.Request) (*rest.Response, error) {
				sent = req
				return &rest.Response{StatusCode: tt.status, Body: `{"errors":[]}`}, nil
			}

			err := svc.send(receipt())
			if (err != nil) != tt.wantErr {
				t.Fatalf("send() error = %v, wantErr %v", err, tt.wantErr)
			}
			if sent.Method != http.MethodPost || sent.BaseURL != sendgridHost+sendgridEndpoint {
				t.Errorf("request = %s %s", sent.Method, sent.BaseURL)
			}
			if got := sent.Headers["Authorization"]; got != "Bearer SG.test" {
				t.Errorf("Authorization = %q", got)
			}

			var body struct {
				Personalizations []struct {
					To      []struct{ Email string } `json:"to"`
					Subject string                   `json:"subject"`
				} `json:"personalizations"`
				Content []struct{ Type string } `json:"content"`
			}
			if err := json.Unmarshal(sent.Body, &body); err != nil {
				t.Fatalf("request body: %v", err)
			}
			if len(body.Personalizations) != 1 || body.Personalizations[0].To[0].Email != "ada@example.com" {
				t.Errorf("personalizations = %+v", body.Personalizations)
			}
			if len(body.Content) != 2 {
				t.Errorf("content parts = %+v, want text and html", body.Content)
			}
		})
	}
}

func TestSendgridService_skipsEmpty(t *testing.T) {
	svc := NewSendgridService(logsvc.Nop())
	svc.api = func(rest.Request) (*rest.Response, error) {
		t.Error("message without recipients was sent")
		return nil, nil
	}
	if err := svc.send(&core.EmailMessage{BodyStr: "hi"}); err != nil {
		t.Errorf("send() error = %v", err)
	}
}
