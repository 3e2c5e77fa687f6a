package emailsvc

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/pogil/core"
)

// ConsoleService prints receipts as MIME messages instead of sending them.
// Delivered messages are kept in an outbox for inspection.
type ConsoleService struct {
	from       mail.Address
	subjPrefix string
	out        io.Writer // nil disables printing
	log        core.Logger
	sync       bool

	mu     sync.Mutex
	outbox []core.EmailMessage
}

var _ core.EmailService = (*ConsoleService)(nil)

func NewConsoleService(out io.Writer, log core.Logger) *ConsoleService {
	return &ConsoleService{
		from:       core.Conf.DefaultFromEmail(),
		subjPrefix: "[" + core.Conf.AppName + "] ",
		out:        out,
		log:        log,
	}
}

// NewConsoleServiceMock delivers synchronously and prints nothing.
func NewConsoleServiceMock() *ConsoleService {
	svc := NewConsoleService(nil, nil)
	svc.sync = true
	return svc
}

func (svc *ConsoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.sync {
			svc.deliver(msg)
			continue
		}
		go svc.deliver(msg)
	}
}

// Outbox returns a copy of the delivered messages.
func (svc *ConsoleService) Outbox() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.outbox...)
}

func (svc *ConsoleService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		svc.logError("emailsvc.Console: rendering", err)
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}
	if svc.out != nil {
		body, err := svc.format(*msg, time.Now())
		if err != nil {
			svc.logError("emailsvc.Console: formatting", err)
			return
		}
		_, _ = io.WriteString(svc.out, body)
	}
	svc.mu.Lock()
	svc.outbox = append(svc.outbox, *msg)
	svc.mu.Unlock()
}

func (svc *ConsoleService) logError(msg string, err error) {
	if svc.log != nil {
		svc.log.Error(msg, err)
	}
}

func (svc *ConsoleService) format(msg core.EmailMessage, date time.Time) (string, error) {
	body := new(strings.Builder)
	header := [][2]string{
		{"From", svc.from.String()},
		{"MIME-Version", "1.0"},
		{"Date", date.Format(time.RFC1123Z)},
		{"Subject", svc.subjPrefix + msg.Subject},
		{"To", joinAddresses(msg.To)},
	}
	if len(msg.Cc) > 0 {
		header = append(header, [2]string{"Cc", joinAddresses(msg.Cc)})
	}
	if len(msg.Bcc) > 0 {
		header = append(header, [2]string{"Bcc", joinAddresses(msg.Bcc)})
	}
	for _, h := range header {
		_, _ = fmt.Fprintf(body, "%s: %s\r\n", h[0], h[1])
	}

	alt := multipart.NewWriter(body)
	var mixed *multipart.Writer
	if msg.HasAttachments() {
		mixed = multipart.NewWriter(body)
		_, _ = fmt.Fprintf(body, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mixed.Boundary())
		if _, err := mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type": {"multipart/alternative; boundary=" + alt.Boundary()},
		}); err != nil {
			return "", errors.Wrap(err, "creating multipart/alternative part")
		}
	} else {
		_, _ = fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", alt.Boundary())
	}

	parts := [][2]string{{"text/plain; charset=utf-8", msg.TextContent}}
	if msg.HTMLContent != "" {
		parts = append(parts, [2]string{"text/html; charset=utf-8", msg.HTMLContent})
	}
	for _, p := range parts {
		w, err := alt.CreatePart(textproto.MIMEHeader{"Content-Type": {p[0]}})
		if err != nil {
			return "", errors.Wrapf(err, "creating %s part", p[0])
		}
		_, _ = fmt.Fprintf(w, "%s\r\n", p[1])
	}
	if err := alt.Close(); err != nil {
		return "", errors.Wrap(err, "closing multipart/alternative")
	}

	if mixed != nil {
		for _, at := range msg.Attachments {
			w, err := mixed.CreatePart(textproto.MIMEHeader{
				"Content-Type":              {at.ContentType},
				"Content-Transfer-Encoding": {"base64"},
				"Content-Disposition":       {"attachment; filename=" + at.Filename},
			})
			if err != nil {
				return "", errors.Wrapf(err, "creating %s part", at.ContentType)
			}
			_, _ = fmt.Fprintf(w, "%s\r\n", at.Content.String())
		}
		if err := mixed.Close(); err != nil {
			return "", errors.Wrap(err, "closing multipart/mixed")
		}
	}
	return body.String(), nil
}

func joinAddresses(addrs []mail.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}
