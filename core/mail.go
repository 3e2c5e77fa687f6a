package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/pogil/fs"
)

const emailTemplatesDir = "templates/email"

var (
	mailTmpls     map[string]*mailTemplate
	mailTmplsErr  error
	mailTmplsOnce sync.Once
)

type (
	// mailTemplate is the pair of bodies rendered for one template name;
	// either may be missing.
	mailTemplate struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // plain text body, used instead of a template
		Attachments []Attachment

		// TemplateName names a pair of files under templates/email, without ext.
		TemplateName string
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// templateContext is the dot of every email template.
	templateContext struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent and HTMLContent from BodyStr or the message template.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	mailTmplsOnce.Do(func() { mailTmpls, mailTmplsErr = loadMailTemplates(appfs.FS) })
	if mailTmplsErr != nil {
		return mailTmplsErr
	}
	tmpl, ok := mailTmpls[m.TemplateName]
	if !ok {
		return errors.Errorf("unknown email template %q", m.TemplateName)
	}

	ctx := templateContext{AppName: Conf.AppName, FrontendBaseURL: Conf.FrontendBaseURL, Data: m.TemplateData}
	var buf bytes.Buffer
	if tmpl.text != nil && m.BodyStr == "" {
		if err := tmpl.text.Execute(&buf, ctx); err != nil {
			return errors.Wrap(err, "executing text template")
		}
		m.TextContent = buf.String()
		buf.Reset()
	}
	if tmpl.html != nil {
		if err := tmpl.html.Execute(&buf, ctx); err != nil {
			return errors.Wrap(err, "executing html template")
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

// Attach base64 encodes the content of r as an attachment. The content type
// is sniffed when ct is not given.
func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading attachment")
	}

	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}
	at.Content.WriteString(base64.StdEncoding.EncodeToString(content))
	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// loadMailTemplates parses every "name.txt" and "name.gohtml" under the
// templates dir on top of its "_base" layout. Files starting with "_" are layouts.
func loadMailTemplates(fsys fs.FS) (map[string]*mailTemplate, error) {
	names, err := fs.Glob(fsys, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		return nil, errors.Wrap(err, "listing email templates")
	}

	strict := Conf.Debug || Conf.TestMode
	tmpls := make(map[string]*mailTemplate)
	for _, name := range names {
		file := path.Base(name)
		ext := path.Ext(file)
		if strings.HasPrefix(file, "_") {
			continue
		}
		key := strings.TrimSuffix(file, ext)
		tmpl, ok := tmpls[key]
		if !ok {
			tmpl = new(mailTemplate)
		}

		switch ext {
		case ".txt":
			t, err := texttmpl.ParseFS(fsys, path.Join(emailTemplatesDir, "_base.txt"), name)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", file)
			}
			if strict {
				t = t.Option("missingkey=error")
			}
			tmpl.text = t
		case ".gohtml":
			t, err := htmltmpl.ParseFS(fsys, path.Join(emailTemplatesDir, "_base.gohtml"), name)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", file)
			}
			if strict {
				t = t.Option("missingkey=error")
			}
			tmpl.html = t
		default:
			continue
		}
		tmpls[key] = tmpl
	}
	return tmpls, nil
}
