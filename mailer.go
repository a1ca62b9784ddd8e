package booknetwork

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

// SMTPMailer delivers activation mail over plain SMTP, rendering the body
// from a django template in the templates directory.
type SMTPMailer struct {
	addr   string
	from   string
	auth   smtp.Auth
	engine *django.Engine
	logger Logger
}

// NewSMTPMailer builds a mailer against the given SMTP endpoint. templatesDir
// holds the .django email bodies.
func NewSMTPMailer(addr, from, templatesDir string) (*SMTPMailer, error) {
	engine := django.New(templatesDir, ".django")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load mail templates")
	}

	return &SMTPMailer{
		addr:   addr,
		from:   from,
		engine: engine,
		logger: defLogger{},
	}, nil
}

func (m *SMTPMailer) WithAuth(auth smtp.Auth) *SMTPMailer {
	m.auth = auth
	return m
}

func (m *SMTPMailer) WithLogger(l Logger) *SMTPMailer {
	if l != nil {
		m.logger = l
	}
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, msg MailMessage) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled before mail dispatch")
	}

	var body bytes.Buffer
	err := m.engine.Render(&body, msg.Template, map[string]any{
		"username":        msg.ToName,
		"confirmationUrl": msg.ActivationURL,
		"activation_code": msg.ActivationCode,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail template").
			WithMetadata(map[string]any{"template": msg.Template})
	}

	payload := m.envelope(msg, body.String())
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{msg.To}, payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "smtp delivery failed").
			WithMetadata(map[string]any{"to": msg.To})
	}

	m.logger.Debug("mail sent to=%s subject=%q", msg.To, msg.Subject)
	return nil
}

func (m *SMTPMailer) envelope(msg MailMessage, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

var _ Mailer = (*SMTPMailer)(nil)

// LogMailer writes mail to the log instead of the wire. Useful in development
// and as the default when no SMTP endpoint is configured.
type LogMailer struct {
	logger Logger
}

func NewLogMailer(logger Logger) *LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg MailMessage) error {
	m.logger.Info("mail to=%s subject=%q code=%s url=%s", msg.To, msg.Subject, msg.ActivationCode, msg.ActivationURL)
	return nil
}

var _ Mailer = (*LogMailer)(nil)
