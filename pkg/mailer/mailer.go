package mailer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
)

// Attachment is a file sent along with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a transactional email.
type Message struct {
	To          []string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendgridMailer sends mail through the SendGrid v3 API.
type SendgridMailer struct {
	client sendClient
	from   *mail.Email
}

// New returns a SendGrid-backed sender, or a logging sender when no API key is configured.
func New(cfg config.SendgridConfig, logg *logger.Logger) (Sender, error) {
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, errors.New("sender address is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &LogMailer{logg: logg}, nil
	}
	return &SendgridMailer{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
	}, nil
}

// Send delivers msg; a non-2xx answer from SendGrid is an error.
func (m *SendgridMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("message has no recipients")
	}
	email := build(m.from, msg)
	resp, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid responded %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func build(from *mail.Email, msg Message) *mail.SGMailV3 {
	email := mail.NewV3Mail()
	email.SetFrom(from)
	email.Subject = msg.Subject

	p := mail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(mail.NewEmail("", to))
	}
	email.AddPersonalizations(p)

	if msg.Text != "" {
		email.AddContent(mail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		email.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	for _, a := range msg.Attachments {
		att := mail.NewAttachment()
		att.SetFilename(a.Filename)
		att.SetType(a.ContentType)
		att.SetDisposition("attachment")
		att.SetContent(base64.StdEncoding.EncodeToString(a.Data))
		email.AddAttachment(att)
	}
	return email
}

// LogMailer records messages in the log instead of sending them.
type LogMailer struct {
	logg *logger.Logger
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if m.logg == nil {
		return nil
	}
	ctx = m.logg.WithFields(ctx, map[string]any{
		"to":          strings.Join(msg.To, ","),
		"subject":     msg.Subject,
		"attachments": len(msg.Attachments),
	})
	m.logg.Info(ctx, "email suppressed (no sendgrid api key)")
	return nil
}
