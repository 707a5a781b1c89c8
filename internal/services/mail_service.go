package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
)

// Attachment is a file embedded inline in an email. HTML refers to it as cid:<Filename>.
type Attachment struct {
	Filename string
	Path     string
}

// Email is a rendered transactional message.
type Email struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Mailer delivers transactional emails.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SMTPConfig holds outgoing mail settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	PublicDir string
}

// SMTPMailer sends mail through an authenticated SMTP relay.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates a new SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send renders the message and delivers it over SMTP with STARTTLS.
func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.Username); err != nil {
		return fmt.Errorf("%w: invalid sender: %v", ErrUpstream, err)
	}
	if err := msg.To(email.To); err != nil {
		return fmt.Errorf("%w: invalid recipient %q: %v", ErrUpstream, email.To, err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextHTML, email.HTML)

	for _, att := range email.Attachments {
		path := att.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.cfg.PublicDir, path)
		}
		if _, err := os.Stat(path); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("[Mail] attachment missing, sending without it")
			continue
		}
		msg.EmbedFile(path, mail.WithFileName(att.Filename))
	}

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("%w: smtp client: %v", ErrUpstream, err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: smtp send: %v", ErrUpstream, err)
	}
	return nil
}

// LogMailer is used when SMTP is not configured. It only logs.
type LogMailer struct{}

// Send logs the message envelope and reports success.
func (LogMailer) Send(_ context.Context, email Email) error {
	log.Info().
		Str("to", email.To).
		Str("subject", email.Subject).
		Msg("[Mail] SMTP not configured, email not sent")
	return nil
}
