package mail

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

// Config holds the SMTP settings. From defaults to User.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer implements ports.Mailer over gomail. Port 465 uses implicit TLS,
// other ports upgrade with STARTTLS when the server offers it.
type SMTPMailer struct {
	from   string
	dialer sender
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPMailer{
		from:   from,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}
}

// Send delivers msg. gomail has no context support, so a cancelled ctx
// abandons the wait while the dial finishes in the background.
func (m *SMTPMailer) Send(ctx context.Context, msg domain.EmailMessage) error {
	if msg.To == "" {
		return errors.New("no recipient specified")
	}

	gm := m.message(msg)
	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(gm) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

func (m *SMTPMailer) message(msg domain.EmailMessage) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		gm.AddAlternative("text/html", msg.HTMLBody)
	}
	return gm
}
