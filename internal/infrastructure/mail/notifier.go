package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

// Enqueuer accepts a message for asynchronous delivery.
type Enqueuer interface {
	Enqueue(msg domain.EmailMessage) error
}

// Notifier renders account emails and queues them. It implements
// ports.Notifier.
type Notifier struct {
	queue       Enqueuer
	frontendURL string
	appURLs     map[domain.AppSource]string
	resetTTL    time.Duration
}

// NewNotifier builds a Notifier. Apps missing from appURLs link to
// frontendURL.
func NewNotifier(queue Enqueuer, frontendURL string, appURLs map[domain.AppSource]string, resetTTL time.Duration) *Notifier {
	return &Notifier{
		queue:       queue,
		frontendURL: frontendURL,
		appURLs:     appURLs,
		resetTTL:    resetTTL,
	}
}

type resetData struct {
	URL    string
	Expiry string
}

type otpData struct {
	Code    string
	Purpose string
	Expiry  string
}

func (n *Notifier) PasswordReset(_ context.Context, email, resetToken string, app domain.AppSource) error {
	data := resetData{
		URL:    n.ResetURL(app, resetToken),
		Expiry: humanDuration(n.resetTTL),
	}
	msg, err := render(email, "Reset Your Password", resetHTML, resetText, data)
	if err != nil {
		return err
	}
	return n.queue.Enqueue(msg)
}

func (n *Notifier) OTP(_ context.Context, email, code string, purpose domain.OTPPurpose, ttl time.Duration) error {
	label := "Verify your email"
	if purpose == domain.OTPPasswordReset {
		label = "Confirm your password reset"
	}
	data := otpData{Code: code, Purpose: label, Expiry: humanDuration(ttl)}
	msg, err := render(email, "Your verification code", otpHTML, otpText, data)
	if err != nil {
		return err
	}
	return n.queue.Enqueue(msg)
}

// ResetURL is the front-end page of app that accepts token.
func (n *Notifier) ResetURL(app domain.AppSource, token string) string {
	base, ok := n.appURLs[app]
	if !ok || base == "" {
		base = n.frontendURL
	}
	return strings.TrimRight(base, "/") + "/#/auth/reset-password?token=" + url.QueryEscape(token)
}

func render(to, subject string, html *htmltemplate.Template, text *texttemplate.Template, data any) (domain.EmailMessage, error) {
	var hb, tb bytes.Buffer
	if err := html.Execute(&hb, data); err != nil {
		return domain.EmailMessage{}, fmt.Errorf("render %s html: %w", html.Name(), err)
	}
	if err := text.Execute(&tb, data); err != nil {
		return domain.EmailMessage{}, fmt.Errorf("render %s text: %w", text.Name(), err)
	}
	return domain.EmailMessage{To: to, Subject: subject, HTMLBody: hb.String(), TextBody: tb.String()}, nil
}

func humanDuration(d time.Duration) string {
	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}
