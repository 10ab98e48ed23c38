package mail

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

type captureQueue struct {
	msgs []domain.EmailMessage
	err  error
}

func (q *captureQueue) Enqueue(msg domain.EmailMessage) error {
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func newTestNotifier(q Enqueuer) *Notifier {
	return NewNotifier(q, "http://localhost:5173", map[domain.AppSource]string{
		domain.AppTickly: "https://www.tickly.com/",
	}, time.Hour)
}

func TestNotifier_ResetURL(t *testing.T) {
	n := newTestNotifier(&captureQueue{})

	assert.Equal(t, "https://www.tickly.com/#/auth/reset-password?token=abc", n.ResetURL(domain.AppTickly, "abc"))
	assert.Equal(t, "http://localhost:5173/#/auth/reset-password?token=abc", n.ResetURL(domain.AppNgTax, "abc"),
		"apps without a url fall back")
}

func TestNotifier_PasswordReset(t *testing.T) {
	q := &captureQueue{}
	n := newTestNotifier(q)

	require.NoError(t, n.PasswordReset(context.Background(), "a@x.com", "tok123", domain.AppTickly))
	require.Len(t, q.msgs, 1)
	msg := q.msgs[0]
	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, "Reset Your Password", msg.Subject)
	assert.Contains(t, msg.HTMLBody, `href="https://www.tickly.com/#/auth/reset-password?token=tok123"`)
	assert.Contains(t, msg.TextBody, "https://www.tickly.com/#/auth/reset-password?token=tok123")
	assert.Contains(t, msg.TextBody, "expire in 1 hour")
}

func TestNotifier_OTP(t *testing.T) {
	q := &captureQueue{}
	n := newTestNotifier(q)

	require.NoError(t, n.OTP(context.Background(), "a@x.com", "042917", domain.OTPPasswordReset, 10*time.Minute))
	require.Len(t, q.msgs, 1)
	assert.Contains(t, q.msgs[0].HTMLBody, "042917")
	assert.Contains(t, q.msgs[0].TextBody, "Confirm your password reset")
	assert.Contains(t, q.msgs[0].TextBody, "10 minutes")
}

func TestNotifier_QueueError(t *testing.T) {
	n := newTestNotifier(&captureQueue{err: errors.New("full")})
	assert.Error(t, n.OTP(context.Background(), "a@x.com", "1", domain.OTPEmailVerification, time.Minute))
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "2 hours", humanDuration(2*time.Hour))
	assert.Equal(t, "90 minutes", humanDuration(90*time.Minute))
	assert.Equal(t, "30 seconds", humanDuration(30*time.Second))
}

type fakeSender struct {
	got   []*gomail.Message
	err   error
	delay time.Duration
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	time.Sleep(f.delay)
	f.got = append(f.got, m...)
	return f.err
}

func TestSMTPMailer_Send(t *testing.T) {
	fs := &fakeSender{}
	m := NewSMTPMailer(Config{Host: "smtp.example.com", Port: 587, User: "noreply@example.com"})
	m.dialer = fs

	err := m.Send(context.Background(), domain.EmailMessage{To: "a@x.com", Subject: "Hi", TextBody: "plain", HTMLBody: "<p>rich</p>"})
	require.NoError(t, err)
	require.Len(t, fs.got, 1)
	assert.Equal(t, []string{"noreply@example.com"}, fs.got[0].GetHeader("From"), "from defaults to user")

	var sb strings.Builder
	_, err = fs.got[0].WriteTo(&sb)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "text/html")
	assert.Contains(t, sb.String(), "plain")
}

func TestSMTPMailer_Errors(t *testing.T) {
	m := NewSMTPMailer(Config{From: "x@example.com"})

	assert.Error(t, m.Send(context.Background(), domain.EmailMessage{}))

	m.dialer = &fakeSender{err: errors.New("535 auth failed")}
	assert.ErrorContains(t, m.Send(context.Background(), domain.EmailMessage{To: "a@x.com"}), "535")

	m.dialer = &fakeSender{delay: 200 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Send(ctx, domain.EmailMessage{To: "a@x.com"}), context.DeadlineExceeded)
}
