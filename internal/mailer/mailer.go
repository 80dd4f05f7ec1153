// Package mailer delivers password-reset and email-verification tokens over
// SMTP. When no SMTP host is configured the service runs without a mailer
// and returns tokens in API responses instead.
package mailer

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (m *Mailer) SendPasswordReset(to, token string, expiresAt time.Time) error {
	body := fmt.Sprintf(
		"A password reset was requested for your EduFinance account.\n\n"+
			"Reset token: %s\n\n"+
			"The token expires at %s. If you did not request a reset, ignore this message.\n",
		token, expiresAt.UTC().Format(time.RFC1123),
	)
	return m.send(to, "EduFinance password reset", body)
}

func (m *Mailer) SendEmailVerification(to, token string, expiresAt time.Time) error {
	body := fmt.Sprintf(
		"Welcome to EduFinance!\n\n"+
			"Verification token: %s\n\n"+
			"The token expires at %s.\n",
		token, expiresAt.UTC().Format(time.RFC1123),
	)
	return m.send(to, "Verify your EduFinance account", body)
}

func (m *Mailer) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	return m.dialer.DialAndSend(msg)
}
