package infra

import (
	"errors"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"

	"washly/internal/config"

	"github.com/jordan-wright/email"
)

var ErrMailerDisabled = errors.New("mailer: SMTP_HOST not configured")

// Mail is one plain-text notification.
type Mail struct {
	To      []string
	Subject string
	Text    string
	Headers map[string]string
}

// Mailer sends notifications through the configured SMTP relay.
type Mailer struct {
	host string
	addr string
	from string
	auth smtp.Auth
}

func NewMailer(cfg *config.Config) *Mailer {
	m := &Mailer{
		host: cfg.SMTPHost,
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		from: (&mail.Address{Name: "Washly", Address: cfg.SMTPUser}).String(),
	}
	if cfg.SMTPUser != "" {
		m.auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return m
}

// Configured reports whether an SMTP host was provided.
func (m *Mailer) Configured() bool { return m.host != "" }

// Send delivers msg to every recipient in one SMTP transaction.
func (m *Mailer) Send(msg Mail) error {
	if !m.Configured() {
		return ErrMailerDisabled
	}
	if len(msg.To) == 0 {
		return errors.New("mailer: no recipients")
	}
	e := email.NewEmail()
	e.From = m.from
	e.To = msg.To
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	for k, v := range msg.Headers {
		e.Headers.Set(k, v)
	}
	return e.Send(m.addr, m.auth)
}

// ParseRecipients splits a comma separated address list, dropping blanks and
// anything net/mail cannot parse.
func ParseRecipients(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, err := mail.ParseAddress(part)
		if err != nil {
			continue
		}
		out = append(out, addr.Address)
	}
	return out
}
