package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"vendorhub.org/internal/obs"
)

// Mailer delivers one notification message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers through a plain SMTP relay.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPMailer constructs a mailer for the given relay address ("host:port")
// and sender. Username may be empty for unauthenticated relays.
func NewSMTPMailer(addr, from, username, password string) (*SMTPMailer, error) {
	addr = strings.TrimSpace(addr)
	from = strings.TrimSpace(from)
	if addr == "" || from == "" {
		return nil, errors.New("notify: smtp address and sender are required")
	}
	m := &SMTPMailer{addr: addr, from: from}
	if username != "" {
		host := addr
		if i := strings.LastIndex(addr, ":"); i >= 0 {
			host = addr[:i]
		}
		m.auth = smtp.PlainAuth("", username, password, host)
	}
	return m, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	subject, body := render(msg)
	data := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.from, msg.Email, subject, body)
	return smtp.SendMail(m.addr, m.auth, m.from, []string{msg.Email}, []byte(data))
}

// LogMailer writes notifications to the structured log instead of sending
// them. Used when no SMTP relay is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	subject, _ := render(msg)
	obs.Info("notification (log mailer)", map[string]any{
		"kind":       string(msg.Kind),
		"to":         msg.Email,
		"subject":    subject,
		"profile_id": msg.ProfileID,
	})
	return nil
}

func render(msg Message) (subject, body string) {
	switch msg.Kind {
	case KindSupplierApproved:
		return "Your supplier application was approved",
			"Congratulations, your supplier application has been approved. You can now manage your supplier profile."
	case KindSupplierRejected:
		return "Your supplier application was rejected",
			"Your supplier application has been rejected. Reason: " + msg.Reason
	default:
		return string(msg.Kind), ""
	}
}
