// internal/notification/mailer.go
package notification

import (
	"context"
	"fmt"
	"net/smtp"

	"eduevents/internal/clients"

	"github.com/google/uuid"
)

// Mailer sends registration confirmations over SMTP. When no credentials are
// configured the mailer is a no-op, matching local development setups.
type Mailer struct {
	members *clients.MembershipClient

	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// NewMailer creates an SMTP notifier that resolves recipient addresses via
// the membership service.
func NewMailer(members *clients.MembershipClient, host, port, username, password string) *Mailer {
	return &Mailer{
		members:  members,
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     fmt.Sprintf("EduEvents <%s>", username),
	}
}

// Configured reports whether SMTP credentials are present.
func (m *Mailer) Configured() bool {
	return m.Username != "" && m.Password != ""
}

// NotifyRegistered emails the member a registration confirmation.
func (m *Mailer) NotifyRegistered(ctx context.Context, memberID, eventID uuid.UUID) error {
	if !m.Configured() {
		return nil
	}

	member, err := m.members.GetMember(ctx, memberID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	body := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Registration Confirmation\r\n\r\n"+
			"Dear %s,\r\n\r\n"+
			"Thank you for registering! Your spot for event %s is confirmed.\r\n\r\n"+
			"See you there,\r\nThe EduEvents Team\r\n",
		m.From, member.Email, member.Name, eventID,
	)

	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	addr := m.Host + ":" + m.Port
	if err := smtp.SendMail(addr, auth, m.Username, []string{member.Email}, []byte(body)); err != nil {
		return fmt.Errorf("send confirmation mail: %w", err)
	}
	return nil
}
