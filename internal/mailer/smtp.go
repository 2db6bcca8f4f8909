// Package mailer delivers rendered notifications over SMTP.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"

	"station_watch/internal/domain"
)

// Config holds SMTP delivery configuration.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTP sends multipart text+HTML mail. Idempotency against re-delivery is
// the caller's concern; the roll-up checks sent_at before calling Send.
type SMTP struct {
	cfg    Config
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *SMTP {
	return &SMTP{
		cfg:    cfg,
		send:   smtp.SendMail,
		logger: logger.With("component", "mailer"),
	}
}

const boundary = "=-station-watch-alt"

// Send delivers one message to its recipient.
func (m *SMTP) Send(ctx context.Context, msg *domain.NotificationMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	payload := m.buildMessage(msg)

	if err := m.send(addr, auth, m.cfg.From, []string{msg.Recipient}, payload); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	m.logger.Debug("mail sent", "recipient", msg.Recipient)
	return nil
}

func (m *SMTP) buildMessage(msg *domain.NotificationMessage) []byte {
	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", msg.Recipient)
	fmt.Fprintf(&sb, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	sb.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&sb, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	sb.WriteString("\r\n")

	fmt.Fprintf(&sb, "--%s\r\n", boundary)
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	sb.WriteString(msg.Body)
	sb.WriteString("\r\n")

	fmt.Fprintf(&sb, "--%s\r\n", boundary)
	sb.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	sb.WriteString(msg.BodyHTML)
	sb.WriteString("\r\n")

	fmt.Fprintf(&sb, "--%s--\r\n", boundary)
	return []byte(sb.String())
}
