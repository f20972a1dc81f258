// Package mailer sends contact-form notification emails over SMTP.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/cutroom/cutroom/internal/inquiries"
)

// Config holds SMTP relay settings. Username may be empty for relays that
// accept unauthenticated mail from the app network.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	// StartTLS upgrades the connection before authenticating.
	StartTLS bool
}

// Mailer delivers inquiry notifications through a single SMTP relay.
type Mailer struct {
	cfg Config
}

// New creates a Mailer. Host, From, and at least one recipient are required.
func New(cfg Config) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mailer: SMTP host is required")
	}
	if cfg.From == "" || len(cfg.To) == 0 {
		return nil, fmt.Errorf("mailer: from address and recipients are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Mailer{cfg: cfg}, nil
}

// SendInquiry emails a formatted notification for the inquiry. The dial and
// the whole SMTP conversation respect the context deadline via the
// connection deadline.
func (m *Mailer) SendInquiry(ctx context.Context, inq *inquiries.Inquiry) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing SMTP relay %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("SMTP handshake with %s: %w", addr, err)
	}
	defer c.Close()

	if m.cfg.StartTLS {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("STARTTLS with %s: %w", addr, err)
		}
	}
	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range m.cfg.To {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", rcpt, err)
		}
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := wc.Write(FormatInquiry(m.cfg.From, m.cfg.To, inq)); err != nil {
		wc.Close()
		return fmt.Errorf("writing message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finishing message: %w", err)
	}
	return c.Quit()
}

// FormatInquiry renders the notification as an RFC 5322 message.
func FormatInquiry(from string, to []string, inq *inquiries.Inquiry) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Reply-To: %s\r\n", inq.Email)
	fmt.Fprintf(&b, "Subject: New booking inquiry from %s\r\n", inq.Name)
	fmt.Fprintf(&b, "Date: %s\r\n", inq.CreatedAt.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "Inquiry %s\r\n\r\n", inq.ID)
	fmt.Fprintf(&b, "Name:    %s\r\n", inq.Name)
	fmt.Fprintf(&b, "Email:   %s\r\n", inq.Email)
	if inq.Phone != "" {
		fmt.Fprintf(&b, "Phone:   %s\r\n", inq.Phone)
	}
	if inq.Service != "" {
		fmt.Fprintf(&b, "Service: %s\r\n", inq.Service)
	}
	fmt.Fprintf(&b, "\r\n%s\r\n", inq.Message)
	return []byte(b.String())
}
