package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
)

// EmailConfig configures the SMTP channel.
type EmailConfig struct {
	Host       string
	Port       int
	Sender     string
	Password   string
	Recipients []string
}

// EmailChannel sends the report as a multipart/alternative mail over
// SMTP with STARTTLS.
type EmailChannel struct {
	cfg EmailConfig

	// sendMail is swapped in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailChannel(cfg EmailConfig) (*EmailChannel, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("email: smtp host is empty")
	}
	if strings.TrimSpace(cfg.Sender) == "" {
		return nil, errors.New("email: sender is empty")
	}
	if len(cfg.Recipients) == 0 {
		return nil, errors.New("email: no recipients")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	c := &EmailChannel{cfg: cfg}
	c.sendMail = c.sendSTARTTLS
	return c, nil
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
	auth := smtp.PlainAuth("", c.cfg.Sender, c.cfg.Password, c.cfg.Host)
	body := buildMIME(c.cfg.Sender, c.cfg.Recipients, msg)

	if err := c.sendMail(addr, auth, c.cfg.Sender, c.cfg.Recipients, body); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// sendSTARTTLS is smtp.SendMail with an explicit STARTTLS upgrade so we
// control the TLS config.
func (c *EmailChannel) sendSTARTTLS(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	cl, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer cl.Close()

	if ok, _ := cl.Extension("STARTTLS"); ok {
		if err := cl.StartTLS(&tls.Config{ServerName: c.cfg.Host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := cl.Extension("AUTH"); ok {
			if err := cl.Auth(a); err != nil {
				return err
			}
		}
	}
	if err := cl.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := cl.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := cl.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return cl.Quit()
}

const mimeBoundary = "=_macromon_alt_boundary"

// buildMIME assembles a multipart/alternative message: plain text first,
// HTML last so capable clients prefer it.
func buildMIME(from string, to []string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTML == "" {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(msg.Text)
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mimeBoundary)

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Text)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)
	return []byte(b.String())
}
