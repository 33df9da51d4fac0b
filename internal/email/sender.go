package email

import (
	"context"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPSender relays through a plain SMTP server. Credentials are only sent when
// a username is configured; the local development relay takes none.
type SMTPSender struct {
	addr string
	auth smtp.Auth
}

func NewSMTPSender(opts SMTPOptions) *SMTPSender {
	s := &SMTPSender{addr: net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))}
	if opts.Username != "" {
		s.auth = smtp.PlainAuth("", opts.Username, opts.Password, opts.Host)
	}
	return s
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	from, err := mail.ParseAddress(m.From)
	if err != nil {
		return fmt.Errorf("parse from address: %w", err)
	}
	to, err := mail.ParseAddress(m.To)
	if err != nil {
		return fmt.Errorf("parse to address: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(s.addr, s.auth, from.Address, []string{to.Address}, encode(m, from, to))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail via %s: %w", s.addr, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func encode(m Message, from, to *mail.Address) []byte {
	var b strings.Builder
	b.WriteString("From: " + from.String() + "\r\n")
	b.WriteString("To: " + to.String() + "\r\n")
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}
