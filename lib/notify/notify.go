package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/jordan-wright/email"
)

// Message is a single plain text notification.
type Message struct {
	Subject string
	// Text defaults to Subject when empty.
	Text string
}

func (m Message) body() string {
	if m.Text == "" {
		return m.Subject
	}
	return m.Text
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

const (
	DefaultSmtpServer = "smtp-relay.brevo.com"
	DefaultSmtpPort   = 587
	DefaultFrom       = "NextView Monitor <monitor@nextviewkavach.in>"
)

type SmtpConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	// From is a display address like `Name <addr@example.com>`.
	From string
	To   []string
}

// SmtpNotifier sends each message as an email.
type SmtpNotifier struct {
	config SmtpConfig
	// send is swapped in tests.
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func sendEmail(e *email.Email, addr string, auth smtp.Auth) error {
	return e.Send(addr, auth)
}

func NewSmtpNotifier(config SmtpConfig) (*SmtpNotifier, error) {
	if config.Server == "" {
		config.Server = DefaultSmtpServer
	}
	if config.Port == 0 {
		config.Port = DefaultSmtpPort
	}
	if config.From == "" {
		config.From = DefaultFrom
	}
	if len(config.To) == 0 {
		return nil, fmt.Errorf("smtp: no recipients configured")
	}
	if _, err := mail.ParseAddress(config.From); err != nil {
		return nil, fmt.Errorf("smtp: invalid from address %q: %w", config.From, err)
	}
	for _, to := range config.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return nil, fmt.Errorf("smtp: invalid recipient %q: %w", to, err)
		}
	}
	return &SmtpNotifier{config: config, send: sendEmail}, nil
}

func (n *SmtpNotifier) address() string {
	return net.JoinHostPort(n.config.Server, strconv.Itoa(n.config.Port))
}

func (n *SmtpNotifier) build(msg Message) *email.Email {
	mail := email.NewEmail()
	mail.From = n.config.From
	mail.To = append([]string(nil), n.config.To...)
	mail.Subject = msg.Subject
	mail.Text = []byte(msg.body())
	return mail
}

func (n *SmtpNotifier) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := n.build(msg)
	slog.InfoContext(ctx, "sending email", "subject", msg.Subject, "to", n.config.To)

	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Server)
	}
	err := n.send(mail, n.address(), auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = n.send(mail, n.address(), nil)
	}
	if err != nil {
		return fmt.Errorf("send email %q: %w", msg.Subject, err)
	}
	return nil
}

// LogNotifier only logs messages, it stands in for SMTP in dry runs.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, msg Message) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "subject", msg.Subject, "text", msg.body())
	return nil
}

// Multi fans a message out to every notifier, all of them are tried even
// if one fails.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
