package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/straye-as/pipeline-api/internal/config"
	"go.uber.org/zap"
)

// Mailer sends a templated email. Callers do not wait for delivery.
type Mailer interface {
	Send(ctx context.Context, tmpl Template, to []string, data map[string]interface{}) error
}

// Message is a rendered email
type Message struct {
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	Template Template `json:"template"`
}

// Sender delivers a rendered message
type Sender interface {
	Deliver(ctx context.Context, msg Message) error
}

// NewSender selects the delivery backend from config
func NewSender(cfg *config.MailConfig, logger *zap.Logger) Sender {
	if cfg.Driver == "smtp" && cfg.SMTPHost != "" {
		return NewSMTPSender(cfg)
	}
	return NewLogSender(logger)
}

// DirectMailer renders and delivers in the calling goroutine
type DirectMailer struct {
	sender Sender
}

func NewDirectMailer(sender Sender) *DirectMailer {
	return &DirectMailer{sender: sender}
}

func (m *DirectMailer) Send(ctx context.Context, tmpl Template, to []string, data map[string]interface{}) error {
	msg, err := renderMessage(tmpl, to, data)
	if err != nil {
		return err
	}
	return m.sender.Deliver(ctx, msg)
}

func renderMessage(tmpl Template, to []string, data map[string]interface{}) (Message, error) {
	if len(to) == 0 {
		return Message{}, errors.New("email has no recipients")
	}
	subject, body, err := Render(tmpl, data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subject, Body: body, Template: tmpl}, nil
}

// SMTPSender delivers through an SMTP relay
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
}

func NewSMTPSender(cfg *config.MailConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPSender{
		addr: net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		from: cfg.From,
		auth: auth,
	}
}

func (s *SMTPSender) Deliver(_ context.Context, msg Message) error {
	if err := smtp.SendMail(s.addr, s.auth, s.from, msg.To, formatMessage(s.from, msg)); err != nil {
		return fmt.Errorf("failed to send %s email: %w", msg.Template, err)
	}
	return nil
}

func formatMessage(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + headerValue(from) + "\r\n")
	b.WriteString("To: " + headerValue(strings.Join(msg.To, ", ")) + "\r\n")
	b.WriteString("Subject: " + headerValue(msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogSender writes emails to the log instead of delivering them (development)
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Deliver(_ context.Context, msg Message) error {
	s.logger.Info("email",
		zap.String("template", string(msg.Template)),
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
