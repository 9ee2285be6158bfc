package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/tuitionhub/backend/internal/config"
	"github.com/tuitionhub/backend/pkg/logger"
)

// EmailMessage is a single HTML email to one recipient.
type EmailMessage struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// EmailSender delivers a message. Any returned error means the message was not accepted.
type EmailSender interface {
	Send(ctx context.Context, msg *EmailMessage) error
}

// NewEmailSender builds the transport selected by cfg.Provider.
func NewEmailSender(cfg *config.EmailConfig) (EmailSender, error) {
	switch cfg.Provider {
	case "", "log":
		return NewLogSender(cfg.DefaultFrom), nil
	case "smtp":
		if cfg.SMTP.Host == "" {
			return nil, errors.New("smtp host is required")
		}
		return NewSMTPSender(&cfg.SMTP, cfg.DefaultFrom, cfg.FromName), nil
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, errors.New("sendgrid api key is required")
		}
		return NewSendGridSender(cfg.SendGridAPIKey, cfg.DefaultFrom, cfg.FromName), nil
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", cfg.Provider)
	}
}

type SMTPSender struct {
	cfg         *config.SMTPConfig
	defaultFrom string
	fromName    string
}

func NewSMTPSender(cfg *config.SMTPConfig, defaultFrom, fromName string) *SMTPSender {
	return &SMTPSender{cfg: cfg, defaultFrom: defaultFrom, fromName: fromName}
}

func (s *SMTPSender) Send(ctx context.Context, msg *EmailMessage) error {
	from := msg.From
	if from == "" {
		from = s.defaultFrom
	}
	if from == "" {
		from = s.cfg.Username
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{ServerName: s.cfg.Host}
	if s.cfg.UseTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if !s.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(msg.To); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMIMEMessage(s.formatFrom(from), msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	logger.Infof("[Email] Sent %q to %s via smtp", msg.Subject, msg.To)
	return client.Quit()
}

func (s *SMTPSender) formatFrom(from string) string {
	if s.fromName == "" {
		return from
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.fromName), from)
}

func buildMIMEMessage(from string, msg *EmailMessage) []byte {
	headers := [][2]string{
		{"From", from},
		{"To", msg.To},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var sb strings.Builder
	for _, h := range headers {
		sb.WriteString(h[0])
		sb.WriteString(": ")
		sb.WriteString(h[1])
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")
	sb.WriteString(msg.HTML)
	return []byte(sb.String())
}

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

type SendGridSender struct {
	key  string
	from *sgmail.Email
	host string
}

func NewSendGridSender(key, defaultFrom, fromName string) *SendGridSender {
	return &SendGridSender{
		key:  key,
		from: sgmail.NewEmail(fromName, defaultFrom),
		host: sendGridHost,
	}
}

func (s *SendGridSender) prepare(msg *EmailMessage) *sgmail.SGMailV3 {
	from := s.from
	if msg.From != "" {
		from = sgmail.NewEmail(s.from.Name, msg.From)
	}

	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail("", msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	return m
}

func (s *SendGridSender) Send(ctx context.Context, msg *EmailMessage) error {
	req := sendgrid.GetRequest(s.key, sendGridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}

	logger.Infof("[Email] Sent %q to %s via sendgrid", msg.Subject, msg.To)
	return nil
}

// LogSender writes messages to the application log instead of delivering them.
type LogSender struct {
	defaultFrom string
}

func NewLogSender(defaultFrom string) *LogSender {
	return &LogSender{defaultFrom: defaultFrom}
}

func (s *LogSender) Send(_ context.Context, msg *EmailMessage) error {
	from := msg.From
	if from == "" {
		from = s.defaultFrom
	}
	logger.Info().
		Str("from", from).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("html_bytes", len(msg.HTML)).
		Msg("[Email] Message logged (log provider)")
	return nil
}
