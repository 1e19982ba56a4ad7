// Package mailer sends templated HTML mail over SMTP.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"goride/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config holds the SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP implements service.Mailer.
type SMTP struct {
	cfg       Config
	dialer    sender
	templates *template.Template
	logger    *zap.Logger
}

// Ensure SMTP implements service.Mailer.
var _ service.Mailer = (*SMTP)(nil)

// NewSMTP creates a mailer and parses the embedded templates.
func NewSMTP(cfg Config, logger *zap.Logger) (*SMTP, error) {
	return newSMTP(cfg, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), logger)
}

func newSMTP(cfg Config, dialer sender, logger *zap.Logger) (*SMTP, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &SMTP{cfg: cfg, dialer: dialer, templates: tmpl, logger: logger}, nil
}

// Send renders mail.Template with mail.Data and delivers it with attachments.
func (s *SMTP) Send(ctx context.Context, mail service.Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := s.render(mail.Template, mail.Data)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.From, s.cfg.FromName))
	m.SetHeader("To", mail.To)
	m.SetHeader("Subject", mail.Subject)
	m.SetBody("text/html", body)

	for _, a := range mail.Attachments {
		content := a.Content
		m.Attach(a.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}),
		)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	s.logger.Info("mail sent", zap.String("to", mail.To), zap.String("template", mail.Template))
	return nil
}

func (s *SMTP) render(name string, data any) (string, error) {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, name+".html", data); err != nil {
		return "", fmt.Errorf("render mail template %q: %w", name, err)
	}
	return body.String(), nil
}
