// Package email sends account lifecycle mail over plain SMTP.
package email

import (
	"fmt"
	"log/slog"
	"net/smtp"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	// BaseURL is the public address used to build verification links.
	BaseURL string
}

type Mailer struct {
	cfg    Config
	logger *slog.Logger
}

func NewMailer(cfg Config, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{cfg: cfg, logger: logger}
}

func (m *Mailer) SendVerificationEmail(to, token string) error {
	link := fmt.Sprintf("%s/api/v1/auth/verify/%s", m.cfg.BaseURL, token)
	body := fmt.Sprintf("Welcome!\r\n\r\nPlease verify your email address by visiting:\r\n%s\r\n", link)
	return m.send(to, "Verify your email address", body)
}

func (m *Mailer) SendWelcomeEmail(to, name string) error {
	body := fmt.Sprintf("Hi %s,\r\n\r\nYour email address has been verified. Welcome aboard!\r\n", name)
	return m.send(to, "Welcome!", body)
}

func (m *Mailer) send(to, subject, body string) error {
	// Without an SMTP host the mailer runs in dev mode and only logs.
	if m.cfg.Host == "" {
		m.logger.Info("smtp disabled, skipping email", "to", to, "subject", subject)
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.cfg.From, to, subject, body)
	addr := m.cfg.Host + ":" + m.cfg.Port

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	m.logger.Debug("email sent", "to", to, "subject", subject)
	return nil
}
