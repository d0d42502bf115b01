package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mail "github.com/xhit/go-simple-mail/v2"
	"go.uber.org/zap"
)

type Mail struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
}

// Sender hands a rendered mail to the outbound transport.
type Sender interface {
	Send(ctx context.Context, m Mail) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) Sender {
	return &smtpSender{cfg: cfg}
}

func (s *smtpSender) client() (*mail.SMTPClient, error) {
	server := mail.NewSMTPClient()
	server.Host = s.cfg.Host
	server.Port = s.cfg.Port
	server.Username = s.cfg.Username
	server.Password = s.cfg.Password
	server.Encryption = mail.EncryptionSTARTTLS
	server.TLSConfig = &tls.Config{ServerName: s.cfg.Host}
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second

	return server.Connect()
}

func (s *smtpSender) Send(ctx context.Context, m Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := s.client()
	if err != nil {
		return fmt.Errorf("failed to connect to smtp server: %w", err)
	}
	defer client.Close()

	to := m.To
	if m.ToName != "" {
		to = fmt.Sprintf("%s <%s>", m.ToName, m.To)
	}

	email := mail.NewMSG()
	email.SetFrom(s.cfg.From).
		AddTo(to).
		SetSubject(m.Subject)
	email.SetBody(mail.TextHTML, m.HTMLBody)

	if email.Error != nil {
		return fmt.Errorf("failed to build email: %w", email.Error)
	}

	if err := email.Send(client); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

type logSender struct {
	logger *zap.Logger
}

// NewLogSender returns a Sender that only logs. Used when SMTP is not configured.
func NewLogSender(logger *zap.Logger) Sender {
	return &logSender{logger: logger}
}

func (s *logSender) Send(_ context.Context, m Mail) error {
	s.logger.Info("mail not sent, smtp disabled",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.Int("body_bytes", len(m.HTMLBody)),
	)
	return nil
}
