package emailer

import (
	"net/smtp"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/config"
	"github.com/rs/zerolog"
)

// SMTPService delivers rendered emails over SMTP.
type SMTPService struct {
	User     string
	Host     string
	Port     string
	Password string
	From     string

	log zerolog.Logger
}

func NewSMTPService(cfg *config.Config, logger zerolog.Logger) *SMTPService {
	svc := &SMTPService{
		User:     cfg.Email.User,
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		log:      logger.With().Str("component", "SMTPService").Logger(),
	}

	if svc.Host == "" || svc.Port == "" || svc.From == "" {
		svc.log.Warn().Msg("SMTP credentials are not fully set")
	}
	return svc
}

func (e *SMTPService) Send(to, subject, additionalHeaders, body string) error {
	auth := smtp.PlainAuth("", e.User, e.Password, e.Host)

	msg := "From: " + e.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		additionalHeaders + "\r\n\r\n" +
		body

	addr := e.Host + ":" + e.Port
	return smtp.SendMail(addr, auth, e.From, []string{to}, []byte(msg))
}
