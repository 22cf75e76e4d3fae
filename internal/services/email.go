package services

import (
	"fmt"
	"net/smtp"

	"codequill/internal/config"
	"codequill/internal/logger"

	"go.uber.org/zap"
)

type EmailService struct {
	auth smtp.Auth
	from string
	host string
	port string
}

func NewEmailService(cfg *config.Config) *EmailService {
	auth := smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	return &EmailService{
		auth: auth,
		from: cfg.SMTPUser,
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
	}
}

func (s *EmailService) Send(to []string, subject, body string) error {
	msg := []byte("Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n" +
		body)

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, s.auth, s.from, to, msg)
}

type EmailJob struct {
	To      []string
	Subject string
	Body    string
}

var EmailQueue = make(chan EmailJob, 100)

// StartEmailWorker разбирает очередь писем. Ошибки отправки только логируются:
// письмо не критично для основного потока.
func StartEmailWorker(emailService *EmailService) {
	for job := range EmailQueue {
		if err := emailService.Send(job.To, job.Subject, job.Body); err != nil {
			logger.Log.Error("Ошибка отправки письма",
				zap.Strings("to", job.To),
				zap.String("subject", job.Subject),
				zap.Error(err),
			)
		}
	}
}
