package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/example/marketplace-engine/internal/notification"
)

// Service delivers notifications over SMTP. It is the shipped notification
// sink.
type Service struct {
	host string
	port string
	from string
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
	}
}

// Deliver implements notification.Sink.
func (s *Service) Deliver(ctx context.Context, msg notification.Message) error {
	body := BuildBody(msg.Severity, msg.Subject, msg.Lines)
	return s.send(msg.Email, msg.Subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
