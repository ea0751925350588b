// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// EmailMessage is one outgoing email
type EmailMessage struct {
	To       string
	Subject  string
	BodyHTML string
	BodyText string
}

// NotificationService handles sending notifications via email
type NotificationService interface {
	SendEmail(msg EmailMessage) error
}

// EmailProvider interface for email delivery backends
type EmailProvider interface {
	SendEmail(msg EmailMessage) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	emailProvider EmailProvider
}

// NewNotificationService creates a new notification service
func NewNotificationService(emailProvider EmailProvider) NotificationService {
	return &NotificationServiceImpl{
		emailProvider: emailProvider,
	}
}

// SendEmail sends an email through the configured provider
func (s *NotificationServiceImpl) SendEmail(msg EmailMessage) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email provider not configured")
	}

	if len(msg.To) == 0 || !strings.Contains(msg.To, "@") {
		return fmt.Errorf("invalid email address: %s", msg.To)
	}

	return s.emailProvider.SendEmail(msg)
}

type MockEmailProvider struct{}

func NewMockEmailProvider() EmailProvider {
	return &MockEmailProvider{}
}

func (p *MockEmailProvider) SendEmail(msg EmailMessage) error {
	log.Printf("Email sent to %s [%s]", msg.To, msg.Subject)
	return nil
}

type SMTPEmailProvider struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
}

func NewSMTPEmailProvider(host string, port int, username, password, fromEmail string) EmailProvider {
	return &SMTPEmailProvider{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
	}
}

func (p *SMTPEmailProvider) SendEmail(msg EmailMessage) error {
	addr := fmt.Sprintf("%s:%d", p.host, p.port)

	var b strings.Builder
	b.WriteString("From: " + p.fromEmail + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	if msg.BodyHTML != "" {
		b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(msg.BodyHTML)
	} else {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(msg.BodyText)
	}

	var auth smtp.Auth
	if p.username != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}

	return smtp.SendMail(addr, auth, p.fromEmail, []string{msg.To}, []byte(b.String()))
}
