// Package service validates public contact form submissions and relays them by email.
package service

import (
	"context"
	"html"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"adhoc-admin/backend/internal/logger"
	"adhoc-admin/backend/internal/mail"
	"adhoc-admin/backend/internal/platform/apperr"
)

const (
	// MinFillTime is the shortest plausible time between form mount and submit.
	MinFillTime = 1200 * time.Millisecond

	minNameLength    = 2
	minMessageLength = 10
	fromName         = "Contact Form"
	defaultSubject   = "New Contact Form Submission"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Submission is one contact form post. Company is the honeypot field.
// StartedAt is the client's form mount time; nil skips the fill time check.
type Submission struct {
	Name      string
	Email     string
	Subject   string
	Message   string
	Company   string
	StartedAt *time.Time
}

// ContactService relays submissions to the office inbox.
type ContactService struct {
	sender mail.Sender
	to     string
	log    *zap.Logger
	now    func() time.Time
}

// NewContactService returns a service that mails submissions to `to`. sender may be nil when SMTP is not configured.
func NewContactService(sender mail.Sender, to string, log *zap.Logger) *ContactService {
	return &ContactService{sender: sender, to: to, log: logger.OrNop(log), now: time.Now}
}

// Submit checks s and sends it. Spam and validation failures are 400s; transport problems are 500s.
func (c *ContactService) Submit(ctx context.Context, s Submission) error {
	if err := c.check(s); err != nil {
		return err
	}
	if c.sender == nil || c.to == "" {
		return apperr.Configuration("Email not configured")
	}
	if err := c.sender.Send(ctx, buildMessage(c.to, s)); err != nil {
		c.log.Error("contact form relay failed", zap.String("reply_to", s.Email), zap.Error(err))
		return apperr.Internal("Server error", err)
	}
	c.log.Info("contact form relayed", zap.String("reply_to", s.Email))
	return nil
}

func (c *ContactService) check(s Submission) error {
	if s.Company != "" {
		return apperr.Validation("Spam detected")
	}
	if len([]rune(strings.TrimSpace(s.Name))) < minNameLength {
		return apperr.Validation("Name too short")
	}
	if !emailRe.MatchString(s.Email) {
		return apperr.Validation("Invalid email")
	}
	if len([]rune(strings.TrimSpace(s.Message))) < minMessageLength {
		return apperr.Validation("Message too short")
	}
	if s.StartedAt != nil && c.now().Sub(*s.StartedAt) < MinFillTime {
		return apperr.Validation("Form filled too quickly")
	}
	return nil
}

func buildMessage(to string, s Submission) mail.Message {
	subject := defaultSubject
	if s.Subject != "" {
		subject = "[Contact] " + s.Subject
	}
	shownSubject := s.Subject
	if shownSubject == "" {
		shownSubject = "(none)"
	}
	text := "Name: " + s.Name + "\nEmail: " + s.Email + "\nSubject: " + s.Subject + "\nMessage:\n" + s.Message

	var b strings.Builder
	b.WriteString("<p><strong>Name:</strong> " + html.EscapeString(s.Name) + "</p>")
	b.WriteString("<p><strong>Email:</strong> " + html.EscapeString(s.Email) + "</p>")
	b.WriteString("<p><strong>Subject:</strong> " + html.EscapeString(shownSubject) + "</p>")
	b.WriteString("<p><strong>Message:</strong><br/>" +
		strings.ReplaceAll(html.EscapeString(s.Message), "\n", "<br/>") + "</p>")

	return mail.Message{
		To:       to,
		Subject:  subject,
		Text:     text,
		HTML:     b.String(),
		ReplyTo:  s.Email,
		FromName: fromName,
	}
}
