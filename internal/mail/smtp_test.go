package mail

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gomail "github.com/wneessen/go-mail"
)

func testConfig() SMTPConfig {
	return SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "noreply@example.com", Password: "secret"}
}

func TestNewSMTPSender_RequiresConfig(t *testing.T) {
	for _, mutate := range []func(*SMTPConfig){
		func(c *SMTPConfig) { c.Host = "" },
		func(c *SMTPConfig) { c.Port = 0 },
		func(c *SMTPConfig) { c.Username = "" },
		func(c *SMTPConfig) { c.Password = "" },
	} {
		cfg := testConfig()
		mutate(&cfg)
		if _, err := NewSMTPSender(cfg); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("NewSMTPSender(%+v) = %v, want ErrNotConfigured", cfg, err)
		}
	}
}

func TestNewSMTPSender_FromFallsBackToUsername(t *testing.T) {
	s, err := NewSMTPSender(testConfig())
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	if s.cfg.From != "noreply@example.com" {
		t.Errorf("From = %q, want username", s.cfg.From)
	}
	if _, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 465, Username: "u@example.com", Password: "p"}); err != nil {
		t.Errorf("implicit TLS port: %v", err)
	}
}

func TestSend_BuildsMessage(t *testing.T) {
	s, err := NewSMTPSender(testConfig())
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	var got *gomail.Msg
	s.deliver = func(ctx context.Context, msg *gomail.Msg) error {
		got = msg
		return nil
	}
	err = s.Send(context.Background(), Message{
		To:       "admin@example.com",
		Subject:  "Your ADHOC Admin verification code",
		Text:     "Your verification code is: 012345",
		HTML:     "<p>hi</p>",
		ReplyTo:  "visitor@example.com",
		FromName: "Contact Form",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	rcpts, err := got.GetRecipients()
	if err != nil || len(rcpts) != 1 || rcpts[0] != "admin@example.com" {
		t.Errorf("recipients = %v, %v", rcpts, err)
	}
	if subj := got.GetGenHeader(gomail.HeaderSubject); len(subj) != 1 || subj[0] != "Your ADHOC Admin verification code" {
		t.Errorf("subject = %v", subj)
	}
	var buf bytes.Buffer
	if _, err := got.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	raw := buf.String()
	for _, want := range []string{"012345", "visitor@example.com", "Contact Form", "text/html"} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSend_InvalidRecipient(t *testing.T) {
	s, _ := NewSMTPSender(testConfig())
	s.deliver = func(ctx context.Context, msg *gomail.Msg) error {
		t.Fatal("deliver should not be called")
		return nil
	}
	if err := s.Send(context.Background(), Message{To: "not an address", Subject: "x", Text: "y"}); err == nil {
		t.Error("Send should reject an invalid recipient")
	}
}

func TestSend_DeliveryError(t *testing.T) {
	s, _ := NewSMTPSender(testConfig())
	s.deliver = func(ctx context.Context, msg *gomail.Msg) error { return errors.New("535 auth failed") }
	err := s.Send(context.Background(), Message{To: "admin@example.com", Subject: "x", Text: "y"})
	if err == nil || !strings.Contains(err.Error(), "535") {
		t.Errorf("Send = %v, want wrapped delivery error", err)
	}
}

func TestSend_PacingHonorsContext(t *testing.T) {
	cfg := testConfig()
	cfg.SendsPerMinute = 1
	s, _ := NewSMTPSender(cfg)
	s.deliver = func(ctx context.Context, msg *gomail.Msg) error { return nil }

	if err := s.Send(context.Background(), Message{To: "admin@example.com", Subject: "x", Text: "y"}); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Send(ctx, Message{To: "admin@example.com", Subject: "x", Text: "y"}); err == nil {
		t.Error("second Send within the pacing interval should fail once ctx expires")
	}
}
