// Package mail delivers outbound email: login codes and contact form relays.
package mail

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when the SMTP transport settings are incomplete.
var ErrNotConfigured = errors.New("mail: EMAIL_HOST, EMAIL_PORT, EMAIL_USER and EMAIL_PASS must be set")

// Message is one outbound email. HTML and ReplyTo are optional.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
	ReplyTo string
	// FromName is an optional display name for the sender address.
	FromName string
}

// Sender sends a message. Implementations are unreliable by nature; callers must handle errors.
type Sender interface {
	Send(ctx context.Context, m Message) error
}
