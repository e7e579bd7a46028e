package domain

import "time"

// EmailOTP is one emailed code challenge for a (user, purpose) pair. Only the keyed
// hash of the code is stored.
type EmailOTP struct {
	ID           string
	UserID       string
	Purpose      string
	CodeHash     string
	ExpiresAt    time.Time
	MaxAttempts  int
	AttemptCount int
	SendCount    int
	LastSentAt   *time.Time
	ConsumedAt   *time.Time
	IP           string
	UserAgent    string
	CreatedAt    time.Time
}

// IsActive reports whether the code can still be verified at now: unconsumed,
// unexpired and under its attempt limit.
func (o *EmailOTP) IsActive(now time.Time) bool {
	return o != nil && o.ConsumedAt == nil && o.ExpiresAt.After(now) && o.AttemptCount < o.MaxAttempts
}

// SentAt returns when the code was last sent, falling back to creation time.
func (o *EmailOTP) SentAt() time.Time {
	if o.LastSentAt != nil {
		return *o.LastSentAt
	}
	return o.CreatedAt
}
