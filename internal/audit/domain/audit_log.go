package domain

import "time"

// AuditLog represents an audit event. UserID is empty for events with no resolved admin (e.g. a failed login).
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
