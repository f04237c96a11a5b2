// Package notify provides best-effort completion notifications with a
// conversation-log fallback.
package notify

import (
	"context"
	"errors"
)

// Level indicates the severity of a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notification is one message for a recipient.
type Notification struct {
	Recipient string            `json:"recipient,omitempty"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Level     Level             `json:"level"`
	TaskID    string            `json:"task_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ErrNotConfigured is returned by notifiers that have no delivery target.
var ErrNotConfigured = errors.New("notifier not configured")

// Notifier delivers notifications. Delivery is best-effort: callers treat
// any error as "fall back", never as fatal.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}
