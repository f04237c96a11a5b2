package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/genesis-minds/genesis/internal/models"
)

// ConversationAppender is the slice of the store the fallback writes to.
type ConversationAppender interface {
	AppendConversation(requester, role, content, taskID string) (*models.ConversationEntry, error)
}

// Fallback wraps a Notifier so that delivery failures land in the persistent
// conversation log instead of being lost. Deliver never returns an error.
type Fallback struct {
	notifier Notifier
	log      ConversationAppender
	slog     *slog.Logger
}

// NewFallback creates a Fallback around the given notifier and log sink.
func NewFallback(n Notifier, log ConversationAppender) *Fallback {
	return &Fallback{
		notifier: n,
		log:      log,
		slog:     slog.With("component", "notify"),
	}
}

// Deliver attempts live delivery, then writes to the conversation log when
// that fails. A fallback write failure is logged and swallowed; notification
// loss must never surface as a task failure.
func (f *Fallback) Deliver(ctx context.Context, n Notification) {
	if f.notifier != nil {
		err := f.notifier.Send(ctx, n)
		if err == nil {
			return
		}
		if err != ErrNotConfigured {
			f.slog.Warn("notification delivery failed, falling back to conversation log",
				"notifier", f.notifier.Name(), "task_id", n.TaskID, "error", err)
		}
	}

	content := n.Message
	if n.Title != "" {
		content = fmt.Sprintf("%s: %s", n.Title, n.Message)
	}
	if _, err := f.log.AppendConversation(n.Recipient, "system", content, n.TaskID); err != nil {
		f.slog.Error("conversation log fallback failed", "task_id", n.TaskID, "error", err)
	}
}
