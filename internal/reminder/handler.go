package reminder

import (
	"context"
	"log/slog"

	"github.com/oumacare/ancare/internal/models"
)

// Handler delivers one reminder. Implementations may block on external
// services; errors are isolated per reminder by the checker.
type Handler interface {
	Deliver(ctx context.Context, rem models.Reminder) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, rem models.Reminder) error

// Deliver calls the wrapped function.
func (f HandlerFunc) Deliver(ctx context.Context, rem models.Reminder) error {
	return f(ctx, rem)
}

// LogHandler logs reminders instead of delivering them. It is the fallback
// when no delivery channel is configured.
type LogHandler struct{}

// Deliver logs the reminder and succeeds.
func (LogHandler) Deliver(ctx context.Context, rem models.Reminder) error {
	slog.Info("reminder (log only)",
		"type", rem.Type,
		"to", rem.Record.Phone,
		"name", rem.Record.Name,
		"visit", rem.Visit.VisitNumber,
		"message", rem.Message)
	return nil
}
