package application

import (
	"context"
	"log/slog"
)

// Notifier reports command outcomes to a person.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Alerter is implemented by notifiers that can flag failed commands
// above routine results.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}

type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string) error { return nil }

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, message string) error {
	n.Logger.InfoContext(ctx, "notification", "message", message)
	return nil
}

func (n LogNotifier) Alert(ctx context.Context, message string) error {
	n.Logger.WarnContext(ctx, "alert", "message", message)
	return nil
}

func alertOrNotify(ctx context.Context, n Notifier, message string) error {
	if a, ok := n.(Alerter); ok {
		return a.Alert(ctx, message)
	}
	return n.Notify(ctx, message)
}
