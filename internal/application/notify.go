package application

import (
	"context"
	"log/slog"
)

// NotificationKind distinguishes success and error notifications.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notification is a transient user-facing message emitted by the stores.
type Notification struct {
	Kind    NotificationKind
	Message string
}

// Notifier delivers notifications to the view layer.
type Notifier interface {
	Notify(ctx context.Context, notification Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, notification Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, notification Notification) {
	f(ctx, notification)
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the notification at info level for successes and warn level for errors.
func (n LogNotifier) Notify(ctx context.Context, notification Notification) {
	logger := defaultLogger(n.Logger)
	level := slog.LevelInfo
	if notification.Kind == NotificationError {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "notification", "kind", string(notification.Kind), "message", notification.Message)
}

// MultiNotifier fans a notification out to every non-nil notifier in order.
type MultiNotifier []Notifier

// Notify forwards notification to each notifier.
func (m MultiNotifier) Notify(ctx context.Context, notification Notification) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, notification)
		}
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, Notification) {}

func defaultNotifier(n Notifier) Notifier {
	if n != nil {
		return n
	}
	return discardNotifier{}
}
