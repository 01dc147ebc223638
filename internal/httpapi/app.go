package httpapi

import (
	"taskpad/internal/notify"
	"taskpad/internal/queue"
	"taskpad/internal/tasks"
)

type App struct {
	Repo     *tasks.Repository
	Notifier *notify.Notifier

	// DefaultOwner is used when no X-User-Sub header is present
	// (single-user mode).
	DefaultOwner string

	// Events is an optional change-event feed; nil disables publishing.
	Events *queue.Producer
}
