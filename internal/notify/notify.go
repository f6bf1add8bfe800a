// Package notify fans settled status transitions out to external sinks.
package notify

import (
	"devicemonitor/internal/models"
)

// Notifier receives every settled status transition. Implementations must not
// block for long; failures are theirs to log.
type Notifier interface {
	Notify(event models.StatusEvent)
}

// Nop discards events.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(models.StatusEvent) {}
