package http

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/JettChenT/ek-geo/internal/core/domain"
)

// EventLog keeps the most recent sampling events in memory, newest last.
type EventLog struct {
	mu     sync.RWMutex
	events []domain.SamplingEvent
	next   int
	full   bool
}

// NewEventLog creates a log holding up to size events.
func NewEventLog(size int) *EventLog {
	if size <= 0 {
		size = 100
	}
	return &EventLog{events: make([]domain.SamplingEvent, size)}
}

// Record appends ev, evicting the oldest entry when full. Its signature
// matches ports.EventSubscriber handlers.
func (l *EventLog) Record(_ context.Context, ev *domain.SamplingEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[l.next] = *ev
	l.next = (l.next + 1) % len(l.events)
	if l.next == 0 {
		l.full = true
	}
	return nil
}

// Recent returns up to n events, newest first.
func (l *EventLog) Recent(n int) []domain.SamplingEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.next
	if l.full {
		size = len(l.events)
	}
	n = min(max(n, 0), size)

	out := make([]domain.SamplingEvent, 0, n)
	for i := range n {
		idx := (l.next - 1 - i + len(l.events)) % len(l.events)
		out = append(out, l.events[idx])
	}
	return out
}

// RecentEventsHandler returns the newest sampling events seen by this instance.
func RecentEventsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Events == nil {
			return c.JSON([]domain.SamplingEvent{})
		}
		return c.JSON(deps.Events.Recent(c.QueryInt("limit", 20)))
	}
}
