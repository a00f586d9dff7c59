package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types published by the booking engines after a successful commit.
const (
	LaundryBookingCreated = "laundry.booking.created"
	LaundryBookingDeleted = "laundry.booking.deleted"

	RooftopBookingCreated = "rooftop.booking.created"
	RooftopBookingDeleted = "rooftop.booking.deleted"

	RooftopRequestSubmitted = "rooftop.request.submitted"
	RooftopRequestApproved  = "rooftop.request.approved"
	RooftopRequestRejected  = "rooftop.request.rejected"
	RooftopRequestCancelled = "rooftop.request.cancelled"
)

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	ID        int64 // booking or request id
	Booker    string
	Actor     string // who performed the action
	Machine   string
	Date      time.Time
	SlotStart int
	Reason    string
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// Publisher is the side of the bus the engines depend on.
type Publisher interface {
	Publish(event Event)
}

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger zerolog.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		logger:      logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type.
// Handlers run synchronously; a failing handler does not stop the others.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("type", event.Type).Int64("id", event.ID).Msg("event handler failed")
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Event) {}
