package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventReservationCreated   = "reservation_created"
	EventReservationFinalized = "reservation_finalized"
	EventAppointmentCreated   = "appointment_created"
	EventAppointmentCanceled  = "appointment_canceled"
	EventPaymentReceived      = "payment_received"
)

// BookingEventPayload is the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	ProfessionalID string    `json:"professional_id"`
	ServiceID      string    `json:"service_id,omitempty"`
	ReservationID  string    `json:"reservation_id,omitempty"`
	AppointmentID  string    `json:"appointment_id,omitempty"`
	ClientName     string    `json:"client_name,omitempty"`
	ClientPhone    string    `json:"client_phone,omitempty"`
	Date           string    `json:"date"`
	StartMin       int       `json:"start_min"`
	DurationMin    int       `json:"duration_min"`
	Status         string    `json:"status,omitempty"`
	PaymentStatus  string    `json:"payment_status,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event. A nil bus
// is a no-op so callers can leave eventing unwired.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
