package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind names an engine change event.
type Kind string

const (
	KindBreakStarted      Kind = "break_started"
	KindBreakEnded        Kind = "break_ended"
	KindWindowRecomputed  Kind = "window_recomputed"
	KindOperationProgress Kind = "operation_progress"
)

// Event is published by the engine for display surfaces.
type Event struct {
	ID            uuid.UUID `json:"id"`
	Kind          Kind      `json:"event"`
	PersonID      *uint     `json:"personId,omitempty"`
	AppointmentID *uint     `json:"appointmentId,omitempty"`
	At            time.Time `json:"ts"`
	Data          any       `json:"data,omitempty"`
}

// New stamps an event with a fresh id and the given time.
func New(kind Kind, at time.Time, data any) Event {
	return Event{ID: uuid.New(), Kind: kind, At: at, Data: data}
}

// ForPerson sets the person the event is about.
func (e Event) ForPerson(id uint) Event {
	e.PersonID = &id
	return e
}

// ForAppointment sets the appointment the event is about.
func (e Event) ForAppointment(id uint) Event {
	e.AppointmentID = &id
	return e
}

// Publisher is the sending side of the bus.
type Publisher interface {
	Publish(Event)
}

// Bus is a publish/subscribe bus with fan-out channels. Delivery is
// non-blocking: a subscriber that falls behind misses events.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Event
	size   int
	closed bool
}

// NewBus creates a Bus whose subscriber channels buffer size events.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = 8
	}
	return &Bus{size: size}
}

// Publish sends the event to all subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, b.size)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes the bus and all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Event) {}
