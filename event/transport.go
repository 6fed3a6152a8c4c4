package event

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/hupe1980/turnmesh/core"
)

// ErrClosed is returned by transports that no longer accept events.
var ErrClosed = errors.New("transport closed")

// Transport delivers emitted events to the caller of a turn.
type Transport interface {
	Send(ctx context.Context, ev core.EmittedEvent) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, ev core.EmittedEvent) error

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, ev core.EmittedEvent) error { return f(ctx, ev) }

// ChannelTransport relays events over a buffered channel. Send blocks while
// the buffer is full until ctx is done.
type ChannelTransport struct {
	ch     chan core.EmittedEvent
	mu     sync.RWMutex
	closed bool
}

// NewChannelTransport creates a channel transport with the given buffer size.
func NewChannelTransport(buffer int) *ChannelTransport {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelTransport{ch: make(chan core.EmittedEvent, buffer)}
}

// Events returns the receive side of the transport.
func (t *ChannelTransport) Events() <-chan core.EmittedEvent { return t.ch }

// Send implements Transport.
func (t *ChannelTransport) Send(ctx context.Context, ev core.EmittedEvent) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return ErrClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case t.ch <- ev:
		return nil
	}
}

// Close closes the event channel. Later sends return ErrClosed.
func (t *ChannelTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.closed {
		t.closed = true
		close(t.ch)
	}
}

// MemoryTransport records every event it receives. It is safe for
// concurrent use and mostly useful in tests and diagnostics.
type MemoryTransport struct {
	mu     sync.RWMutex
	events []core.EmittedEvent
}

// NewMemoryTransport creates an empty memory transport.
func NewMemoryTransport() *MemoryTransport { return &MemoryTransport{} }

// Send implements Transport.
func (t *MemoryTransport) Send(ctx context.Context, ev core.EmittedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
	return nil
}

// Events returns a snapshot of all received events in arrival order.
func (t *MemoryTransport) Events() []core.EmittedEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.events)
}

// ByCorrelation returns the received events carrying correlationID.
func (t *MemoryTransport) ByCorrelation(correlationID string) []core.EmittedEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []core.EmittedEvent
	for _, ev := range t.events {
		if ev.CorrelationID == correlationID {
			out = append(out, ev)
		}
	}
	return out
}

// Statuses returns the status values of all received status events.
func (t *MemoryTransport) Statuses() []string {
	var out []string
	for _, ev := range t.Events() {
		if ev.Kind != core.KindStatus {
			continue
		}
		var p core.StatusPayload
		if err := ev.Decode(&p); err == nil {
			out = append(out, p.Status)
		}
	}
	return out
}
