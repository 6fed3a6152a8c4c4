package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/logging"
	"github.com/hupe1980/turnmesh/observability"
)

// Options configures an Emitter.
type Options struct {
	// SendTimeout bounds a single Transport.Send. Zero disables the bound,
	// leaving only the caller's context.
	SendTimeout time.Duration
	Logger      logging.Logger
	Metrics     *observability.Metrics
}

// DefaultOptions returns the emitter defaults.
func DefaultOptions() Options {
	return Options{
		SendTimeout: 5 * time.Second,
		Logger:      logging.NoOpLogger{},
	}
}

// Emitter serializes emission per correlation id. It is safe for
// concurrent use.
type Emitter struct {
	transport Transport
	opts      Options

	mu     sync.Mutex
	scopes map[string]*sequence
}

// sequence is the ordering state of one correlation id. Its lock is held
// across the send so a later event cannot overtake an earlier one.
type sequence struct {
	mu   sync.Mutex
	next uint64
}

// NewEmitter creates an emitter on top of transport.
func NewEmitter(transport Transport, optFns ...func(o *Options)) *Emitter {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Emitter{
		transport: transport,
		opts:      opts,
		scopes:    make(map[string]*sequence),
	}
}

func (e *Emitter) sequence(correlationID string) *sequence {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.scopes[correlationID]
	if !ok {
		s = &sequence{}
		e.scopes[correlationID] = s
	}
	return s
}

// Emit encodes payload into an event attributed to correlationID and sends
// it. The correlation id is used verbatim. Offsets advance only for events
// the transport accepted, so a failed send leaves no gap. Status events are
// attributed to the system, everything else to the agent.
func (e *Emitter) Emit(ctx context.Context, kind core.EventKind, correlationID string, payload any) (core.EmittedEvent, error) {
	ev, err := core.NewEmittedEvent(sourceFor(kind), kind, correlationID, payload)
	if err != nil {
		e.opts.Metrics.EventEmitted(string(kind), err)
		return core.EmittedEvent{}, err
	}

	seq := e.sequence(correlationID)
	seq.mu.Lock()
	defer seq.mu.Unlock()

	ev.Offset = seq.next

	sendCtx, cancel := e.sendContext(ctx)
	defer cancel()

	if err := e.transport.Send(sendCtx, ev); err != nil {
		e.opts.Metrics.EventEmitted(string(kind), err)
		e.opts.Logger.Warn("event.emit.failed",
			"kind", string(kind),
			"correlation_id", correlationID,
			"offset", ev.Offset,
			"error", err.Error())
		return core.EmittedEvent{}, &core.TransportError{Attempts: 1, Err: fmt.Errorf("emit %s event: %w", kind, err)}
	}

	seq.next++
	e.opts.Metrics.EventEmitted(string(kind), nil)
	e.opts.Logger.Debug("event.emitted", "kind", string(kind), "correlation_id", correlationID, "offset", ev.Offset)

	return ev, nil
}

// EmitStatus emits a status event in the correlation scope of ctx.
func (e *Emitter) EmitStatus(ctx context.Context, status string, data map[string]any) (core.EmittedEvent, error) {
	return e.Emit(ctx, core.KindStatus, core.CorrelationID(ctx), core.StatusPayload{Status: status, Data: data})
}

// EmitMessage emits an agent message in the correlation scope of ctx.
func (e *Emitter) EmitMessage(ctx context.Context, message string) (core.EmittedEvent, error) {
	return e.Emit(ctx, core.KindMessage, core.CorrelationID(ctx), core.MessagePayload{Message: message})
}

// EmitToolCalls emits staged tool calls in the correlation scope of ctx.
func (e *Emitter) EmitToolCalls(ctx context.Context, calls []core.ToolCall) (core.EmittedEvent, error) {
	return e.Emit(ctx, core.KindTool, core.CorrelationID(ctx), core.ToolPayload{ToolCalls: calls})
}

// Forget drops the ordering state of correlationID. Later events for it
// start again at offset zero.
func (e *Emitter) Forget(correlationID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scopes, correlationID)
}

func (e *Emitter) sendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.SendTimeout > 0 {
		return context.WithTimeout(ctx, e.opts.SendTimeout)
	}
	return context.WithCancel(ctx)
}

func sourceFor(kind core.EventKind) core.Source {
	if kind == core.KindStatus {
		return core.SourceSystem
	}
	return core.SourceAgent
}
