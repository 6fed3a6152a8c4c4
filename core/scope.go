package core

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NoScope is the correlation id reported for a context that never entered a scope.
const NoScope = "<main>"

const tracerName = "github.com/hupe1980/turnmesh/core"

type scopeKey struct{}

// scope is an immutable node of a correlation path. Children keep a pointer
// to their parent so forking a branch never copies or mutates the parent path.
type scope struct {
	parent *scope
	id     string
}

func (s *scope) segments() []string {
	if s == nil {
		return nil
	}
	var out []string
	for n := s; n != nil; n = n.parent {
		out = append(out, n.id)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ScopeGuard is returned by EnterScope. Releasing it ends the scope's span;
// the path segment it added is only visible through the context returned
// alongside it, so callers continue with their original context afterwards.
type ScopeGuard struct {
	id   string
	span trace.Span
	once sync.Once
}

// ID returns the full dot-joined correlation path of the guarded scope.
func (g *ScopeGuard) ID() string { return g.id }

// Release ends the scope. It is safe to call more than once and from defer
// statements on failure paths.
func (g *ScopeGuard) Release() {
	g.once.Do(func() {
		if g.span != nil {
			g.span.End()
		}
	})
}

// Fail records err on the scope's span and releases the guard.
func (g *ScopeGuard) Fail(err error) {
	if err != nil && g.span != nil {
		g.span.RecordError(err)
	}
	g.Release()
}

// EnterScope appends id to the correlation path carried by ctx and returns a
// derived context plus the guard owning the new segment. The parent context
// is never modified: concurrent branches entering scopes from the same parent
// each see only their own path.
//
// Every entered scope also starts an OpenTelemetry span named after id, so
// correlation paths line up with traces when a tracer provider is installed.
func EnterScope(ctx context.Context, id string) (context.Context, *ScopeGuard) {
	if id == "" {
		id = "scope"
	}

	parent, _ := ctx.Value(scopeKey{}).(*scope)
	node := &scope{parent: parent, id: id}
	path := strings.Join(node.segments(), ".")

	ctx, span := otel.Tracer(tracerName).Start(ctx, id, trace.WithAttributes(
		attribute.String("turnmesh.correlation_id", path),
	))

	ctx = context.WithValue(ctx, scopeKey{}, node)

	return ctx, &ScopeGuard{id: path, span: span}
}

// CorrelationID returns the dot-joined path of all scopes entered on ctx,
// most recent last, or NoScope when none was entered.
func CorrelationID(ctx context.Context) string {
	s, _ := ctx.Value(scopeKey{}).(*scope)
	if s == nil {
		return NoScope
	}
	return strings.Join(s.segments(), ".")
}

// ScopePath returns the individual segments of the correlation path on ctx.
func ScopePath(ctx context.Context) []string {
	s, _ := ctx.Value(scopeKey{}).(*scope)
	return s.segments()
}
