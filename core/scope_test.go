package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestCorrelationID_NoScope(t *testing.T) {
	assert.Equal(t, NoScope, CorrelationID(context.Background()))
	assert.Empty(t, ScopePath(context.Background()))
}

func TestEnterScope_NestsAndRestores(t *testing.T) {
	for depth := 1; depth <= 8; depth++ {
		t.Run(fmt.Sprintf("depth-%d", depth), func(t *testing.T) {
			root := context.Background()
			before := CorrelationID(root)

			ctxs := []context.Context{root}
			guards := []*ScopeGuard{}
			for i := 0; i < depth; i++ {
				ctx, g := EnterScope(ctxs[len(ctxs)-1], fmt.Sprintf("s%d", i))
				ctxs = append(ctxs, ctx)
				guards = append(guards, g)
			}

			assert.Len(t, ScopePath(ctxs[depth]), depth)

			for i := depth - 1; i >= 0; i-- {
				guards[i].Release()
				assert.Equal(t, expectedPath(i), CorrelationID(ctxs[i]))
			}

			assert.Equal(t, before, CorrelationID(ctxs[0]))
		})
	}
}

// expectedPath is the correlation id of a caller nested in s0..s{depth-1}.
func expectedPath(depth int) string {
	if depth == 0 {
		return NoScope
	}
	segs := make([]string, depth)
	for i := range segs {
		segs[i] = fmt.Sprintf("s%d", i)
	}
	return strings.Join(segs, ".")
}

func TestEnterScope_JoinsMostRecentLast(t *testing.T) {
	ctx, turn := EnterScope(context.Background(), "turn-7")
	defer turn.Release()

	ctx, eval := EnterScope(ctx, "guideline-eval")
	defer eval.Release()

	ctx, tool := EnterScope(ctx, "tool-3")
	defer tool.Release()

	assert.Equal(t, "turn-7.guideline-eval.tool-3", CorrelationID(ctx))
	assert.Equal(t, "turn-7.guideline-eval.tool-3", tool.ID())
	assert.Equal(t, "turn-7.guideline-eval", eval.ID())
	assert.Equal(t, []string{"turn-7", "guideline-eval", "tool-3"}, ScopePath(ctx))
}

func TestEnterScope_ReleaseOnFailurePath(t *testing.T) {
	ctx, turn := EnterScope(context.Background(), "turn")
	defer turn.Release()

	failing := func(ctx context.Context) (err error) {
		_, g := EnterScope(ctx, "failing")
		defer g.Release()
		return fmt.Errorf("boom")
	}

	require.Error(t, failing(ctx))
	assert.Equal(t, "turn", CorrelationID(ctx))
}

func TestEnterScope_SiblingIsolation(t *testing.T) {
	ctx, turn := EnterScope(context.Background(), "turn")
	defer turn.Release()

	const siblings = 16

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]string{}
	)

	start := make(chan struct{})
	for i := 0; i < siblings; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start

			branch := fmt.Sprintf("branch-%d", i)
			bctx, g := EnterScope(ctx, branch)
			defer g.Release()

			leaf, lg := EnterScope(bctx, "leaf")
			defer lg.Release()

			mu.Lock()
			seen[branch] = CorrelationID(leaf)
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()

	require.Len(t, seen, siblings)
	for branch, id := range seen {
		assert.Equal(t, "turn."+branch+".leaf", id)
	}
	assert.Equal(t, "turn", CorrelationID(ctx))
}

func TestScopeGuard_ReleaseIdempotent(t *testing.T) {
	_, g := EnterScope(context.Background(), "x")
	g.Release()
	g.Release()
	g.Fail(fmt.Errorf("late"))
}

func TestEnterScope_EmptyIDGetsPlaceholder(t *testing.T) {
	ctx, g := EnterScope(context.Background(), "")
	defer g.Release()
	assert.Equal(t, "scope", CorrelationID(ctx))
}

func TestEnterScope_StartsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	ctx, outer := EnterScope(context.Background(), "turn")
	_, inner := EnterScope(ctx, "guideline-eval")
	inner.Fail(fmt.Errorf("batch failed"))
	outer.Release()

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "guideline-eval", ended[0].Name())
	assert.Equal(t, "turn", ended[1].Name())
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
	assert.NotEmpty(t, ended[0].Events(), "failure should be recorded on the span")
}
