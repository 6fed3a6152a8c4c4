package model

import (
	"context"
	"fmt"
	"sync"
)

// ScriptHandler computes the reply for the n-th call (zero based).
type ScriptHandler func(ctx context.Context, call int, prompt string, args Args) (string, error)

// ScriptedGenerator is a deterministic in-memory Generator for tests and
// examples. Replies are taken from a queue first and from the handler once
// the queue is drained. All prompts are recorded.
type ScriptedGenerator struct {
	info    Info
	handler ScriptHandler

	mu      sync.Mutex
	queue   []scripted
	prompts []string
}

type scripted struct {
	text string
	err  error
}

// NewScriptedGenerator constructs a ScriptedGenerator. handler may be nil.
func NewScriptedGenerator(handler ScriptHandler) *ScriptedGenerator {
	return &ScriptedGenerator{
		info:    Info{Name: "scripted", Provider: "scripted"},
		handler: handler,
	}
}

// Reply queues a successful reply.
func (g *ScriptedGenerator) Reply(text string) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queue = append(g.queue, scripted{text: text})
	return g
}

// Fail queues a failing reply.
func (g *ScriptedGenerator) Fail(err error) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queue = append(g.queue, scripted{err: err})
	return g
}

// Generate implements Generator.
func (g *ScriptedGenerator) Generate(ctx context.Context, prompt string, args Args) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	call := len(g.prompts)
	g.prompts = append(g.prompts, prompt)

	if len(g.queue) > 0 {
		next := g.queue[0]
		g.queue = g.queue[1:]
		g.mu.Unlock()
		return next.text, next.err
	}
	g.mu.Unlock()

	if g.handler == nil {
		return "", fmt.Errorf("scripted generator: no reply for call %d", call)
	}
	return g.handler(ctx, call, prompt, args)
}

// Info implements Generator.
func (g *ScriptedGenerator) Info() Info { return g.info }

// Calls returns the number of Generate invocations so far.
func (g *ScriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// Prompts returns a copy of all prompts received so far.
func (g *ScriptedGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.prompts))
	copy(out, g.prompts)
	return out
}

// ScriptedEmbedder derives vectors from a function of the input text.
type ScriptedEmbedder struct {
	fn func(text string) []float64

	mu    sync.Mutex
	calls int
}

// NewScriptedEmbedder constructs a ScriptedEmbedder.
func NewScriptedEmbedder(fn func(text string) []float64) *ScriptedEmbedder {
	return &ScriptedEmbedder{fn: fn}
}

// Embed implements Embedder.
func (e *ScriptedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = e.fn(t)
	}
	return out, nil
}

// Calls returns the number of Embed invocations so far.
func (e *ScriptedEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
