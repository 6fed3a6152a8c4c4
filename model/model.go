package model

import (
	"context"
)

// Args are the per-call generation hints. Zero values mean "provider default".
type Args struct {
	// Temperature overrides the sampling temperature when non-nil.
	Temperature *float64 `json:"temperature,omitempty"`
	// MaxTokens caps the completion length when positive.
	MaxTokens int `json:"max_tokens,omitempty"`
	// System is an optional system instruction sent ahead of the prompt.
	System string `json:"system,omitempty"`
}

// Temperature returns a pointer to t for use in Args.
func Temperature(t float64) *float64 { return &t }

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "gemini", "scripted", ...
}

// Generator turns a prompt into raw model text. Implementations may fail
// transiently; callers wrap them with WithRetry to bound those failures.
type Generator interface {
	Generate(ctx context.Context, prompt string, args Args) (string, error)

	// Info returns information about the model implementation.
	Info() Info
}

// Embedder maps texts to dense vectors. The returned slice has one vector per
// input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string, args Args) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, args Args) (string, error) {
	return f(ctx, prompt, args)
}

// Info implements Generator.
func (f GeneratorFunc) Info() Info { return Info{Name: "func", Provider: "func"} }
