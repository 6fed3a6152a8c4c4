// Package gemini provides model.Generator and model.Embedder implementations
// for Google's Gemini API through google.golang.org/genai.
package gemini

import (
	"context"
	"fmt"
	"math"

	"google.golang.org/genai"

	"github.com/hupe1980/turnmesh/model"
)

// Options configure the Gemini generator. Per-call model.Args override
// Temperature and MaxOutputTokens.
type Options struct {
	Model           string
	EmbeddingModel  string
	Temperature     float32
	MaxOutputTokens int32
}

// Client wraps a genai client for text generation and embedding.
type Client struct {
	client *genai.Client
	opts   Options
}

// New creates a Gemini client authenticated with apiKey.
func New(ctx context.Context, apiKey string, optFns ...func(o *Options)) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return NewFromClient(client, optFns...), nil
}

// NewFromClient creates a Gemini client from an existing genai client.
func NewFromClient(client *genai.Client, optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:           "gemini-2.0-flash",
		EmbeddingModel:  "gemini-embedding-001",
		Temperature:     0.2,
		MaxOutputTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{client: client, opts: opts}
}

// Generate implements model.Generator.
func (c *Client) Generate(ctx context.Context, prompt string, args model.Args) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.opts.Model, genai.Text(prompt), c.buildConfig(args))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini generate: empty response")
	}
	return text, nil
}

func (c *Client) buildConfig(args model.Args) *genai.GenerateContentConfig {
	temperature := c.opts.Temperature
	if args.Temperature != nil {
		temperature = float32(*args.Temperature)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: c.opts.MaxOutputTokens,
	}

	if args.MaxTokens > 0 {
		// #nosec G115 -- bounded by min above
		config.MaxOutputTokens = int32(min(args.MaxTokens, math.MaxInt32))
	}

	if args.System != "" {
		config.SystemInstruction = genai.NewContentFromText(args.System, genai.RoleUser)
	}

	return config
}

// Info implements model.Generator.
func (c *Client) Info() model.Info {
	return model.Info{Name: c.opts.Model, Provider: "gemini"}
}

// Embed implements model.Embedder.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := c.client.Models.EmbedContent(ctx, c.opts.EmbeddingModel, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: expected %d vectors, got %d", len(texts), len(result.Embeddings))
	}

	out := make([][]float64, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		v := make([]float64, len(emb.Values))
		for j, x := range emb.Values {
			v[j] = float64(x)
		}
		out[i] = v
	}
	return out, nil
}
