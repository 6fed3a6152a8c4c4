// Package model defines the provider-agnostic capabilities the turn engine
// consumes: text generation and embedding.
//
// Core goals:
//   - Keep the generation surface to "prompt in, text out" so structured
//     parsing stays provider independent
//   - Treat every provider as an opaque capability that may fail transiently
//   - Bound transient failures with a retry wrapper (WithRetry)
//   - Facilitate deterministic tests (ScriptedGenerator, ScriptedEmbedder)
//
// Providers (OpenAI, Anthropic, Gemini) live in sub-packages and implement
// Generator so higher layers stay decoupled from vendor SDKs.
package model
