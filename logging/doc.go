// Package logging provides a minimal logging interface and adapters for turnmesh.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// every engine component accepts through its options. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter and ZapAdapter wrapping log/slog and go.uber.org/zap
//   - TurnLogger with turn and correlation scope helpers
//   - NoOpLogger for silent operation (the default everywhere)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(gen, guidelines, tools, transport, func(o *engine.Options) { o.Logger = logger })
//
// Arguments after the message are key/value pairs, as in log/slog.
package logging
