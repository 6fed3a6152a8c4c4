package structured

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/logging"
	"github.com/hupe1980/turnmesh/model"
	"github.com/hupe1980/turnmesh/observability"
)

// Request is a single structured generation.
type Request[T any] struct {
	// Prompt is sent verbatim on the first attempt.
	Prompt string
	// Args are forwarded to the generator.
	Args model.Args
	// Budget bounds the generation. New attempts are not started once it
	// has expired. Optional.
	Budget *core.Budget
	// CallTimeout caps a single generator call. It is further reduced to
	// the remaining budget.
	CallTimeout time.Duration
	// Validate holds semantic rules run after decoding. Optional.
	Validate func(T) error
}

// Options configure Generate.
type Options struct {
	// CorrectiveRetries is the number of follow-up prompts issued after
	// malformed output.
	CorrectiveRetries int
	Logger            logging.Logger
	Metrics           *observability.Metrics
}

// DefaultOptions returns one corrective retry and no logging.
func DefaultOptions() Options {
	return Options{
		CorrectiveRetries: 1,
		Logger:            logging.NoOpLogger{},
	}
}

// Generate prompts gen and parses the reply into T against d.
//
// A malformed reply triggers a corrective follow-up prompt quoting the
// offending reply and the parse error, at most Options.CorrectiveRetries
// times. Schema violations are returned immediately. Generator errors are
// returned as *core.TransportError unless they already match
// core.ErrTransportFailure.
func Generate[T any](ctx context.Context, gen model.Generator, d Descriptor, req Request[T], optFns ...func(o *Options)) (T, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	var zero T
	prompt := req.Prompt

	for attempt := 0; ; attempt++ {
		if err := req.Budget.Check(); err != nil {
			return zero, err
		}

		raw, err := call(ctx, gen, prompt, req)
		if err != nil {
			return zero, err
		}

		out, err := Parse[T](raw, d, req.Validate)
		if err == nil {
			return out, nil
		}

		if !core.IsRetryableOutput(err) || attempt >= opts.CorrectiveRetries {
			opts.Logger.Warn("structured.parse.failed",
				"schema", d.Name,
				"attempt", attempt+1,
				"error", err.Error(),
			)
			return zero, err
		}

		opts.Logger.Debug("structured.parse.corrective_retry",
			"schema", d.Name,
			"attempt", attempt+1,
			"error", err.Error(),
		)
		opts.Metrics.CorrectiveRetry(d.Name)

		prompt = correctivePrompt(req.Prompt, raw, err, d)
	}
}

func call[T any](ctx context.Context, gen model.Generator, prompt string, req Request[T]) (string, error) {
	callCtx, cancel := req.Budget.Context(ctx, req.CallTimeout)
	defer cancel()

	raw, err := gen.Generate(callCtx, prompt, req.Args)
	if err == nil {
		return raw, nil
	}
	if errors.Is(err, core.ErrTransportFailure) {
		return "", err
	}
	return "", &core.TransportError{Attempts: 1, Err: err}
}

func correctivePrompt(original, raw string, cause error, d Descriptor) string {
	var sb strings.Builder
	sb.WriteString(original)
	sb.WriteString("\n\n---\n")
	sb.WriteString("Your previous reply could not be used:\n")
	fmt.Fprintf(&sb, "%v\n\n", cause)
	sb.WriteString("Previous reply:\n")
	sb.WriteString(raw)
	sb.WriteString("\n\nReply again with a single JSON object of exactly this shape and nothing else:\n")
	sb.WriteString(d.Skeleton())
	return sb.String()
}
