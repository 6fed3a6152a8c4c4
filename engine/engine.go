package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/event"
	"github.com/hupe1980/turnmesh/guideline"
	"github.com/hupe1980/turnmesh/indexing"
	"github.com/hupe1980/turnmesh/logging"
	"github.com/hupe1980/turnmesh/model"
	"github.com/hupe1980/turnmesh/observability"
	"github.com/hupe1980/turnmesh/tool"
	"github.com/hupe1980/turnmesh/toolcall"
)

// Options configures an Engine instance using the functional options pattern.
//
// Example:
//
//	eng := engine.New(gen, guidelines, tools, transport, func(o *engine.Options) {
//	    o.Config = cfg
//	    o.Logger = engine.NewLoggerFromConfig(cfg)
//	})
type Options struct {
	// Config contains the pipeline tuning. Defaults to DefaultConfig().
	Config Config

	// Logger provides structured logging. Defaults to a no-op logger.
	Logger logging.Logger

	// Metrics records generations, propositions, staging and events.
	// Optional.
	Metrics *observability.Metrics

	// Indexer narrows the guidelines of a turn to the Config.Indexing.TopK
	// most similar to the last user message. Optional.
	Indexer *indexing.Indexer

	// Callbacks hook into the turn lifecycle. Optional.
	Callbacks *CallbackManager

	// Equivalence replaces the model's duplicate judgment during staging.
	// Optional.
	Equivalence toolcall.Equivalence

	// GuidelineOptions and ToolCallOptions are applied after the values
	// derived from Config, for settings Config does not cover.
	GuidelineOptions []func(o *guideline.Options)
	ToolCallOptions  []func(o *toolcall.Options)

	// Clock backs turn budgets. Defaults to time.Now.
	Clock func() time.Time
}

// TurnResult is what a processed turn decided.
type TurnResult struct {
	ID            string
	CorrelationID string
	Propositions  []core.GuidelineProposition
	Evaluations   []core.ToolCallEvaluation
	Staged        []core.ToolCall
	Elapsed       time.Duration
}

// Engine orchestrates agent turns: correlation scope and budget, guideline
// proposition, tool staging and event emission.
//
// Concurrency: an Engine is immutable after construction and safe for
// concurrent ProcessTurn calls.
type Engine struct {
	guidelines core.GuidelineStore
	tools      tool.Store
	emitter    *event.Emitter
	proposer   *guideline.Proposer
	stager     *toolcall.Stager
	opts       Options
}

// New creates an Engine. gen is wrapped with the transport retry schedule
// from Config.Retry.
func New(gen model.Generator, guidelines core.GuidelineStore, tools tool.Store, transport event.Transport, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig(),
		Logger: logging.NoOpLogger{},
		Clock:  time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	cfg := opts.Config

	retrying := model.WithRetry(gen, func(o *model.RetryOptions) {
		o.MaxAttempts = cfg.Retry.MaxAttempts
		o.InitialInterval = cfg.Retry.InitialInterval
		o.MaxInterval = cfg.Retry.MaxInterval
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	proposerOpts := append([]func(o *guideline.Options){func(o *guideline.Options) {
		o.MinScore = cfg.Guideline.MinScore
		o.BatchSize = cfg.Guideline.BatchSize
		o.MaxConcurrency = cfg.Guideline.MaxConcurrency
		o.CallTimeout = cfg.Guideline.CallTimeout
		o.CorrectiveRetries = cfg.Structured.CorrectiveRetries
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	}}, opts.GuidelineOptions...)

	stagerOpts := append([]func(o *toolcall.Options){func(o *toolcall.Options) {
		o.MinScore = cfg.ToolCall.MinScore
		o.MaxConcurrency = cfg.ToolCall.MaxConcurrency
		o.CallTimeout = cfg.ToolCall.CallTimeout
		o.CorrectiveRetries = cfg.Structured.CorrectiveRetries
		o.Equivalence = opts.Equivalence
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	}}, opts.ToolCallOptions...)

	return &Engine{
		guidelines: guidelines,
		tools:      tools,
		emitter: event.NewEmitter(transport, func(o *event.Options) {
			o.SendTimeout = cfg.Events.SendTimeout
			o.Logger = opts.Logger
			o.Metrics = opts.Metrics
		}),
		proposer: guideline.NewProposer(retrying, proposerOpts...),
		stager:   toolcall.NewStager(retrying, stagerOpts...),
		opts:     opts,
	}
}

// ProcessTurn runs one turn. A turn without an id gets a fresh one.
//
// On failure the error is returned together with the partial result decided
// so far, after a best-effort "error" status event. Emission failures fail
// the turn like any other error.
func (e *Engine) ProcessTurn(ctx context.Context, turn core.TurnContext) (res *TurnResult, err error) {
	if turn.ID == "" {
		turn.ID = core.NewID()
	}

	budget := core.NewBudgetWithClock(e.opts.Config.TurnTimeout, e.opts.Clock)

	ctx, scope := core.EnterScope(ctx, "turn-"+turn.ID)
	defer scope.Release()

	res = &TurnResult{ID: turn.ID, CorrelationID: scope.ID()}
	log := logging.Scoped(e.opts.Logger, turn.ID, scope.ID())

	defer func() {
		res.Elapsed = budget.Elapsed()
		e.opts.Metrics.TurnObserved(err, res.Elapsed)

		if err != nil {
			scope.Fail(err)
			log.Error("engine.turn.failed", "error", err.Error(), "elapsed", res.Elapsed.String())
			_ = e.opts.Callbacks.ExecuteCallbacks(ctx, &CallbackContext{
				Type: CallbackOnError, Turn: turn, CorrelationID: scope.ID(), Propositions: res.Propositions, Err: err,
			})
			if _, emitErr := e.emitter.EmitStatus(context.WithoutCancel(ctx), core.StatusError, map[string]any{"error": err.Error()}); emitErr != nil {
				err = errors.Join(err, emitErr)
			}
		} else {
			log.Info("engine.turn.completed",
				"propositions", len(res.Propositions),
				"staged", len(res.Staged),
				"elapsed", res.Elapsed.String())
		}

		e.emitter.Forget(scope.ID())
	}()

	if _, err = e.emitter.EmitStatus(ctx, core.StatusAcknowledged, map[string]any{"agent": turn.Agent.Name}); err != nil {
		return res, err
	}

	guidelines, err := e.loadGuidelines(ctx, turn, log)
	if err != nil {
		return res, err
	}

	if _, err = e.emitter.EmitStatus(ctx, core.StatusProcessing, map[string]any{"guidelines": len(guidelines)}); err != nil {
		return res, err
	}

	if err = e.opts.Callbacks.ExecuteCallbacks(ctx, &CallbackContext{
		Type: CallbackBeforePropose, Turn: turn, CorrelationID: scope.ID(), Guidelines: guidelines,
	}); err != nil {
		return res, err
	}

	res.Propositions, err = e.propose(ctx, turn, guidelines, budget)
	if err != nil {
		return res, err
	}

	if err = e.opts.Callbacks.ExecuteCallbacks(ctx, &CallbackContext{
		Type: CallbackAfterPropose, Turn: turn, CorrelationID: scope.ID(), Guidelines: guidelines, Propositions: res.Propositions,
	}); err != nil {
		return res, err
	}

	tools := e.candidateTools(res.Propositions, log)

	names := make([]string, len(tools))
	for i, d := range tools {
		names[i] = d.Name
	}
	if err = e.opts.Callbacks.ExecuteCallbacks(ctx, &CallbackContext{
		Type: CallbackBeforeStage, Turn: turn, CorrelationID: scope.ID(), Propositions: res.Propositions, Tools: names,
	}); err != nil {
		return res, err
	}

	if err = budget.Check(); err != nil {
		return res, err
	}

	staging, err := e.stage(ctx, turn, res.Propositions, tools, budget)
	res.Evaluations = staging.Evaluations
	res.Staged = staging.Staged
	if err != nil {
		return res, err
	}

	if err = e.opts.Callbacks.ExecuteCallbacks(ctx, &CallbackContext{
		Type: CallbackAfterStage, Turn: turn, CorrelationID: scope.ID(), Propositions: res.Propositions, Tools: names, Staging: &staging,
	}); err != nil {
		return res, err
	}

	_, err = e.emitter.EmitStatus(ctx, core.StatusReady, map[string]any{
		"propositions": len(res.Propositions),
		"staged":       len(res.Staged),
	})
	return res, err
}

func (e *Engine) propose(ctx context.Context, turn core.TurnContext, guidelines []core.Guideline, budget *core.Budget) ([]core.GuidelineProposition, error) {
	ctx, scope := core.EnterScope(ctx, "guideline-eval")
	defer scope.Release()

	props, err := e.proposer.Propose(ctx, turn, guidelines, budget)
	if err != nil {
		scope.Fail(err)
		return nil, fmt.Errorf("propose guidelines: %w", err)
	}
	return props, nil
}

func (e *Engine) stage(ctx context.Context, turn core.TurnContext, props []core.GuidelineProposition, tools []tool.Definition, budget *core.Budget) (toolcall.Result, error) {
	ctx, scope := core.EnterScope(ctx, "tool-eval")
	defer scope.Release()
	defer e.emitter.Forget(scope.ID())

	res, err := e.stager.Stage(ctx, turn, props, tools, budget)
	if err != nil {
		scope.Fail(err)
		return res, fmt.Errorf("stage tool calls: %w", err)
	}

	if len(res.Staged) > 0 {
		if _, err := e.emitter.EmitToolCalls(ctx, res.Staged); err != nil {
			scope.Fail(err)
			return res, err
		}
	}
	return res, nil
}

// loadGuidelines lists the store and, when an indexer is configured,
// keeps the TopK guidelines most similar to the last user message in store
// order. A ranking failure falls back to the full list.
func (e *Engine) loadGuidelines(ctx context.Context, turn core.TurnContext, log logging.Logger) ([]core.Guideline, error) {
	all, err := e.guidelines.List()
	if err != nil {
		return nil, fmt.Errorf("list guidelines: %w", err)
	}

	topK := e.opts.Config.Indexing.TopK
	if e.opts.Indexer == nil || topK <= 0 || len(all) <= topK {
		return all, nil
	}

	query, ok := turn.LastUserMessage()
	if !ok {
		return all, nil
	}

	matches, err := e.opts.Indexer.Rank(ctx, query, topK)
	if err != nil {
		log.Warn("engine.guidelines.rank_failed", "error", err.Error())
		return all, nil
	}

	keep := make(map[string]bool, len(matches))
	for _, m := range matches {
		keep[m.Guideline.ID] = true
	}

	selected := slices.DeleteFunc(slices.Clone(all), func(g core.Guideline) bool { return !keep[g.ID] })
	log.Debug("engine.guidelines.ranked", "total", len(all), "selected", len(selected))
	return selected, nil
}

// candidateTools resolves the tools named by propositions, then the
// always-on tools, without repetition. Unknown names are logged and skipped.
func (e *Engine) candidateTools(props []core.GuidelineProposition, log logging.Logger) []tool.Definition {
	var names []string
	for _, p := range props {
		names = append(names, p.Guideline.ToolNames...)
	}
	names = append(names, e.opts.Config.AlwaysOnTools...)

	seen := make(map[string]bool, len(names))
	var defs []tool.Definition
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		def, err := e.tools.Get(name)
		if err != nil {
			log.Warn("engine.tool.unknown", "tool_name", name, "error", err.Error())
			continue
		}
		defs = append(defs, def)
	}
	return defs
}
