package toolcall

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/logging"
	"github.com/hupe1980/turnmesh/model"
	"github.com/hupe1980/turnmesh/observability"
	"github.com/hupe1980/turnmesh/prompt"
	"github.com/hupe1980/turnmesh/structured"
	"github.com/hupe1980/turnmesh/tool"
)

// Options configure a Stager.
type Options struct {
	// MinScore is the lowest applicability score that is staged.
	MinScore int
	// MaxConcurrency bounds the number of tools evaluated at once.
	MaxConcurrency int
	// CallTimeout caps a single generation, further reduced to the budget.
	CallTimeout time.Duration
	// CorrectiveRetries is forwarded to the structured output pipeline.
	CorrectiveRetries int
	// Args are forwarded to the generator.
	Args model.Args
	// Equivalence, when set, replaces the model's duplicate judgment.
	// Without it a call is a duplicate when the model says so or when
	// SameArguments matches an already staged call.
	Equivalence Equivalence
	// Shots are rendered ahead of every evaluation. Nil disables few-shot examples.
	Shots   *prompt.ShotCollection[Shot]
	Logger  logging.Logger
	Metrics *observability.Metrics
}

// DefaultOptions returns the defaults used by NewStager.
func DefaultOptions() Options {
	return Options{
		MinScore:          6,
		MaxConcurrency:    4,
		CallTimeout:       30 * time.Second,
		CorrectiveRetries: 1,
		Args:              model.Args{Temperature: model.Temperature(0)},
		Shots:             DefaultShots(),
		Logger:            logging.NoOpLogger{},
	}
}

// Result is the outcome of staging one turn.
type Result struct {
	// Evaluations holds one entry per inferred call, plus one failed entry
	// per tool that could not be evaluated, in candidate order.
	Evaluations []core.ToolCallEvaluation
	// Staged are the calls to issue, in candidate order.
	Staged []core.ToolCall
}

// Stager decides which tool calls to issue for a turn.
type Stager struct {
	gen  model.Generator
	opts Options
}

// NewStager creates a stager over gen.
func NewStager(gen model.Generator, optFns ...func(o *Options)) *Stager {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Stager{gen: gen, opts: opts}
}

type candidate struct {
	call core.ToolCall
	eval core.ToolCallEvaluation
}

// Stage evaluates every tool against turn and the active propositions.
//
// Failures are isolated per candidate: a tool whose evaluation fails, and a
// call whose arguments violate the tool's parameter schema, are reported
// with core.OutcomeFailed while the remaining candidates are still staged.
// A call judged equivalent to one already staged, either earlier in the
// turn or earlier in this pass, is suppressed regardless of its score.
// Distinct calls are never dropped in favor of one another.
//
// Stage returns an error only when no work could be started: the budget
// had already expired or ctx was cancelled.
func (s *Stager) Stage(ctx context.Context, turn core.TurnContext, propositions []core.GuidelineProposition, tools []tool.Definition, budget *core.Budget) (Result, error) {
	if len(tools) == 0 {
		return Result{}, nil
	}
	if err := budget.Check(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	perTool := make([][]candidate, len(tools))

	var g errgroup.Group
	g.SetLimit(s.opts.MaxConcurrency)

	for i, def := range tools {
		g.Go(func() error {
			perTool[i] = s.evaluateTool(ctx, turn, propositions, def, budget)
			return nil
		})
	}
	_ = g.Wait()

	log := logging.Scoped(s.opts.Logger, turn.ID, core.CorrelationID(ctx))

	staged := append([]core.ToolCall(nil), turn.StagedCalls...)
	var res Result

	for i, cands := range perTool {
		for _, c := range cands {
			eval := s.decide(c, tools[i], staged)
			if eval.Outcome == core.OutcomeStaged {
				staged = append(staged, c.call)
				res.Staged = append(res.Staged, c.call)
			}

			s.opts.Metrics.ToolEvaluated(eval.ToolName, string(eval.Outcome))
			if tl, ok := log.(*logging.TurnLogger); ok {
				tl.LogStaging(eval.ToolName, string(eval.Outcome), eval.Score, eval.Err)
			} else if eval.Outcome == core.OutcomeDuplicateSuppressed {
				log.Info("toolcall.duplicate.suppressed", "tool_name", eval.ToolName, "score", eval.Score)
			}

			res.Evaluations = append(res.Evaluations, eval)
		}
	}

	return res, nil
}

// decide turns a model verdict into a final outcome against the calls
// staged so far.
func (s *Stager) decide(c candidate, def tool.Definition, staged []core.ToolCall) core.ToolCallEvaluation {
	eval := c.eval
	if eval.Outcome == core.OutcomeFailed {
		return eval
	}

	if s.isDuplicate(c, staged) {
		eval.Duplicate = true
	}

	switch {
	case !eval.ShouldRun || eval.Score < s.opts.MinScore:
		eval.Outcome = core.OutcomeSkipped
	case eval.Duplicate:
		eval.Outcome = core.OutcomeDuplicateSuppressed
	default:
		if err := def.ValidateArguments(eval.Arguments); err != nil {
			eval.Outcome = core.OutcomeFailed
			eval.Err = err
			return eval
		}
		eval.Outcome = core.OutcomeStaged
	}
	return eval
}

func (s *Stager) isDuplicate(c candidate, staged []core.ToolCall) bool {
	if s.opts.Equivalence != nil {
		for _, prev := range staged {
			if s.opts.Equivalence(c.call, prev) {
				return true
			}
		}
		return false
	}

	if c.eval.Duplicate {
		return true
	}
	for _, prev := range staged {
		if SameArguments(c.call, prev) {
			return true
		}
	}
	return false
}

func (s *Stager) evaluateTool(ctx context.Context, turn core.TurnContext, propositions []core.GuidelineProposition, def tool.Definition, budget *core.Budget) (cands []candidate) {
	ctx, scope := core.EnterScope(ctx, "tool-"+def.Name)
	defer scope.Release()

	log := logging.Scoped(s.opts.Logger, turn.ID, scope.ID())

	failed := func(err error) []candidate {
		scope.Fail(err)
		log.Warn("toolcall.tool.failed", "tool_name", def.Name, "error", err.Error())
		return []candidate{{eval: core.ToolCallEvaluation{ToolName: def.Name, Outcome: core.OutcomeFailed, Err: err}}}
	}

	text, err := s.buildPrompt(turn, propositions, def)
	if err != nil {
		return failed(err)
	}

	inf, err := structured.Generate(ctx, s.gen, inferenceDescriptor, structured.Request[Inference]{
		Prompt:      text,
		Args:        s.opts.Args,
		Budget:      budget,
		CallTimeout: s.opts.CallTimeout,
	}, func(o *structured.Options) {
		o.CorrectiveRetries = s.opts.CorrectiveRetries
		o.Logger = log
		o.Metrics = s.opts.Metrics
	})
	if err != nil {
		return failed(err)
	}

	for _, ci := range inf.ToolCalls {
		cands = append(cands, candidate{
			call: core.ToolCall{ID: core.NewID(), ToolName: def.Name, Arguments: ci.Arguments},
			eval: core.ToolCallEvaluation{
				ToolName:  def.Name,
				Score:     ci.Score,
				ShouldRun: ci.ShouldRun,
				Arguments: ci.Arguments,
				Duplicate: ci.SameCallIsAlreadyStaged,
				Rationale: ci.Rationale,
			},
		})
	}
	return cands
}

func (s *Stager) buildPrompt(turn core.TurnContext, propositions []core.GuidelineProposition, def tool.Definition) (string, error) {
	params, err := json.MarshalIndent(def.Parameters, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode parameters of tool '%s': %w", def.Name, err)
	}

	b := prompt.NewBuilder().
		Section("intro", `You are deciding which tool calls {{.Name}} should make at this point of the conversation.
Evaluate the candidate tool below. List every distinct call that might be needed, even if it should not run.
If an equivalent call, with the same intent and arguments, is already staged, mark it as already staged.`, turn.Agent)

	if s.opts.Shots != nil {
		b.Shots("shots", "Here are examples of correct evaluations:", prompt.RenderShots(s.opts.Shots, formatShot))
	}

	return b.
		Sectionf("conversation", "%s", formatInteractions(turn.Interactions)).
		Sectionf("guidelines", "%s", formatPropositions(propositions)).
		Sectionf("tool", "Candidate tool: %s\nDescription: %s\nParameters (JSON schema):\n%s", def.Name, def.Description, params).
		Sectionf("staged", "%s", formatStaged(turn.StagedCalls)).
		Sectionf("output", "Score each call from %d (irrelevant) to %d (certainly needed) and reply with JSON of this shape:\n%s",
			minScore, maxScore, inferenceDescriptor.Skeleton()).
		Build()
}

func formatPropositions(props []core.GuidelineProposition) string {
	if len(props) == 0 {
		return "Active guidelines: none"
	}

	var sb strings.Builder
	sb.WriteString("Active guidelines:")
	for i, p := range props {
		fmt.Fprintf(&sb, "\n%d) When %s, then %s", i+1, p.Guideline.Condition, p.Guideline.Action)
	}
	return sb.String()
}
