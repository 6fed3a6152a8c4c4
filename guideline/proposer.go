package guideline

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/logging"
	"github.com/hupe1980/turnmesh/model"
	"github.com/hupe1980/turnmesh/observability"
	"github.com/hupe1980/turnmesh/prompt"
	"github.com/hupe1980/turnmesh/structured"
)

// Options configure a Proposer.
type Options struct {
	// MinScore is the lowest applicability score that is proposed.
	MinScore int
	// BatchSize is the number of guidelines judged by one generation.
	BatchSize int
	// MaxConcurrency bounds the number of batches evaluated at once.
	MaxConcurrency int
	// CallTimeout caps a single generation, further reduced to the budget.
	CallTimeout time.Duration
	// CorrectiveRetries is forwarded to the structured output pipeline.
	CorrectiveRetries int
	// Args are forwarded to the generator.
	Args model.Args
	// Shots are rendered ahead of every batch. Nil disables few-shot examples.
	Shots   *prompt.ShotCollection[Shot]
	Logger  logging.Logger
	Metrics *observability.Metrics
}

// DefaultOptions returns the defaults used by NewProposer.
func DefaultOptions() Options {
	return Options{
		MinScore:          7,
		BatchSize:         5,
		MaxConcurrency:    4,
		CallTimeout:       30 * time.Second,
		CorrectiveRetries: 1,
		Args:              model.Args{Temperature: model.Temperature(0)},
		Shots:             DefaultShots(),
		Logger:            logging.NoOpLogger{},
	}
}

// Proposer scores guidelines for applicability to a turn.
type Proposer struct {
	gen  model.Generator
	opts Options
}

// NewProposer creates a proposer over gen.
func NewProposer(gen model.Generator, optFns ...func(o *Options)) *Proposer {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Proposer{gen: gen, opts: opts}
}

// Propose returns a proposition for every guideline that applies to turn,
// scores at least MinScore and is not already addressed by the conversation.
// Propositions are ordered like guidelines; callers should not rely on any
// ranking beyond the raw score.
//
// Any batch failing, whether from transport errors, output still malformed
// after the corrective retry, or a schema violation, fails the whole call.
// An expired budget declines to start new batches with core.ErrBudgetExhausted.
func (p *Proposer) Propose(ctx context.Context, turn core.TurnContext, guidelines []core.Guideline, budget *core.Budget) ([]core.GuidelineProposition, error) {
	if len(guidelines) == 0 {
		return nil, nil
	}
	if err := budget.Check(); err != nil {
		return nil, err
	}

	batches := split(guidelines, p.opts.BatchSize)
	results := make([][]core.GuidelineProposition, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxConcurrency)

	for i, batch := range batches {
		g.Go(func() error {
			props, err := p.evaluateBatch(gctx, turn, i+1, batch, budget)
			if err != nil {
				return fmt.Errorf("guideline batch %d: %w", i+1, err)
			}
			results[i] = props
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []core.GuidelineProposition
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (p *Proposer) evaluateBatch(ctx context.Context, turn core.TurnContext, n int, batch []core.Guideline, budget *core.Budget) (props []core.GuidelineProposition, err error) {
	ctx, scope := core.EnterScope(ctx, fmt.Sprintf("batch-%d", n))
	defer func() { scope.Fail(err) }()

	log := logging.Scoped(p.opts.Logger, turn.ID, scope.ID())
	log.Debug("guideline.batch.start", "batch", n, "size", len(batch))

	defer func() { p.opts.Metrics.GuidelineBatch(len(props), err) }()

	text, err := p.buildPrompt(turn, batch)
	if err != nil {
		return nil, err
	}

	result, err := structured.Generate(ctx, p.gen, checksDescriptor, structured.Request[Checks]{
		Prompt:      text,
		Args:        p.opts.Args,
		Budget:      budget,
		CallTimeout: p.opts.CallTimeout,
		Validate:    validateBatch(len(batch)),
	}, func(o *structured.Options) {
		o.CorrectiveRetries = p.opts.CorrectiveRetries
		o.Logger = log
		o.Metrics = p.opts.Metrics
	})
	if err != nil {
		log.Warn("guideline.batch.failed", "batch", n, "error", err.Error())
		return nil, err
	}

	for _, ch := range result.Checks {
		g := batch[ch.GuidelineNumber-1]
		switch {
		case !ch.Applies:
			continue
		case ch.AlreadyAddressed:
			log.Debug("guideline.already_addressed", "guideline_id", g.ID, "score", ch.Score)
			continue
		case ch.Score < p.opts.MinScore:
			log.Debug("guideline.below_threshold", "guideline_id", g.ID, "score", ch.Score, "min_score", p.opts.MinScore)
			continue
		}
		props = append(props, core.GuidelineProposition{Guideline: g, Score: ch.Score, Rationale: ch.Rationale})
	}

	sortByBatchOrder(props, batch)

	log.Debug("guideline.batch.done", "batch", n, "proposed", len(props))
	return props, nil
}

func (p *Proposer) buildPrompt(turn core.TurnContext, batch []core.Guideline) (string, error) {
	b := prompt.NewBuilder().
		Section("intro", `You are evaluating behavioral guidelines for {{.Name}}{{if .Description}}, {{.Description}}{{end}}.
For each guideline decide whether its condition holds for the latest state of the conversation.
Mark a guideline as already addressed when the agent has already carried out its action and nothing new calls for it again.`, turn.Agent)

	if p.opts.Shots != nil {
		b.Shots("shots", "Here are examples of correct evaluations:", prompt.RenderShots(p.opts.Shots, formatShot))
	}

	return b.
		Sectionf("conversation", "%s", formatInteractions(turn.Interactions)).
		Sectionf("guidelines", "%s", formatGuidelines(batch)).
		Sectionf("output", "Score each guideline's applicability from %d (not at all) to %d (certainly), check every listed guideline exactly once and reply with JSON of this shape:\n%s",
			minApplicabilityScore, maxApplicabilityScore, checksDescriptor.Skeleton()).
		Build()
}

func split(guidelines []core.Guideline, size int) [][]core.Guideline {
	var out [][]core.Guideline
	for start := 0; start < len(guidelines); start += size {
		end := min(start+size, len(guidelines))
		out = append(out, guidelines[start:end])
	}
	return out
}

// sortByBatchOrder orders propositions like the guidelines of their batch,
// independent of the order the model listed its checks in.
func sortByBatchOrder(props []core.GuidelineProposition, batch []core.Guideline) {
	pos := make(map[string]int, len(batch))
	for i, g := range batch {
		pos[g.ID] = i
	}
	slices.SortStableFunc(props, func(a, b core.GuidelineProposition) int {
		return cmp.Compare(pos[a.Guideline.ID], pos[b.Guideline.ID])
	})
}
