package toolcall

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/internal/testutil"
	"github.com/hupe1980/turnmesh/model"
	"github.com/hupe1980/turnmesh/tool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var candidateLine = regexp.MustCompile(`(?m)^Candidate tool: (\S+)$`)

// candidateTool returns the tool under evaluation, skipping example sections.
func candidateTool(prompt string) string {
	m := candidateLine.FindAllStringSubmatch(prompt, -1)
	if len(m) == 0 {
		return ""
	}
	return m[len(m)-1][1]
}

type script map[string]any

// replies answers each tool's evaluation from a tool name -> reply table.
// A reply is either an Inference, a raw string or an error.
func replies(table script) model.ScriptHandler {
	return func(_ context.Context, _ int, prompt string, _ model.Args) (string, error) {
		switch r := table[candidateTool(prompt)].(type) {
		case Inference:
			return testutil.Fenced(r), nil
		case string:
			return r, nil
		case error:
			return "", r
		default:
			return testutil.JSON(Inference{ToolCalls: []CallInference{}}), nil
		}
	}
}

type lookupArgs struct {
	OrderID string `json:"order_id"`
}

type searchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

var (
	lookupTool = tool.NewFor[lookupArgs]("lookup_order", "Look up an order by id")
	searchTool = tool.NewFor[searchArgs]("search", "Search the catalog")
	refundTool = tool.New("refund", "Issue a refund", nil)
)

func run(args map[string]any, score int) CallInference {
	return CallInference{Rationale: "needed", Score: score, Arguments: args, ShouldRun: true}
}

func outcomes(res Result) map[string][]core.StagingOutcome {
	out := map[string][]core.StagingOutcome{}
	for _, e := range res.Evaluations {
		out[e.ToolName] = append(out[e.ToolName], e.Outcome)
	}
	return out
}

func TestStage_EqualScoresDistinctToolsBothStaged(t *testing.T) {
	gen := model.NewScriptedGenerator(replies(script{
		"lookup_order": Inference{ToolCalls: []CallInference{run(map[string]any{"order_id": "4711"}, 8)}},
		"search":       Inference{ToolCalls: []CallInference{run(map[string]any{"query": "shoes"}, 8)}},
	}))

	res, err := NewStager(gen).Stage(context.Background(), testutil.NewTurnBuilder().User("x").Build(), nil,
		[]tool.Definition{lookupTool, searchTool}, core.NewBudget(time.Minute))
	require.NoError(t, err)

	require.Len(t, res.Staged, 2)
	assert.Equal(t, "lookup_order", res.Staged[0].ToolName)
	assert.Equal(t, "search", res.Staged[1].ToolName)
	assert.NotEmpty(t, res.Staged[0].ID)
	assert.NotEqual(t, res.Staged[0].ID, res.Staged[1].ID)
}

func TestStage_IdenticalCallsStagedOnce(t *testing.T) {
	gen := model.NewScriptedGenerator(replies(script{
		"lookup_order": Inference{ToolCalls: []CallInference{
			run(map[string]any{"order_id": "4711"}, 9),
			run(map[string]any{"order_id": "4711"}, 10),
		}},
	}))

	res, err := NewStager(gen).Stage(context.Background(), testutil.NewTurnBuilder().Build(), nil,
		[]tool.Definition{lookupTool}, nil)
	require.NoError(t, err)

	require.Len(t, res.Staged, 1)
	assert.Equal(t, []core.StagingOutcome{core.OutcomeStaged, core.OutcomeDuplicateSuppressed}, outcomes(res)["lookup_order"])
	assert.True(t, res.Evaluations[1].Duplicate)
}

func TestStage_DuplicateOfEarlierStagedCallBeatsScore(t *testing.T) {
	gen := model.NewScriptedGenerator(replies(script{
		"lookup_order": Inference{ToolCalls: []CallInference{run(map[string]any{"order_id": "4711"}, 10)}},
	}))

	turn := testutil.NewTurnBuilder().Staged("lookup_order", map[string]any{"order_id": "4711"}).Build()

	res, err := NewStager(gen).Stage(context.Background(), turn, nil, []tool.Definition{lookupTool}, nil)
	require.NoError(t, err)

	assert.Empty(t, res.Staged)
	require.Len(t, res.Evaluations, 1)
	assert.Equal(t, core.OutcomeDuplicateSuppressed, res.Evaluations[0].Outcome)
	assert.NoError(t, res.Evaluations[0].Err)
}

func TestStage_ModelJudgedDuplicate(t *testing.T) {
	flagged := run(map[string]any{"order_id": "order 4711"}, 9)
	flagged.SameCallIsAlreadyStaged = true

	gen := model.NewScriptedGenerator(replies(script{
		"lookup_order": Inference{ToolCalls: []CallInference{flagged}},
	}))
	turn := testutil.NewTurnBuilder().Staged("lookup_order", map[string]any{"order_id": "4711"}).Build()

	res, err := NewStager(gen).Stage(context.Background(), turn, nil, []tool.Definition{lookupTool}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Staged)
	assert.Equal(t, core.OutcomeDuplicateSuppressed, res.Evaluations[0].Outcome)
}

func TestStage_EquivalenceOverridesModelJudgment(t *testing.T) {
	flagged := run(map[string]any{"order_id": "4712"}, 9)
	flagged.SameCallIsAlreadyStaged = true

	gen := model.NewScriptedGenerator(replies(script{
		"lookup_order": Inference{ToolCalls: []CallInference{flagged}},
	}))
	turn := testutil.NewTurnBuilder().Staged("lookup_order", map[string]any{"order_id": "4711"}).Build()

	res, err := NewStager(gen, func(o *Options) { o.Equivalence = SameArguments }).
		Stage(context.Background(), turn, nil, []tool.Definition{lookupTool}, nil)
	require.NoError(t, err)

	require.Len(t, res.Staged, 1)
	assert.Equal(t, "4712", res.Staged[0].Arguments["order_id"])
	assert.False(t, res.Evaluations[0].Duplicate)
}

func TestStage_SkipsLowScoreAndShouldNotRun(t *testing.T) {
	low := run(map[string]any{"query": "q"}, 3)
	notRun := run(map[string]any{"query": "other"}, 9)
	notRun.ShouldRun = false

	gen := model.NewScriptedGenerator(replies(script{
		"search": Inference{ToolCalls: []CallInference{low, notRun}},
	}))

	res, err := NewStager(gen).Stage(context.Background(), testutil.NewTurnBuilder().Build(), nil, []tool.Definition{searchTool}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Staged)
	assert.Equal(t, []core.StagingOutcome{core.OutcomeSkipped, core.OutcomeSkipped}, outcomes(res)["search"])
}

func TestStage_MissingRequiredArgumentIsolated(t *testing.T) {
	gen := model.NewScriptedGenerator(replies(script{
		"lookup_order": Inference{ToolCalls: []CallInference{run(map[string]any{}, 9)}},
		"search":       Inference{ToolCalls: []CallInference{run(map[string]any{"query": "shoes"}, 9)}},
	}))

	res, err := NewStager(gen).Stage(context.Background(), testutil.NewTurnBuilder().Build(), nil,
		[]tool.Definition{lookupTool, searchTool}, nil)
	require.NoError(t, err)

	require.Len(t, res.Staged, 1)
	assert.Equal(t, "search", res.Staged[0].ToolName)

	failed := res.Evaluations[0]
	assert.Equal(t, core.OutcomeFailed, failed.Outcome)
	assert.True(t, errors.Is(failed.Err, core.ErrSchemaViolation))

	var sv *core.SchemaViolationError
	require.True(t, errors.As(failed.Err, &sv))
	assert.Equal(t, "order_id", sv.Field)
}

func TestStage_ToolFailuresIsolated(t *testing.T) {
	gen := model.NewScriptedGenerator(replies(script{
		"lookup_order": errors.New("503"),
		"search":       "no JSON here, sorry",
		"refund":       Inference{ToolCalls: []CallInference{run(map[string]any{}, 7)}},
	}))

	res, err := NewStager(gen).Stage(context.Background(), testutil.NewTurnBuilder().Build(), nil,
		[]tool.Definition{lookupTool, searchTool, refundTool}, nil)
	require.NoError(t, err)

	require.Len(t, res.Staged, 1)
	assert.Equal(t, "refund", res.Staged[0].ToolName)

	require.Len(t, res.Evaluations, 3)
	assert.True(t, errors.Is(res.Evaluations[0].Err, core.ErrTransportFailure))
	assert.True(t, errors.Is(res.Evaluations[1].Err, core.ErrMalformedOutput))
	assert.Equal(t, core.OutcomeFailed, res.Evaluations[1].Outcome)
}

func TestStage_ScoreOutOfRangeIsViolation(t *testing.T) {
	gen := model.NewScriptedGenerator(replies(script{
		"search": Inference{ToolCalls: []CallInference{run(map[string]any{"query": "q"}, 42)}},
	}))

	res, err := NewStager(gen).Stage(context.Background(), testutil.NewTurnBuilder().Build(), nil, []tool.Definition{searchTool}, nil)
	require.NoError(t, err)
	require.Len(t, res.Evaluations, 1)
	assert.True(t, errors.Is(res.Evaluations[0].Err, core.ErrSchemaViolation))
	assert.Equal(t, 1, gen.Calls())
}

func TestStage_ExpiredBudget(t *testing.T) {
	gen := model.NewScriptedGenerator(replies(script{}))

	_, err := NewStager(gen).Stage(context.Background(), testutil.NewTurnBuilder().Build(), nil, []tool.Definition{searchTool}, core.NewBudget(0))
	assert.True(t, errors.Is(err, core.ErrBudgetExhausted))
	assert.Equal(t, 0, gen.Calls())
}

func TestStage_ToolScopes(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string]string{}
	)
	inner := replies(script{})
	gen := model.NewScriptedGenerator(func(ctx context.Context, call int, prompt string, args model.Args) (string, error) {
		mu.Lock()
		seen[candidateTool(prompt)] = core.CorrelationID(ctx)
		mu.Unlock()
		return inner(ctx, call, prompt, args)
	})

	ctx, g := core.EnterScope(context.Background(), "turn-1")
	defer g.Release()
	ctx, ev := core.EnterScope(ctx, "tool-eval")
	defer ev.Release()

	_, err := NewStager(gen).Stage(ctx, testutil.NewTurnBuilder().Build(), nil, []tool.Definition{lookupTool, searchTool}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"lookup_order": "turn-1.tool-eval.tool-lookup_order",
		"search":       "turn-1.tool-eval.tool-search",
	}, seen)
}

func TestStage_PromptMentionsStagedCallsAndGuidelines(t *testing.T) {
	gen := model.NewScriptedGenerator(replies(script{}))
	turn := testutil.NewTurnBuilder().User("where is 4711?").Staged("search", map[string]any{"query": "4711"}).Build()
	props := []core.GuidelineProposition{{Guideline: testutil.Guideline("g", "the customer asks about an order", "look it up"), Score: 9}}

	_, err := NewStager(gen, func(o *Options) { o.Shots = nil }).
		Stage(context.Background(), turn, props, []tool.Definition{lookupTool}, nil)
	require.NoError(t, err)

	p := gen.Prompts()[0]
	assert.Contains(t, p, `- search({"query":"4711"})`)
	assert.Contains(t, p, "1) When the customer asks about an order, then look it up")
	assert.Contains(t, p, "Candidate tool: lookup_order")
	assert.Contains(t, p, `"order_id"`)
}

func TestSameArguments(t *testing.T) {
	a := core.ToolCall{ToolName: "t", Arguments: map[string]any{"n": 2, "s": "x"}}
	b := core.ToolCall{ToolName: "t", Arguments: map[string]any{"s": "x", "n": 2.0}}
	c := core.ToolCall{ToolName: "u", Arguments: map[string]any{"s": "x", "n": 2}}
	d := core.ToolCall{ToolName: "t", Arguments: map[string]any{"s": "y", "n": 2}}

	assert.True(t, SameArguments(a, b))
	assert.False(t, SameArguments(a, c))
	assert.False(t, SameArguments(a, d))
	assert.True(t, SameArguments(core.ToolCall{ToolName: "t"}, core.ToolCall{ToolName: "t", Arguments: map[string]any{}}))
}
