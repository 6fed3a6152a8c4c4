package structured

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/model"
	"github.com/hupe1980/turnmesh/observability"
)

func TestGenerate_FirstReplyValid(t *testing.T) {
	gen := model.NewScriptedGenerator(nil).Reply("```json\n{\"a\": 4}\n```")

	out, err := Generate(context.Background(), gen, simpleDescriptor, Request[simple]{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, 4, out.A)
	assert.Equal(t, 1, gen.Calls())
}

func TestGenerate_OneCorrectiveRetry(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	gen := model.NewScriptedGenerator(nil).
		Reply("I think a is four.").
		Reply(`{"a": 4}`)

	out, err := Generate(context.Background(), gen, simpleDescriptor, Request[simple]{Prompt: "original prompt"},
		func(o *Options) { o.Metrics = m })
	require.NoError(t, err)
	assert.Equal(t, 4, out.A)

	prompts := gen.Prompts()
	require.Len(t, prompts, 2)
	assert.Equal(t, "original prompt", prompts[0])
	assert.True(t, strings.HasPrefix(prompts[1], "original prompt"))
	assert.Contains(t, prompts[1], "I think a is four.")
	assert.Contains(t, prompts[1], `"a": <integer>`)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CorrectiveRetries.WithLabelValues("simple")))
}

func TestGenerate_MalformedBeyondRetries(t *testing.T) {
	gen := model.NewScriptedGenerator(nil).Reply("nope").Reply("still nope").Reply(`{"a": 1}`)

	_, err := Generate(context.Background(), gen, simpleDescriptor, Request[simple]{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMalformedOutput))
	assert.Equal(t, 2, gen.Calls())
}

func TestGenerate_SchemaViolationNotRetried(t *testing.T) {
	gen := model.NewScriptedGenerator(nil).
		Reply(`{"label": "x", "score": 11}`).
		Reply(`{"label": "x", "score": 5}`)

	_, err := Generate(context.Background(), gen, DescriptorFor[scored]("scored"), Request[scored]{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSchemaViolation))
	assert.Equal(t, 1, gen.Calls())
}

func TestGenerate_RequestValidator(t *testing.T) {
	gen := model.NewScriptedGenerator(nil).Reply(`{"a": 0}`)

	_, err := Generate(context.Background(), gen, simpleDescriptor, Request[simple]{
		Prompt: "p",
		Validate: func(s simple) error {
			if s.A <= 0 {
				return core.NewSchemaViolation("a", "must be positive")
			}
			return nil
		},
	})
	assert.True(t, errors.Is(err, core.ErrSchemaViolation))
}

func TestGenerate_TransportFailure(t *testing.T) {
	gen := model.NewScriptedGenerator(nil).Fail(errors.New("connection refused"))

	_, err := Generate(context.Background(), gen, simpleDescriptor, Request[simple]{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTransportFailure))
}

func TestGenerate_ExpiredBudgetDeclinesWork(t *testing.T) {
	gen := model.NewScriptedGenerator(nil).Reply(`{"a": 1}`)

	_, err := Generate(context.Background(), gen, simpleDescriptor, Request[simple]{
		Prompt: "p",
		Budget: core.NewBudget(0),
	})
	assert.True(t, errors.Is(err, core.ErrBudgetExhausted))
	assert.Equal(t, 0, gen.Calls())
}

func TestGenerate_CallTimeoutSizedByBudget(t *testing.T) {
	var deadline time.Time
	gen := model.NewScriptedGenerator(func(ctx context.Context, _ int, _ string, _ model.Args) (string, error) {
		deadline, _ = ctx.Deadline()
		return `{"a": 1}`, nil
	})

	budget := core.NewBudget(time.Second)
	_, err := Generate(context.Background(), gen, simpleDescriptor, Request[simple]{
		Prompt:      "p",
		Budget:      budget,
		CallTimeout: time.Hour,
	})
	require.NoError(t, err)
	assert.False(t, deadline.IsZero())
	assert.False(t, deadline.After(budget.ExpiresAt().Add(10*time.Millisecond)))
}
