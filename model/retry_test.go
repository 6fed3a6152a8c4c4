package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/observability"
)

func fastRetry(o *RetryOptions) {
	o.InitialInterval = time.Millisecond
	o.MaxInterval = 2 * time.Millisecond
}

func TestWithRetry_RecoversFromTransientFailure(t *testing.T) {
	gen := NewScriptedGenerator(nil).
		Fail(errors.New("503 service unavailable")).
		Fail(errors.New("connection reset")).
		Reply("ok")

	text, err := WithRetry(gen, fastRetry).Generate(context.Background(), "p", Args{})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, gen.Calls())
}

func TestWithRetry_BoundedAttempts(t *testing.T) {
	gen := NewScriptedGenerator(func(context.Context, int, string, Args) (string, error) {
		return "", errors.New("down")
	})

	_, err := WithRetry(gen, fastRetry, func(o *RetryOptions) { o.MaxAttempts = 4 }).
		Generate(context.Background(), "p", Args{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTransportFailure))

	var te *core.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 4, te.Attempts)
	assert.Equal(t, 4, gen.Calls())
}

func TestWithRetry_DoesNotRetryCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	gen := NewScriptedGenerator(func(context.Context, int, string, Args) (string, error) {
		cancel()
		return "", context.Canceled
	})

	_, err := WithRetry(gen, fastRetry).Generate(ctx, "p", Args{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gen.Calls())
}

func TestWithRetry_RecordsMetrics(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	gen := NewScriptedGenerator(nil).Fail(errors.New("x")).Reply("ok")

	_, err := WithRetry(gen, fastRetry, func(o *RetryOptions) { o.Metrics = m }).
		Generate(context.Background(), "p", Args{})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationCounter.WithLabelValues("scripted", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationCounter.WithLabelValues("scripted", "success")))
}

func TestScriptedGenerator_QueueThenHandler(t *testing.T) {
	gen := NewScriptedGenerator(func(_ context.Context, call int, prompt string, _ Args) (string, error) {
		return prompt + "!", nil
	}).Reply("first")

	a, err := gen.Generate(context.Background(), "one", Args{})
	require.NoError(t, err)
	b, err := gen.Generate(context.Background(), "two", Args{})
	require.NoError(t, err)

	assert.Equal(t, "first", a)
	assert.Equal(t, "two!", b)
	assert.Equal(t, []string{"one", "two"}, gen.Prompts())
}

func TestScriptedGenerator_NoReply(t *testing.T) {
	_, err := NewScriptedGenerator(nil).Generate(context.Background(), "p", Args{})
	assert.Error(t, err)
}

func TestScriptedEmbedder(t *testing.T) {
	e := NewScriptedEmbedder(func(s string) []float64 { return []float64{float64(len(s))} })

	vecs, err := e.Embed(context.Background(), []string{"a", "abc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1}, {3}}, vecs)
	assert.Equal(t, 1, e.Calls())
}
