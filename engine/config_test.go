package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/turnmesh/logging"
)

func TestParseConfig_OverlaysDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
turn_timeout: 45s
log_level: debug
guideline:
  min_score: 8
  call_timeout: 10s
retry:
  initial_interval: 250ms
always_on_tools: [handoff, search]
`))
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.TurnTimeout)
	assert.Equal(t, 8, cfg.Guideline.MinScore)
	assert.Equal(t, 10*time.Second, cfg.Guideline.CallTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, []string{"handoff", "search"}, cfg.AlwaysOnTools)

	// untouched keys keep their defaults
	def := DefaultConfig()
	assert.Equal(t, def.Guideline.BatchSize, cfg.Guideline.BatchSize)
	assert.Equal(t, def.ToolCall.MinScore, cfg.ToolCall.MinScore)
	assert.Equal(t, def.Retry.MaxAttempts, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1, cfg.Structured.CorrectiveRetries)

	assert.Equal(t, logging.LogLevelDebug, logging.ParseLevel(cfg.LogLevel))
	assert.NotNil(t, NewLoggerFromConfig(cfg))
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad duration", "turn_timeout: soon", "parse config"},
		{"zero timeout", "turn_timeout: 0s", "turn_timeout must be positive"},
		{"score range", "guideline:\n  min_score: 11", "guideline.min_score"},
		{"batch size", "guideline:\n  batch_size: 0", "guideline.batch_size"},
		{"retries", "structured:\n  corrective_retries: -1", "corrective_retries"},
		{"attempts", "retry:\n  max_attempts: 0", "retry.max_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TurnTimeout = 0
	cfg.ToolCall.MaxConcurrency = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "turn_timeout")
	assert.Contains(t, err.Error(), "toolcall.max_concurrency")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turnmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("toolcall:\n  min_score: 4\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.ToolCall.MinScore)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
