package engine

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/turnmesh/logging"
)

// Config defines tuning parameters of the turn pipeline. Durations are
// written as Go duration strings ("30s", "500ms") in YAML.
type Config struct {
	// TurnTimeout is the time budget of a whole turn.
	TurnTimeout time.Duration `yaml:"turn_timeout"`
	// LogLevel is used by NewLoggerFromConfig (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	Guideline  GuidelineConfig  `yaml:"guideline"`
	ToolCall   ToolCallConfig   `yaml:"toolcall"`
	Retry      RetryConfig      `yaml:"retry"`
	Structured StructuredConfig `yaml:"structured"`
	Events     EventsConfig     `yaml:"events"`
	Indexing   IndexingConfig   `yaml:"indexing"`

	// AlwaysOnTools are evaluated on every turn, whether or not a proposed
	// guideline names them.
	AlwaysOnTools []string `yaml:"always_on_tools"`
}

// GuidelineConfig tunes the proposition engine.
type GuidelineConfig struct {
	MinScore       int           `yaml:"min_score"`
	BatchSize      int           `yaml:"batch_size"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
}

// ToolCallConfig tunes the staging engine.
type ToolCallConfig struct {
	MinScore       int           `yaml:"min_score"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
}

// RetryConfig tunes the transport retry schedule of the generator.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// StructuredConfig tunes the structured output pipeline.
type StructuredConfig struct {
	CorrectiveRetries int `yaml:"corrective_retries"`
}

// EventsConfig tunes event emission.
type EventsConfig struct {
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// IndexingConfig tunes semantic pre-selection of guidelines. It only takes
// effect when an Indexer is configured.
type IndexingConfig struct {
	// TopK keeps the K guidelines most similar to the last user message.
	// Zero disables pre-selection.
	TopK int `yaml:"top_k"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		TurnTimeout: 60 * time.Second,
		LogLevel:    "info",
		Guideline: GuidelineConfig{
			MinScore:       7,
			BatchSize:      5,
			MaxConcurrency: 4,
			CallTimeout:    30 * time.Second,
		},
		ToolCall: ToolCallConfig{
			MinScore:       6,
			MaxConcurrency: 4,
			CallTimeout:    30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		Structured: StructuredConfig{CorrectiveRetries: 1},
		Events:     EventsConfig{SendTimeout: 5 * time.Second},
	}
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
// Keys absent from data keep their defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if c.TurnTimeout <= 0 {
		errs = append(errs, errors.New("turn_timeout must be positive"))
	}
	if c.Guideline.MinScore < 1 || c.Guideline.MinScore > 10 {
		errs = append(errs, fmt.Errorf("guideline.min_score must be within 1..10, got %d", c.Guideline.MinScore))
	}
	if c.Guideline.BatchSize < 1 {
		errs = append(errs, errors.New("guideline.batch_size must be at least 1"))
	}
	if c.Guideline.MaxConcurrency < 1 {
		errs = append(errs, errors.New("guideline.max_concurrency must be at least 1"))
	}
	if c.ToolCall.MinScore < 0 || c.ToolCall.MinScore > 10 {
		errs = append(errs, fmt.Errorf("toolcall.min_score must be within 0..10, got %d", c.ToolCall.MinScore))
	}
	if c.ToolCall.MaxConcurrency < 1 {
		errs = append(errs, errors.New("toolcall.max_concurrency must be at least 1"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Structured.CorrectiveRetries < 0 {
		errs = append(errs, errors.New("structured.corrective_retries must not be negative"))
	}
	if c.Indexing.TopK < 0 {
		errs = append(errs, errors.New("indexing.top_k must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// NewLoggerFromConfig builds a JSON TurnLogger at the configured level.
func NewLoggerFromConfig(c Config) *logging.TurnLogger {
	cfg := logging.DefaultLoggerConfig()
	cfg.Level = logging.ParseLevel(c.LogLevel)
	cfg.Component = "engine"
	return logging.NewLogger(cfg)
}
