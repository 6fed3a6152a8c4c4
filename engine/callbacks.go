package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/logging"
	"github.com/hupe1980/turnmesh/toolcall"
)

// CallbackType defines the lifecycle points of a turn where callbacks run.
type CallbackType string

const (
	// CallbackBeforePropose runs after guidelines are loaded, before the
	// proposition engine starts.
	CallbackBeforePropose CallbackType = "before_propose"

	// CallbackAfterPropose runs once propositions are known.
	CallbackAfterPropose CallbackType = "after_propose"

	// CallbackBeforeStage runs after candidate tools are resolved.
	CallbackBeforeStage CallbackType = "before_stage"

	// CallbackAfterStage runs once the staging result is known.
	CallbackAfterStage CallbackType = "after_stage"

	// CallbackOnError runs when the turn fails. Its own error is ignored.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the turn state visible at a callback point.
// Fields not yet known at that point are zero.
type CallbackContext struct {
	Type          CallbackType
	Turn          core.TurnContext
	CorrelationID string
	Guidelines    []core.Guideline
	Propositions  []core.GuidelineProposition
	Tools         []string
	Staging       *toolcall.Result
	Err           error
}

// Callback is a hook bound to one lifecycle point.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cc *CallbackContext) error
}

// FunctionCallback adapts a function to the Callback interface.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cc *CallbackContext) error
}

// NewFunctionCallback creates a callback running fn at callbackType.
func NewFunctionCallback(callbackType CallbackType, fn func(ctx context.Context, cc *CallbackContext) error) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, cc *CallbackContext) error {
	return c.fn(ctx, cc)
}

// CallbackManager holds callbacks by type. Registration is safe while
// turns are running.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// RegisterCallback appends callback to its type's list.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks[callback.Type()] = append(cm.callbacks[callback.Type()], callback)
}

// ExecuteCallbacks runs the callbacks of cc.Type in registration order and
// stops at the first error. A nil manager runs nothing.
func (cm *CallbackManager) ExecuteCallbacks(ctx context.Context, cc *CallbackContext) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := cm.callbacks[cc.Type]
	cm.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, cc); err != nil {
			return err
		}
	}
	return nil
}

// LoggingCallback writes one debug entry per lifecycle point.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging callback for callbackType.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{callbackType: callbackType, logger: logging.OrNoOp(logger)}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	args := []any{
		"callback", string(cc.Type),
		"turn_id", cc.Turn.ID,
		"correlation_id", cc.CorrelationID,
		"guidelines", len(cc.Guidelines),
		"propositions", len(cc.Propositions),
		"tools", len(cc.Tools),
	}
	if cc.Staging != nil {
		args = append(args, "staged", len(cc.Staging.Staged))
	}
	if cc.Err != nil {
		args = append(args, "error", cc.Err.Error())
	}
	c.logger.Debug("engine.callback", args...)
	return nil
}
