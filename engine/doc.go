// Package engine implements turn orchestration for turnmesh.
//
// The Engine runs one agent turn end to end. It opens the turn's
// correlation scope and time budget, proposes the guidelines that apply,
// stages the tool calls those guidelines enable, and relays progress to the
// caller as emitted events.
//
// # Turn Flow
//
//  1. Enter scope "turn-<id>" and start the turn budget (Config.TurnTimeout)
//  2. Emit status "acknowledged"
//  3. Load guidelines from the GuidelineStore, optionally narrowed by the
//     semantic index, and emit status "processing"
//  4. In scope "guideline-eval", run the proposition engine
//  5. Resolve candidate tools: tools named by proposed guidelines plus
//     Config.AlwaysOnTools, looked up in the tool store
//  6. In scope "tool-eval", run the staging engine and emit staged calls as
//     a tool event
//  7. Emit status "ready"
//
// Any failure emits status "error" before ProcessTurn returns. Every step
// consults the same budget; once it has expired no new step starts and
// ProcessTurn returns core.ErrBudgetExhausted together with whatever was
// already decided.
//
// # Configuration
//
// Engine behavior is tuned by Config, which can be loaded from YAML:
//
//	turn_timeout: 45s
//	log_level: info
//	guideline:
//	  min_score: 7
//	  batch_size: 5
//	  max_concurrency: 4
//	toolcall:
//	  min_score: 6
//	retry:
//	  max_attempts: 3
//	  initial_interval: 500ms
//	always_on_tools: [handoff]
//
// # Callbacks
//
// A CallbackManager hooks custom logic into the turn lifecycle (before and
// after proposition and staging, and on error). Callbacks run synchronously
// in registration order; a returned error aborts the turn.
//
// # Usage
//
//	eng := engine.New(
//	    model.GeneratorFunc(...),
//	    store.NewInMemoryGuidelineStore(guidelines...),
//	    store.NewInMemoryToolStore(tools...),
//	    event.NewChannelTransport(64),
//	    func(o *engine.Options) { o.Config = cfg },
//	)
//
//	res, err := eng.ProcessTurn(ctx, turn)
//	if err != nil {
//	    return err
//	}
//	for _, call := range res.Staged {
//	    // execute call
//	}
package engine
