// Package consumer is the Consumer Tool Dispatcher (C7): it hands a
// consumer-classified tool call off to an external SDK by emitting a
// tool-call manifest event, parking the Run in pending_action, and
// polling an ActionStore until the call is resolved, the Run reaches
// a terminal status, or max_wait elapses.
//
// The poll/handoff shape is the teacher's async-job pattern generalized
// one level further: internal/agent/loop.go's queueAsyncJob creates a
// jobs.Job and polls an in-process jobs.Store; here the "job" is
// resolved by code outside this process entirely (the consumer
// application calling back to submit a tool output), so the dispatcher
// polls an injected ActionStore instead of running the tool itself.
package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/nexus-core/internal/toolrouter"
	"github.com/haasonsaas/nexus-core/pkg/models"
)

const (
	defaultPollInterval = time.Second
	defaultMaxWait       = 60 * time.Second
)

// ActionStore is the subset of internal/store.Actions the dispatcher
// needs: create the pending Action, then repeatedly check whether it
// has since been resolved.
type ActionStore interface {
	CreateAction(ctx context.Context, action *models.Action) error
	GetAction(ctx context.Context, id string) (*models.Action, error)
}

// RunStatusReader lets the dispatcher observe the Run's own status so
// it can abort a poll when the Run itself goes terminal (e.g. the user
// cancelled the conversation while a consumer tool was outstanding).
type RunStatusReader interface {
	GetRun(ctx context.Context, id string) (*models.Run, error)
}

// Options configures a Dispatcher's polling behavior.
type Options struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.MaxWait <= 0 {
		o.MaxWait = defaultMaxWait
	}
	return o
}

// Dispatcher hands consumer tool calls off to an external SDK.
type Dispatcher struct {
	actions ActionStore
	runs    RunStatusReader
	opts    Options
}

// New creates a Dispatcher.
func New(actions ActionStore, runs RunStatusReader, opts Options) *Dispatcher {
	return &Dispatcher{actions: actions, runs: runs, opts: opts.withDefaults()}
}

// TimeoutError is returned when max_wait elapses before the consumer
// submits a tool output.
type TimeoutError struct {
	ActionID string
	Waited   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("consumer dispatcher: action %s timed out after %s", e.ActionID, e.Waited)
}

// AbortedError is returned when the owning Run reaches a terminal
// status while a consumer call is still outstanding.
type AbortedError struct {
	RunID  string
	Status models.RunStatus
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("consumer dispatcher: run %s went terminal (%s) while awaiting action output", e.RunID, e.Status)
}

// Dispatch creates the Action, emits a tool_call_manifest event, then
// polls until the Action resolves, the Run goes terminal, or max_wait
// elapses. On success it returns a tool_output_received event.
// Per spec §4.9, the orchestrator does not re-invoke the provider on
// return — callers must stop the turn loop, not continue it.
func (d *Dispatcher) Dispatch(ctx context.Context, runID string, call *toolrouter.Call) (manifest models.Event, result models.Event, err error) {
	action := &models.Action{
		ID:         call.ID,
		RunID:      runID,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Kind:       models.ToolKindConsumer,
		Status:     models.ActionStatusPendingAction,
		Arguments:  call.Arguments,
		CreatedAt:  time.Now(),
	}
	if err := d.actions.CreateAction(ctx, action); err != nil {
		return models.Event{}, models.Event{}, fmt.Errorf("consumer dispatcher: create action: %w", err)
	}

	manifest = models.Event{
		Type:      models.EventToolCallManifest,
		RunID:     runID,
		ActionID:  action.ID,
		ToolName:  call.Name,
		Arguments: call.Arguments,
		Timestamp: time.Now(),
	}

	result, err = d.poll(ctx, runID, action.ID)
	return manifest, result, err
}

func (d *Dispatcher) poll(ctx context.Context, runID, actionID string) (models.Event, error) {
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	deadline := time.Now().Add(d.opts.MaxWait)
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return models.Event{}, ctx.Err()
		case <-ticker.C:
		}

		action, err := d.actions.GetAction(ctx, actionID)
		if err != nil {
			return models.Event{}, fmt.Errorf("consumer dispatcher: get action %s: %w", actionID, err)
		}
		if action.Status.IsTerminal() {
			if action.Status == models.ActionStatusFailed {
				return models.Event{}, fmt.Errorf("consumer dispatcher: action %s failed: %s", actionID, action.Output)
			}
			return models.Event{
				Type:       models.EventRunStatus,
				RunID:      runID,
				ActionID:   actionID,
				ToolCallID: action.ToolCallID,
				Status:     models.RunStatusCompleted,
				Timestamp:  time.Now(),
			}, nil
		}

		if d.runs != nil {
			run, err := d.runs.GetRun(ctx, runID)
			if err == nil && run.Status.IsTerminal() {
				return models.Event{}, &AbortedError{RunID: runID, Status: run.Status}
			}
		}

		if time.Now().After(deadline) {
			return models.Event{}, &TimeoutError{ActionID: actionID, Waited: time.Since(start)}
		}
	}
}
