// Package orchestrator is the Orchestrator Loop (C9): the recursive
// turn driver that streams one assistant turn from a provider,
// classifies any tool calls it surfaces, dispatches them, and decides
// whether to re-enter the loop or hand the conversation back to the
// caller. It is the direct generalization of the teacher's
// internal/agent/loop.go AgenticLoop.Run state machine
// (PhaseInit -> PhaseStream -> PhaseExecuteTools ->
// PhaseContinue/PhaseComplete) into a provider-polymorphic, platform
// versus consumer tool split that the teacher's loop never needed.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/nexus-core/internal/agent"
	"github.com/haasonsaas/nexus-core/internal/history"
	"github.com/haasonsaas/nexus-core/internal/normalize"
	"github.com/haasonsaas/nexus-core/internal/orcerr"
	"github.com/haasonsaas/nexus-core/internal/orchestrator/cancel"
	"github.com/haasonsaas/nexus-core/internal/orchestrator/promptbuilder"
	"github.com/haasonsaas/nexus-core/internal/providerfactory"
	"github.com/haasonsaas/nexus-core/internal/retry"
	"github.com/haasonsaas/nexus-core/internal/store"
	"github.com/haasonsaas/nexus-core/internal/streamfanout"
	"github.com/haasonsaas/nexus-core/internal/toolrouter"
	"github.com/haasonsaas/nexus-core/internal/toolrouter/consumer"
	"github.com/haasonsaas/nexus-core/internal/tools/platform"
	"github.com/haasonsaas/nexus-core/pkg/models"
)

const (
	defaultMaxTurns        = 10
	platformTurnCooldown   = 500 * time.Millisecond
	cancellationPollPeriod = time.Second
)

// CredentialResolver looks up the API key and base URL to use for a
// provider name. Implementations typically read from internal/config.
type CredentialResolver interface {
	Resolve(provider string) (apiKey, baseURL string, err error)
}

// ProviderFactory is the subset of *providerfactory.Factory the
// Orchestrator depends on, accepted as an interface so tests can
// substitute a fake LLMProvider instead of building real SDK clients.
type ProviderFactory interface {
	Get(ctx context.Context, key providerfactory.Key) (agent.LLMProvider, error)
}

// Config tunes an Orchestrator. Zero values fall back to spec defaults.
type Config struct {
	// MaxTurns bounds the stream/dispatch recursion. Default 10.
	MaxTurns int

	// ProviderRetry configures retries around a single provider.Complete
	// call, absorbing transient upstream failures (rate limits,
	// connection resets) before they surface as a terminal
	// orcerr.UpstreamError. Zero value disables retries (one attempt).
	ProviderRetry retry.Config
}

func (c Config) withDefaults() Config {
	if c.MaxTurns <= 0 {
		c.MaxTurns = defaultMaxTurns
	}
	if c.ProviderRetry.MaxAttempts <= 0 {
		c.ProviderRetry.MaxAttempts = 1
	}
	return c
}

// Orchestrator wires together every upstream component (C1-C8) into
// the per-run turn loop spec.md §4.9 describes.
type Orchestrator struct {
	store       store.Store
	factory     ProviderFactory
	credentials CredentialResolver
	history     *history.Cache
	prompt      *promptbuilder.Truncator
	platform    *platform.Dispatcher
	consumer    *consumer.Dispatcher
	mirror      *streamfanout.Mirror
	logger      *slog.Logger
	cfg         Config
}

// New builds an Orchestrator from its component dependencies.
func New(
	st store.Store,
	factory ProviderFactory,
	credentials CredentialResolver,
	hist *history.Cache,
	prompt *promptbuilder.Truncator,
	plat *platform.Dispatcher,
	cons *consumer.Dispatcher,
	mirror *streamfanout.Mirror,
	logger *slog.Logger,
	cfg Config,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:       st,
		factory:     factory,
		credentials: credentials,
		history:     hist,
		prompt:      prompt,
		platform:    plat,
		consumer:    cons,
		mirror:      mirror,
		logger:      logger,
		cfg:         cfg.withDefaults(),
	}
}

// ProcessConversation drives run to completion (or hand-off to a
// consumer tool, or cancellation, or max-turns exhaustion), streaming
// canonical events on the returned channel. The channel is closed when
// the turn loop returns.
func (o *Orchestrator) ProcessConversation(ctx context.Context, thread *models.Thread, assistant *models.Assistant, run *models.Run, incoming *models.Message) <-chan models.Event {
	out := make(chan models.Event, 32)
	go o.drive(ctx, out, thread, assistant, run, incoming)
	return out
}

func (o *Orchestrator) drive(ctx context.Context, out chan<- models.Event, thread *models.Thread, assistant *models.Assistant, run *models.Run, incoming *models.Message) {
	defer close(out)

	o.emitStatus(out, run.ID, models.RunStatusInProgress)

	maxTurns := run.MaxTurns
	if maxTurns <= 0 {
		maxTurns = o.cfg.MaxTurns
	}

	apiKey, baseURL, err := o.credentials.Resolve(assistant.Provider)
	if err != nil {
		o.emit(out, run.ID, models.Event{Type: models.EventError, RunID: run.ID, Error: err.Error()})
		return
	}
	provider, err := o.factory.Get(ctx, providerfactory.Key{Provider: assistant.Provider, APIKey: apiKey, BaseURL: baseURL})
	if err != nil {
		o.emit(out, run.ID, models.Event{Type: models.EventError, RunID: run.ID, Error: err.Error()})
		return
	}

	message := incoming
	for turn := 1; turn <= maxTurns; turn++ {
		forceRefresh := turn > 1

		monitor := cancel.Watch(ctx, o.store, run.ID, cancellationPollPeriod)
		events, batch, streamErr := o.stream(ctx, thread, assistant, run, provider, message, forceRefresh)
		stopped := false
		for _, evt := range events {
			o.emit(out, run.ID, evt)
			if monitor.Stopped() {
				stopped = true
				break
			}
		}
		monitor.Stop()
		if stopped && o.runCancelled(ctx, run.ID) {
			o.updateRunStatus(ctx, run, models.RunStatusCancelled, "")
			o.emitStatus(out, run.ID, models.RunStatusCancelled)
			return
		}
		if streamErr != nil {
			o.updateRunStatus(ctx, run, models.RunStatusFailed, streamErr.Error())
			o.emitStatus(out, run.ID, models.RunStatusFailed)
			o.emit(out, run.ID, models.Event{Type: models.EventError, RunID: run.ID, Error: streamErr.Error()})
			return
		}

		if len(batch) == 0 {
			o.updateRunStatus(ctx, run, models.RunStatusCompleted, "")
			o.emitStatus(out, run.ID, models.RunStatusCompleted)
			return
		}

		hasConsumer := toolrouter.HasConsumer(batch)
		o.updateRunStatus(ctx, run, models.RunStatusRequiresAction, "")
		o.emitStatus(out, run.ID, models.RunStatusRequiresAction)

		for _, call := range batch {
			resultEvt, err := o.dispatchCall(ctx, thread, run, call, out)
			if err != nil {
				o.updateRunStatus(ctx, run, models.RunStatusFailed, err.Error())
				o.emitStatus(out, run.ID, models.RunStatusFailed)
				o.emit(out, run.ID, models.Event{Type: models.EventError, RunID: run.ID, Error: err.Error()})
				return
			}
			if resultEvt != nil {
				o.emit(out, run.ID, *resultEvt)
			}
		}

		if hasConsumer {
			// A consumer tool call is in flight (or was just resolved by
			// the consumer dispatcher's poll); the external SDK owns the
			// conversation from here, so this run stops without
			// re-invoking the provider.
			return
		}

		run.TurnCount = turn
		message = nil
		select {
		case <-ctx.Done():
			return
		case <-time.After(platformTurnCooldown):
		}
	}

	o.updateRunStatus(ctx, run, models.RunStatusFailed, "max turns reached")
	o.emitStatus(out, run.ID, models.RunStatusFailed)
	o.emit(out, run.ID, models.Event{Type: models.EventError, RunID: run.ID, Error: "max turns reached"})
}

// emitStatus mirrors a run_status envelope event onto the client stream,
// bracketing each turn per spec §8 invariant 1: one status(started)
// first, status(pending_action)/status(complete) at the turn boundaries
// Scenario A-C describe, and the run's terminal status last.
func (o *Orchestrator) emitStatus(out chan<- models.Event, runID string, status models.RunStatus) {
	o.emit(out, runID, models.Event{Type: models.EventRunStatus, RunID: runID, Status: status})
}

// stream performs one turn: build the prompt, call the provider,
// normalize its deltas, persist the resulting assistant message, and
// return the detected tool-call batch (empty if the turn produced only
// text).
func (o *Orchestrator) stream(ctx context.Context, thread *models.Thread, assistant *models.Assistant, run *models.Run, provider agent.LLMProvider, incoming *models.Message, forceRefresh bool) ([]models.Event, []*toolrouter.Call, error) {
	if forceRefresh {
		if err := o.history.Invalidate(ctx, thread.ID); err != nil {
			o.logger.Warn("orchestrator: history invalidate failed", "thread_id", thread.ID, "err", err)
		}
	}

	hist, err := o.history.Get(ctx, thread.ID, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("orchestrator: load history: %w", err)
	}

	if err := providerfactory.ValidateModel(assistant.Provider, run.Model); err != nil {
		return nil, nil, orcerr.NewValidationError("model", err.Error()).WithCause(err)
	}

	system, messages := o.prompt.Build(assistant, hist, incoming)

	req := &agent.CompletionRequest{
		Model:    run.Model,
		System:   system,
		Messages: messages,
	}
	var chunks <-chan *agent.CompletionChunk
	res := retry.Do(ctx, o.cfg.ProviderRetry, func() error {
		var completeErr error
		chunks, completeErr = provider.Complete(ctx, req)
		return completeErr
	})
	if res.Err != nil {
		return nil, nil, orcerr.NewUpstreamError(assistant.Provider, res.Err).
			WithMessage(fmt.Sprintf("failed after %d attempt(s)", res.Attempts))
	}

	norm := normalize.New(run.ID)
	var content, toolNameBuf, callArgsBuf string
	var nativeCalls []*models.ToolCall
	var events []models.Event

	for evt := range norm.Normalize(chunks) {
		switch evt.Type {
		case models.EventContent:
			content += evt.Delta
		case models.EventToolName:
			toolNameBuf += evt.Delta
		case models.EventCallArguments:
			callArgsBuf += evt.Delta
		case models.EventToolCall:
			nativeCalls = append(nativeCalls, &models.ToolCall{ID: evt.ToolCallID, Name: evt.ToolName, Input: evt.Arguments})
		case models.EventDone:
			// Normalize's own end-of-chunk-stream sentinel, not a
			// canonical event type the client-facing stream carries;
			// the turn's true envelope event is the run_status marker
			// drive() emits around the whole turn, not per chunk-stream.
			continue
		}
		events = append(events, evt)
	}

	batch := o.detectCalls(nativeCalls, toolNameBuf, callArgsBuf, content)

	if incoming != nil {
		if err := o.appendMessage(ctx, thread.ID, incoming); err != nil {
			return events, batch, fmt.Errorf("orchestrator: persist incoming message: %w", err)
		}
	}

	assistantMsg := &models.Message{
		Role:      models.RoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
	}
	for _, c := range batch {
		assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, toolrouter.ToToolCall(c))
	}
	if err := o.appendMessage(ctx, thread.ID, assistantMsg); err != nil {
		return events, batch, fmt.Errorf("orchestrator: persist assistant message: %w", err)
	}

	return events, batch, nil
}

// detectCalls turns whatever the normalizer surfaced for this turn
// into a classified tool-call batch. Native provider tool calls take
// priority; otherwise the accumulated text-mode buffers are handed to
// the Tool Router's text detector.
func (o *Orchestrator) detectCalls(nativeCalls []*models.ToolCall, toolNameBuf, callArgsBuf, content string) []*toolrouter.Call {
	var batch []*toolrouter.Call
	for _, nc := range nativeCalls {
		if call, ok := toolrouter.DetectNative(nc.Name, nc.Input); ok {
			batch = append(batch, call)
		}
	}
	if len(batch) > 0 {
		return batch
	}

	if callArgsBuf != "" {
		if call, ok := toolrouter.DetectText(callArgsBuf); ok {
			return append(batch, call)
		}
		if toolNameBuf != "" {
			if call, ok := toolrouter.DetectNative(toolNameBuf, []byte(callArgsBuf)); ok {
				return append(batch, call)
			}
		}
	}

	if call, ok := toolrouter.DetectText(content); ok {
		batch = append(batch, call)
	}
	return batch
}

// dispatchCall runs a single classified call through the platform
// dispatcher or hands it to the consumer dispatcher, returning the
// tool_result event to mirror upstream (nil for a consumer call still
// pending when Dispatch returns, since its manifest was already
// emitted).
func (o *Orchestrator) dispatchCall(ctx context.Context, thread *models.Thread, run *models.Run, call *toolrouter.Call, out chan<- models.Event) (*models.Event, error) {
	switch call.Class {
	case toolrouter.Consumer:
		manifest, result, err := o.consumer.Dispatch(ctx, run.ID, call)
		if err != nil {
			var timeout *consumer.TimeoutError
			if errors.As(err, &timeout) {
				return nil, orcerr.NewConsumerTimeout(call.Name, call.ID, timeout.ActionID, timeout.Waited.String())
			}
			return nil, err
		}
		o.emit(out, run.ID, manifest)

		// The Action was resolved by the external SDK, not by us; fetch
		// its recorded output so the resolved tool result can be
		// appended to the thread the same way a platform tool's would.
		action, err := o.store.GetAction(ctx, manifest.ActionID)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: load resolved action %s: %w", manifest.ActionID, err)
		}
		toolResult := models.ToolResult{ToolCallID: call.ID, Content: action.Output, IsError: action.IsError}
		result.Result = &toolResult
		if err := o.appendToolResultMessage(ctx, thread.ID, call, result); err != nil {
			return nil, err
		}
		return &result, nil
	default:
		result, err := o.platform.Run(ctx, run.ID, call, func(e models.Event) { o.emit(out, run.ID, e) })
		if err != nil {
			return nil, err
		}
		if platform.IsTelemetryOnly(call.Name) {
			// record_tool_decision never creates an Action and never
			// submits a tool output; nothing to mirror or append.
			return nil, nil
		}
		evt := models.Event{
			Type:       models.EventToolResult,
			RunID:      run.ID,
			ToolCallID: result.ToolCallID,
			Result:     &result,
		}
		if err := o.appendToolResultMessage(ctx, thread.ID, call, evt); err != nil {
			return nil, err
		}
		return &evt, nil
	}
}

func (o *Orchestrator) appendToolResultMessage(ctx context.Context, threadID string, call *toolrouter.Call, evt models.Event) error {
	if evt.Result == nil {
		return nil
	}
	msg := &models.Message{
		Role:        models.RoleTool,
		ToolResults: []models.ToolResult{*evt.Result},
		CreatedAt:   time.Now(),
	}
	return o.appendMessage(ctx, threadID, msg)
}

func (o *Orchestrator) appendMessage(ctx context.Context, threadID string, msg *models.Message) error {
	return o.history.Append(ctx, threadID, msg)
}

func (o *Orchestrator) emit(out chan<- models.Event, runID string, evt models.Event) {
	if evt.RunID == "" {
		evt.RunID = runID
	}
	o.mirror.Emit(context.Background(), evt)
	out <- evt
}

func (o *Orchestrator) runCancelled(ctx context.Context, runID string) bool {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return false
	}
	return run.Status == models.RunStatusCancelled || run.Status == models.RunStatusCancelling
}

func (o *Orchestrator) updateRunStatus(ctx context.Context, run *models.Run, status models.RunStatus, lastErr string) {
	run.Status = status
	if lastErr != "" {
		run.LastError = lastErr
	}
	if status.IsTerminal() {
		now := time.Now()
		run.CompletedAt = &now
	}
	if err := o.store.UpdateRun(ctx, run); err != nil {
		o.logger.Warn("orchestrator: update run status failed", "run_id", run.ID, "status", status, "err", err)
	}
}
