// Package platform hosts the concrete C6 platform tool handlers
// (code_interpreter, computer, shell, the web tools, file_search,
// scratchpad, record_tool_decision, delegate_research_task) and the
// common dispatch protocol spec §4.6 describes for all of them:
// create an Action, announce in_progress, execute, then submit the
// tool output and mark the Action terminal.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/nexus-core/internal/agent"
	"github.com/haasonsaas/nexus-core/internal/store"
	"github.com/haasonsaas/nexus-core/internal/toolrouter"
	"github.com/haasonsaas/nexus-core/pkg/models"
)

// Registry looks up a platform Tool by its canonical name.
type Registry struct {
	tools map[string]agent.Tool
}

// NewRegistry builds a Registry from a set of tools, keyed by Name().
func NewRegistry(tools ...agent.Tool) *Registry {
	r := &Registry{tools: make(map[string]agent.Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (agent.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Register adds or replaces a tool in the registry. Used for tools
// that depend on the Dispatcher/Registry already existing, such as
// delegate_research_task's dependency on a constructed Orchestrator.
func (r *Registry) Register(tool agent.Tool) {
	r.tools[tool.Name()] = tool
}

// StreamingTool is implemented by platform tools that emit intermediate
// canonical events while running instead of only a single terminal
// ToolResult. code_interpreter is the only spec §4.6 tool that needs
// this: it streams hot_code (the composed code) and content (captured
// output) rather than just a final summary.
type StreamingTool interface {
	agent.Tool
	ExecuteStreaming(ctx context.Context, params json.RawMessage, emit func(models.Event)) (*agent.ToolResult, error)
}

// Dispatcher runs the common platform-tool protocol against a
// Registry, emitting the canonical events a caller mirrors to the
// client and to Stream Fan-Out.
type Dispatcher struct {
	registry *Registry
	actions  store.Actions
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(registry *Registry, actions store.Actions) *Dispatcher {
	return &Dispatcher{registry: registry, actions: actions}
}

// Run executes one platform tool call end-to-end: create Action
// (pending) -> in_progress event -> Execute -> completed/failed Action
// -> tool_result event carrying the message to append to the thread.
// record_tool_decision is special-cased per spec §4.6: no Action is
// created and nothing is submitted as a tool output.
func (d *Dispatcher) Run(ctx context.Context, runID string, call *toolrouter.Call, emit func(models.Event)) (models.ToolResult, error) {
	if IsTelemetryOnly(call.Name) {
		tool, ok := d.registry.Get(call.Name)
		if !ok {
			return models.ToolResult{}, fmt.Errorf("platform: %s not registered", call.Name)
		}
		if _, err := tool.Execute(ctx, call.Arguments); err != nil {
			return models.ToolResult{}, fmt.Errorf("platform: record_tool_decision: %w", err)
		}
		emit(models.Event{
			Type:       models.EventDecision,
			RunID:      runID,
			ToolCallID: call.ID,
			Delta:      string(call.Arguments),
			Timestamp:  time.Now(),
		})
		return models.ToolResult{}, nil
	}

	tool, ok := d.registry.Get(call.Name)
	if !ok {
		return models.ToolResult{ToolCallID: call.ID, Content: "unknown platform tool: " + call.Name, IsError: true},
			d.failAction(ctx, runID, call, "unknown platform tool: "+call.Name)
	}

	action := &models.Action{
		ID:         call.ID,
		RunID:      runID,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Kind:       models.ToolKindPlatform,
		Status:     models.ActionStatusInProgress,
		Arguments:  call.Arguments,
		CreatedAt:  time.Now(),
	}
	if err := d.actions.CreateAction(ctx, action); err != nil {
		return models.ToolResult{}, fmt.Errorf("platform: create action: %w", err)
	}

	emit(models.Event{
		Type:       models.EventRunStatus,
		RunID:      runID,
		ActionID:   action.ID,
		ToolCallID: call.ID,
		Status:     models.RunStatusInProgress,
		Timestamp:  time.Now(),
	})

	var result *agent.ToolResult
	var err error
	if st, ok := tool.(StreamingTool); ok {
		result, err = st.ExecuteStreaming(ctx, call.Arguments, func(e models.Event) {
			if e.RunID == "" {
				e.RunID = runID
			}
			if e.ActionID == "" {
				e.ActionID = action.ID
			}
			if e.ToolCallID == "" {
				e.ToolCallID = call.ID
			}
			if e.Timestamp.IsZero() {
				e.Timestamp = time.Now()
			}
			emit(e)
		})
	} else {
		result, err = tool.Execute(ctx, call.Arguments)
	}
	now := time.Now()
	if err != nil {
		action.Status = models.ActionStatusFailed
		action.Output = err.Error()
		action.IsError = true
		action.CompletedAt = &now
		_ = d.actions.UpdateAction(ctx, action)
		return models.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}, nil
	}

	action.Output = result.Content
	action.IsError = result.IsError
	action.CompletedAt = &now
	if result.IsError {
		action.Status = models.ActionStatusFailed
	} else {
		action.Status = models.ActionStatusCompleted
	}
	if err := d.actions.UpdateAction(ctx, action); err != nil {
		return models.ToolResult{}, fmt.Errorf("platform: update action: %w", err)
	}

	if IsScratchpadTool(call.Name) {
		emit(models.Event{
			Type:       models.EventScratchpadStatus,
			RunID:      runID,
			ActionID:   action.ID,
			ToolCallID: call.ID,
			Timestamp:  now,
			Scratchpad: scratchpadStatusFor(call, result),
		})
	}

	return models.ToolResult{ToolCallID: call.ID, Content: result.Content, IsError: result.IsError}, nil
}

// scratchpadStatusFor builds the scratchpad_status payload for a
// completed scratchpad tool call. Entry is only populated for
// append_scratchpad, the only operation that adds rather than
// replaces or merely reads content.
func scratchpadStatusFor(call *toolrouter.Call, result *agent.ToolResult) *models.ScratchpadStatus {
	state := "completed"
	if result.IsError {
		state = "failed"
	}
	status := &models.ScratchpadStatus{
		Operation: strings.TrimSuffix(call.Name, "_scratchpad"),
		State:     state,
	}
	if call.Name == "append_scratchpad" {
		var args scratchpadArgs
		if err := json.Unmarshal(call.Arguments, &args); err == nil {
			status.Entry = args.Content
		}
	}
	return status
}

func (d *Dispatcher) failAction(ctx context.Context, runID string, call *toolrouter.Call, message string) error {
	now := time.Now()
	action := &models.Action{
		ID:          call.ID,
		RunID:       runID,
		ToolCallID:  call.ID,
		ToolName:    call.Name,
		Kind:        models.ToolKindPlatform,
		Status:      models.ActionStatusFailed,
		Arguments:   call.Arguments,
		Output:      message,
		IsError:     true,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	return d.actions.CreateAction(ctx, action)
}
