package models

import (
	"encoding/json"
	"time"
)

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusExpired        RunStatus = "expired"
)

// IsTerminal reports whether a run in this status will never transition
// again. Mirrors the teacher's jobs.Status terminality convention.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired:
		return true
	default:
		return false
	}
}

// ActionStatus is the lifecycle state of an Action (a single tool
// invocation within a Run).
type ActionStatus string

const (
	ActionStatusInProgress     ActionStatus = "in_progress"
	ActionStatusPendingAction  ActionStatus = "pending_action"
	ActionStatusCompleted      ActionStatus = "completed"
	ActionStatusFailed         ActionStatus = "failed"
	ActionStatusCancelled      ActionStatus = "cancelled"
	ActionStatusExpired        ActionStatus = "expired"
)

// IsTerminal reports whether an Action in this status will never
// transition again.
func (s ActionStatus) IsTerminal() bool {
	switch s {
	case ActionStatusCompleted, ActionStatusFailed, ActionStatusCancelled, ActionStatusExpired:
		return true
	default:
		return false
	}
}

// ToolKind distinguishes platform (executed in-process by this core)
// tools from consumer (handed off to the calling application) tools.
type ToolKind string

const (
	ToolKindPlatform ToolKind = "platform"
	ToolKindConsumer ToolKind = "consumer"
)

// Thread groups an ordered sequence of Messages belonging to one
// conversation. A Thread may have at most one active (non-terminal) Run.
type Thread struct {
	ID          string         `json:"id"`
	AssistantID string         `json:"assistant_id"`
	Title       string         `json:"title,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Assistant is a configured persona: system instructions, default
// model, and the tool manifest available to it.
type Assistant struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Instructions string         `json:"instructions,omitempty"`
	Model        string         `json:"model"`
	Provider     string         `json:"provider"`
	Tools        []Tool         `json:"tools,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Tool is a single tool definition exposed to the model, tagged with
// the routing Kind the Tool Router uses to dispatch calls to it.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Kind        ToolKind        `json:"kind"`
}

// Run is one execution of an Assistant against a Thread: it owns every
// Action taken while driving the turn loop to completion.
type Run struct {
	ID             string         `json:"id"`
	ThreadID       string         `json:"thread_id"`
	AssistantID    string         `json:"assistant_id"`
	Status         RunStatus      `json:"status"`
	Model          string         `json:"model"`
	Instructions   string         `json:"instructions,omitempty"`
	MaxTurns       int            `json:"max_turns"`
	TurnCount      int            `json:"turn_count"`
	LastError      string         `json:"last_error,omitempty"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// RequiredAction describes the consumer tool call(s) a Run is blocked
// on while status == requires_action.
type RequiredAction struct {
	Type            string           `json:"type"`
	ToolCallManifest []PendingToolCall `json:"tool_call_manifest"`
}

// PendingToolCall is one entry in a RequiredAction manifest.
type PendingToolCall struct {
	ID        string          `json:"id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Action is a single tool invocation performed during a Run, whether
// executed in-process (platform) or handed off to the caller (consumer).
type Action struct {
	ID          string          `json:"id"`
	RunID       string          `json:"run_id"`
	ToolCallID  string          `json:"tool_call_id"`
	ToolName    string          `json:"tool_name"`
	Kind        ToolKind        `json:"kind"`
	Status      ActionStatus    `json:"status"`
	Arguments   json.RawMessage `json:"arguments,omitempty"`
	Output      string          `json:"output,omitempty"`
	IsError     bool            `json:"is_error,omitempty"`
	Decision    map[string]any  `json:"decision,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// EventType discriminates the canonical stream Event payload.
type EventType string

const (
	EventContent        EventType = "content"
	EventReasoning       EventType = "reasoning"
	EventToolName        EventType = "tool_name"
	EventCallArguments   EventType = "call_arguments"
	EventToolCall        EventType = "tool_call"
	EventToolResult      EventType = "tool_result"
	EventRunStatus       EventType = "run_status"
	EventHotCode         EventType = "hot_code"
	EventDecision        EventType = "decision"
	EventError           EventType = "error"
	EventDone            EventType = "done"
	EventToolCallManifest EventType = "tool_call_manifest"
	EventScratchpadStatus EventType = "scratchpad_status"
)

// Event is the single canonical stream event emitted by the Delta
// Normalizer and consumed by every downstream component (Stream
// Fan-Out, the Orchestrator Loop's tool classification, and ultimately
// the caller). Go has no native tagged union; Type discriminates which
// of the optional fields below is populated, matching the pattern used
// throughout pkg/models/runtime_event.go and pkg/models/agent_event.go.
type Event struct {
	Type       EventType       `json:"type"`
	RunID      string          `json:"run_id"`
	Delta      string          `json:"delta,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Result     *ToolResult     `json:"result,omitempty"`
	Status     RunStatus       `json:"status,omitempty"`
	Error      string          `json:"error,omitempty"`
	ActionID   string          `json:"action_id,omitempty"`
	Scratchpad *ScratchpadStatus `json:"scratchpad,omitempty"`
	Sequence   int64           `json:"sequence"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ScratchpadStatus mirrors spec §4.6's scratchpad_status event payload,
// carried on an Event of type EventScratchpadStatus after a scratchpad
// tool call.
type ScratchpadStatus struct {
	Operation   string `json:"operation"`
	State       string `json:"state"`
	Entry       string `json:"entry,omitempty"`
	AssistantID string `json:"assistant_id"`
}
