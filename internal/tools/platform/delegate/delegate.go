// Package delegate is the Delegation Sub-Orchestrator (C11): the
// delegate_research_task platform tool. It is grounded directly on
// internal/tools/subagent/spawn.go's Manager.Spawn/runSubAgent
// (ephemeral session, task message, background run, best-effort
// announcer callback), generalized from "spawn a sub-agent session
// against the same runtime" into "create an ephemeral Assistant +
// Thread + Run and drive a full nested orchestration loop", returning
// only the last assistant message of the ephemeral thread as the
// parent Action's tool output.
package delegate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus-core/internal/agent"
	"github.com/haasonsaas/nexus-core/internal/store"
	"github.com/haasonsaas/nexus-core/pkg/models"
)

const defaultMaxActive = 5

// Runner is the subset of (*orchestrator.Orchestrator) this tool
// depends on, accepted as an interface to avoid an import cycle
// (internal/orchestrator will in turn wire this tool into its
// platform registry) and to keep the sub-orchestration boundary
// narrow and testable.
type Runner interface {
	ProcessConversation(ctx context.Context, thread *models.Thread, assistant *models.Assistant, run *models.Run, incoming *models.Message) <-chan models.Event
}

// Tool implements delegate_research_task. Each invocation spawns an
// ephemeral Thread + Run against the parent's provider/model, seeded
// with the requested task, and waits for it to finish before
// returning the sub-run's final answer.
type Tool struct {
	runner      Runner
	store       store.Store
	provider    string
	model       string
	maxActive   int
	activeCount int64
}

// New creates a delegate_research_task tool. provider/model are the
// credentials the sub-run streams against; typically the parent
// assistant's own.
func New(runner Runner, st store.Store, provider, model string, maxActive int) *Tool {
	if maxActive <= 0 {
		maxActive = defaultMaxActive
	}
	return &Tool{runner: runner, store: st, provider: provider, model: model, maxActive: maxActive}
}

// Name implements agent.Tool.
func (t *Tool) Name() string { return "delegate_research_task" }

// Description implements agent.Tool.
func (t *Tool) Description() string {
	return "Delegates a focused research or multi-step sub-task to an independent assistant run and returns its final answer."
}

// Schema implements agent.Tool.
func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task": {"type": "string", "description": "the sub-task to delegate, phrased as a complete instruction"}
		},
		"required": ["task"]
	}`)
}

type delegateArgs struct {
	Task string `json:"task"`
}

// Execute implements agent.Tool. It blocks until the ephemeral run
// completes, fails, or its own max_turns is exhausted.
func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if atomic.LoadInt64(&t.activeCount) >= int64(t.maxActive) {
		return &agent.ToolResult{Content: fmt.Sprintf("too many concurrent delegated tasks (max %d)", t.maxActive), IsError: true}, nil
	}

	var args delegateArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return &agent.ToolResult{Content: "invalid arguments: " + err.Error(), IsError: true}, nil
	}
	if args.Task == "" {
		return &agent.ToolResult{Content: "task is required", IsError: true}, nil
	}

	atomic.AddInt64(&t.activeCount, 1)
	defer atomic.AddInt64(&t.activeCount, -1)

	now := time.Now()
	thread := &models.Thread{ID: "subrun-" + uuid.NewString(), Title: "delegated: " + args.Task, CreatedAt: now, UpdatedAt: now}
	if err := t.store.CreateThread(ctx, thread); err != nil {
		return nil, fmt.Errorf("delegate: create ephemeral thread: %w", err)
	}

	// Never persisted: the sub-run only needs these fields in memory to
	// drive stream(), and spec.md scopes delegation to "only the final
	// answer crosses back to the parent" — the ephemeral assistant row
	// itself is not a durable entity.
	assistant := &models.Assistant{
		ID:           "subassistant-" + uuid.NewString(),
		Name:         "research-subagent",
		Instructions: "You are a focused research sub-agent. Complete the given task directly and concisely; do not ask clarifying questions.",
		Model:        t.model,
		Provider:     t.provider,
	}

	run := &models.Run{
		ID:          "subrun-" + uuid.NewString(),
		ThreadID:    thread.ID,
		AssistantID: assistant.ID,
		Status:      models.RunStatusQueued,
		Model:       t.model,
		MaxTurns:    10,
		CreatedAt:   now,
	}
	if err := t.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("delegate: create ephemeral run: %w", err)
	}

	incoming := &models.Message{Role: models.RoleUser, Content: args.Task, CreatedAt: now}

	for range t.runner.ProcessConversation(ctx, thread, assistant, run, incoming) {
		// The sub-run's own content/reasoning/tool traffic is internal;
		// only its final assistant message is surfaced to the parent.
	}

	messages, err := t.store.GetMessages(ctx, thread.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("delegate: load ephemeral thread result: %w", err)
	}

	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleAssistant {
			return &agent.ToolResult{Content: messages[i].Content}, nil
		}
	}

	return &agent.ToolResult{Content: "delegated task produced no answer", IsError: true}, nil
}
