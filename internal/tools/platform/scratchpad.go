// Package platform's scratchpad tools: read_scratchpad,
// update_scratchpad, append_scratchpad. A thread-scoped mutable note
// pad an assistant can use to stash working state across turns.
//
// Grounded on internal/tools/subagent's shared-state-via-manager
// pattern (a central Manager holding per-entity state behind a mutex,
// mutated by tools that only see an opaque id); the manager here is
// scoped per-thread rather than per-parent-session, resolving Open
// Question #1 in favor of per-thread scope (see DESIGN.md): a
// scratchpad created by one run must be visible to the next run on
// the same thread, so it cannot be scoped to a single Run.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/haasonsaas/nexus-core/internal/agent"
)

// ScratchpadManager holds one scratchpad per thread.
type ScratchpadManager struct {
	mu    sync.RWMutex
	pads  map[string]string
}

// NewScratchpadManager creates an empty manager.
func NewScratchpadManager() *ScratchpadManager {
	return &ScratchpadManager{pads: map[string]string{}}
}

func (m *ScratchpadManager) read(threadID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pads[threadID]
}

func (m *ScratchpadManager) update(threadID, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pads[threadID] = content
}

func (m *ScratchpadManager) append(threadID, entry string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pads[threadID] == "" {
		m.pads[threadID] = entry
	} else {
		m.pads[threadID] = strings.TrimRight(m.pads[threadID], "\n") + "\n" + entry
	}
	return m.pads[threadID]
}

// IsScratchpadTool reports whether name is one of the three scratchpad
// operations, so the orchestrator knows to surface a
// models.EventScratchpadStatus alongside the usual tool_result event.
func IsScratchpadTool(name string) bool {
	switch name {
	case "read_scratchpad", "update_scratchpad", "append_scratchpad":
		return true
	default:
		return false
	}
}

// scratchpadArgs is the common parameter shape across all three
// scratchpad operations.
type scratchpadArgs struct {
	ThreadID string `json:"thread_id"`
	Content  string `json:"content,omitempty"`
}

// ReadScratchpadTool reads the thread's current scratchpad content.
type ReadScratchpadTool struct {
	manager     *ScratchpadManager
	assistantID string
}

// NewReadScratchpadTool creates a ReadScratchpadTool bound to a
// manager and the owning assistant id (used only for the status
// event, not for pad scoping).
func NewReadScratchpadTool(manager *ScratchpadManager, assistantID string) *ReadScratchpadTool {
	return &ReadScratchpadTool{manager: manager, assistantID: assistantID}
}

func (t *ReadScratchpadTool) Name() string        { return "read_scratchpad" }
func (t *ReadScratchpadTool) Description() string { return "Read the current contents of this thread's scratchpad." }
func (t *ReadScratchpadTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"thread_id":{"type":"string"}},"required":["thread_id"]}`)
}

func (t *ReadScratchpadTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var args scratchpadArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	content := t.manager.read(args.ThreadID)
	return &agent.ToolResult{Content: content}, nil
}

// UpdateScratchpadTool overwrites the thread's scratchpad content.
type UpdateScratchpadTool struct {
	manager     *ScratchpadManager
	assistantID string
}

// NewUpdateScratchpadTool creates an UpdateScratchpadTool.
func NewUpdateScratchpadTool(manager *ScratchpadManager, assistantID string) *UpdateScratchpadTool {
	return &UpdateScratchpadTool{manager: manager, assistantID: assistantID}
}

func (t *UpdateScratchpadTool) Name() string { return "update_scratchpad" }
func (t *UpdateScratchpadTool) Description() string {
	return "Replace this thread's scratchpad with new content."
}
func (t *UpdateScratchpadTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"thread_id":{"type":"string"},"content":{"type":"string"}},"required":["thread_id","content"]}`)
}

func (t *UpdateScratchpadTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var args scratchpadArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	t.manager.update(args.ThreadID, args.Content)
	return &agent.ToolResult{Content: fmt.Sprintf("scratchpad updated (%d chars)", len(args.Content))}, nil
}

// AppendScratchpadTool appends a new entry to the thread's
// scratchpad.
type AppendScratchpadTool struct {
	manager     *ScratchpadManager
	assistantID string
}

// NewAppendScratchpadTool creates an AppendScratchpadTool.
func NewAppendScratchpadTool(manager *ScratchpadManager, assistantID string) *AppendScratchpadTool {
	return &AppendScratchpadTool{manager: manager, assistantID: assistantID}
}

func (t *AppendScratchpadTool) Name() string { return "append_scratchpad" }
func (t *AppendScratchpadTool) Description() string {
	return "Append a new entry to this thread's scratchpad."
}
func (t *AppendScratchpadTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"thread_id":{"type":"string"},"content":{"type":"string"}},"required":["thread_id","content"]}`)
}

func (t *AppendScratchpadTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var args scratchpadArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	full := t.manager.append(args.ThreadID, args.Content)
	return &agent.ToolResult{Content: fmt.Sprintf("appended. scratchpad is now %d chars", len(full))}, nil
}
