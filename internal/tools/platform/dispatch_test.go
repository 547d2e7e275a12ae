package platform

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/haasonsaas/nexus-core/internal/agent"
	"github.com/haasonsaas/nexus-core/internal/toolrouter"
	"github.com/haasonsaas/nexus-core/pkg/models"
)

var errActionNotFound = errors.New("action not found")

type echoTool struct {
	name string
	fail bool
}

func (t *echoTool) Name() string            { return t.name }
func (t *echoTool) Description() string     { return "echoes input" }
func (t *echoTool) Schema() json.RawMessage { return json.RawMessage(`{}`) }
func (t *echoTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if t.fail {
		return &agent.ToolResult{Content: "boom", IsError: true}, nil
	}
	return &agent.ToolResult{Content: string(params)}, nil
}

type memActions struct {
	mu      sync.Mutex
	actions map[string]*models.Action
}

func newMemActions() *memActions {
	return &memActions{actions: map[string]*models.Action{}}
}

func (m *memActions) CreateAction(ctx context.Context, a *models.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.actions[a.ID] = &cp
	return nil
}

func (m *memActions) GetAction(ctx context.Context, id string) (*models.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return nil, errActionNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memActions) UpdateAction(ctx context.Context, a *models.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.actions[a.ID] = &cp
	return nil
}

func (m *memActions) ListActionsForRun(ctx context.Context, runID string) ([]*models.Action, error) {
	return nil, nil
}

func TestDispatcher_RunSuccess(t *testing.T) {
	actions := newMemActions()
	reg := NewRegistry(&echoTool{name: "code_interpreter"})
	d := NewDispatcher(reg, actions)

	var events []models.Event
	call := &toolrouter.Call{ID: "call_1", Name: "code_interpreter", Arguments: json.RawMessage(`{"code":"1+1"}`), Class: toolrouter.Platform}

	result, err := d.Run(context.Background(), "run1", call, func(e models.Event) { events = append(events, e) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %+v", result)
	}
	if len(events) != 1 || events[0].Status != models.RunStatusInProgress {
		t.Fatalf("expected one in_progress event, got %+v", events)
	}

	action, err := actions.GetAction(context.Background(), "call_1")
	if err != nil {
		t.Fatalf("GetAction: %v", err)
	}
	if action.Status != models.ActionStatusCompleted {
		t.Fatalf("expected completed action, got %v", action.Status)
	}
}

func TestDispatcher_RunToolError(t *testing.T) {
	actions := newMemActions()
	reg := NewRegistry(&echoTool{name: "code_interpreter", fail: true})
	d := NewDispatcher(reg, actions)

	call := &toolrouter.Call{ID: "call_2", Name: "code_interpreter", Arguments: json.RawMessage(`{}`), Class: toolrouter.Platform}
	result, err := d.Run(context.Background(), "run1", call, func(models.Event) {})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}

	action, _ := actions.GetAction(context.Background(), "call_2")
	if action.Status != models.ActionStatusFailed {
		t.Fatalf("expected failed action, got %v", action.Status)
	}
}

func TestDispatcher_UnknownToolFailsAction(t *testing.T) {
	actions := newMemActions()
	reg := NewRegistry()
	d := NewDispatcher(reg, actions)

	call := &toolrouter.Call{ID: "call_3", Name: "nonexistent", Arguments: json.RawMessage(`{}`), Class: toolrouter.Platform}
	result, err := d.Run(context.Background(), "run1", call, func(models.Event) {})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown tool")
	}
}

func TestDispatcher_AppendScratchpadEmitsStatusEvent(t *testing.T) {
	actions := newMemActions()
	pads := NewScratchpadManager()
	reg := NewRegistry(NewAppendScratchpadTool(pads, "asst_1"))
	d := NewDispatcher(reg, actions)

	var events []models.Event
	call := &toolrouter.Call{
		ID:        "call_5",
		Name:      "append_scratchpad",
		Arguments: json.RawMessage(`{"thread_id":"t1","content":"remember this"}`),
		Class:     toolrouter.Platform,
	}

	if _, err := d.Run(context.Background(), "run1", call, func(e models.Event) { events = append(events, e) }); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var status *models.ScratchpadStatus
	for _, e := range events {
		if e.Type == models.EventScratchpadStatus {
			status = e.Scratchpad
		}
	}
	if status == nil {
		t.Fatal("expected a scratchpad_status event")
	}
	if status.Operation != "append" {
		t.Fatalf("expected operation %q, got %q", "append", status.Operation)
	}
	if status.State != "completed" {
		t.Fatalf("expected state %q, got %q", "completed", status.State)
	}
	if status.Entry != "remember this" {
		t.Fatalf("expected entry %q, got %q", "remember this", status.Entry)
	}
}

func TestDispatcher_ReadScratchpadStatusHasNoEntry(t *testing.T) {
	actions := newMemActions()
	pads := NewScratchpadManager()
	reg := NewRegistry(NewReadScratchpadTool(pads, "asst_1"))
	d := NewDispatcher(reg, actions)

	var events []models.Event
	call := &toolrouter.Call{
		ID:        "call_6",
		Name:      "read_scratchpad",
		Arguments: json.RawMessage(`{"thread_id":"t1"}`),
		Class:     toolrouter.Platform,
	}

	if _, err := d.Run(context.Background(), "run1", call, func(e models.Event) { events = append(events, e) }); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var status *models.ScratchpadStatus
	for _, e := range events {
		if e.Type == models.EventScratchpadStatus {
			status = e.Scratchpad
		}
	}
	if status == nil {
		t.Fatal("expected a scratchpad_status event")
	}
	if status.Operation != "read" {
		t.Fatalf("expected operation %q, got %q", "read", status.Operation)
	}
	if status.Entry != "" {
		t.Fatalf("expected empty entry for read, got %q", status.Entry)
	}
}

func TestDispatcher_RecordToolDecisionCreatesNoAction(t *testing.T) {
	actions := newMemActions()
	reg := NewRegistry(NewRecordToolDecisionTool(nil))
	d := NewDispatcher(reg, actions)

	call := &toolrouter.Call{ID: "call_4", Name: "record_tool_decision", Arguments: json.RawMessage(`{"chosen_tool":"file_search","reasoning":"need docs"}`), Class: toolrouter.Platform}
	_, err := d.Run(context.Background(), "run1", call, func(models.Event) {})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := actions.GetAction(context.Background(), "call_4"); err == nil {
		t.Fatal("expected no action to be created for record_tool_decision")
	}
}
