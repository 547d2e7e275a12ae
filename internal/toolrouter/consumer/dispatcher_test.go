package consumer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/haasonsaas/nexus-core/internal/toolrouter"
	"github.com/haasonsaas/nexus-core/pkg/models"
)

type memActionStore struct {
	mu      sync.Mutex
	actions map[string]*models.Action
}

func newMemActionStore() *memActionStore {
	return &memActionStore{actions: map[string]*models.Action{}}
}

func (s *memActionStore) CreateAction(ctx context.Context, action *models.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *action
	s.actions[action.ID] = &cp
	return nil
}

func (s *memActionStore) GetAction(ctx context.Context, id string) (*models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.actions[id]
	cp := *a
	return &cp, nil
}

func (s *memActionStore) resolve(id string, status models.ActionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[id].Status = status
}

type memRunReader struct {
	mu   sync.Mutex
	runs map[string]*models.Run
}

func newMemRunReader(runID string, status models.RunStatus) *memRunReader {
	return &memRunReader{runs: map[string]*models.Run{runID: {ID: runID, Status: status}}}
}

func (r *memRunReader) GetRun(ctx context.Context, id string) (*models.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.runs[id]
	return &cp, nil
}

func (r *memRunReader) setStatus(id string, status models.RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[id].Status = status
}

func testCall() *toolrouter.Call {
	return &toolrouter.Call{ID: "call_abc", Name: "get_weather", Arguments: json.RawMessage(`{"city":"nyc"}`), Class: toolrouter.Consumer}
}

func TestDispatch_EmitsManifestWithPendingStatus(t *testing.T) {
	actions := newMemActionStore()
	runs := newMemRunReader("run1", models.RunStatusInProgress)
	d := New(actions, runs, Options{PollInterval: 5 * time.Millisecond, MaxWait: time.Second})

	go func() {
		time.Sleep(20 * time.Millisecond)
		actions.resolve("call_abc", models.ActionStatusCompleted)
	}()

	manifest, result, err := d.Dispatch(context.Background(), "run1", testCall())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if manifest.Type != models.EventToolCallManifest {
		t.Fatalf("expected manifest event, got %v", manifest.Type)
	}
	if manifest.ToolName != "get_weather" || manifest.ActionID != "call_abc" {
		t.Fatalf("unexpected manifest fields: %+v", manifest)
	}
	if result.Status != models.RunStatusCompleted {
		t.Fatalf("expected completed result status, got %v", result.Status)
	}
}

func TestDispatch_TimesOut(t *testing.T) {
	actions := newMemActionStore()
	runs := newMemRunReader("run1", models.RunStatusInProgress)
	d := New(actions, runs, Options{PollInterval: 5 * time.Millisecond, MaxWait: 20 * time.Millisecond})

	_, _, err := d.Dispatch(context.Background(), "run1", testCall())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if _, ok := err.(*TimeoutError); !ok {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
}

func TestDispatch_AbortsWhenRunGoesTerminal(t *testing.T) {
	actions := newMemActionStore()
	runs := newMemRunReader("run1", models.RunStatusInProgress)
	d := New(actions, runs, Options{PollInterval: 5 * time.Millisecond, MaxWait: time.Second})

	go func() {
		time.Sleep(15 * time.Millisecond)
		runs.setStatus("run1", models.RunStatusCancelled)
	}()

	_, _, err := d.Dispatch(context.Background(), "run1", testCall())
	if err == nil {
		t.Fatal("expected abort error")
	}
	if _, ok := err.(*AbortedError); !ok {
		t.Fatalf("expected *AbortedError, got %T: %v", err, err)
	}
}

func TestDispatch_FailedActionReturnsError(t *testing.T) {
	actions := newMemActionStore()
	runs := newMemRunReader("run1", models.RunStatusInProgress)
	d := New(actions, runs, Options{PollInterval: 5 * time.Millisecond, MaxWait: time.Second})

	go func() {
		time.Sleep(10 * time.Millisecond)
		actions.resolve("call_abc", models.ActionStatusFailed)
	}()

	_, _, err := d.Dispatch(context.Background(), "run1", testCall())
	if err == nil {
		t.Fatal("expected error for failed action")
	}
}
