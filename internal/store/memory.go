package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus-core/pkg/models"
)

// MemoryStore is an in-memory Store implementation for local runs and
// tests, mirroring the teacher's own internal/sessions.MemoryStore.
type MemoryStore struct {
	mu         sync.RWMutex
	threads    map[string]*models.Thread
	messages   map[string][]*models.Message
	runs       map[string]*models.Run
	actions    map[string]*models.Action
	assistants map[string]*models.Assistant
}

// NewMemoryStore creates an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads:    map[string]*models.Thread{},
		messages:   map[string][]*models.Message{},
		runs:       map[string]*models.Run{},
		actions:    map[string]*models.Action{},
		assistants: map[string]*models.Assistant{},
	}
}

func (m *MemoryStore) CreateThread(ctx context.Context, thread *models.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	cp := *thread
	m.threads[thread.ID] = &cp
	return nil
}

func (m *MemoryStore) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.threads[id]
	if !ok {
		return nil, fmt.Errorf("store: thread %s not found", id)
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, threadID string, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	m.messages[threadID] = append(m.messages[threadID], msg)
	return nil
}

func (m *MemoryStore) GetMessages(ctx context.Context, threadID string, limit int) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[threadID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MemoryStore) CreateRun(ctx context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRun(ctx context.Context, id string) (*models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("store: run %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) UpdateRun(ctx context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return fmt.Errorf("store: run %s not found", run.ID)
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *MemoryStore) CreateAction(ctx context.Context, action *models.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	cp := *action
	m.actions[action.ID] = &cp
	return nil
}

func (m *MemoryStore) GetAction(ctx context.Context, id string) (*models.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actions[id]
	if !ok {
		return nil, fmt.Errorf("store: action %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) UpdateAction(ctx context.Context, action *models.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actions[action.ID]; !ok {
		return fmt.Errorf("store: action %s not found", action.ID)
	}
	cp := *action
	m.actions[action.ID] = &cp
	return nil
}

func (m *MemoryStore) ListActionsForRun(ctx context.Context, runID string) ([]*models.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Action
	for _, a := range m.actions {
		if a.RunID == runID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetAssistant(ctx context.Context, id string) (*models.Assistant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assistants[id]
	if !ok {
		return nil, fmt.Errorf("store: assistant %s not found", id)
	}
	cp := *a
	return &cp, nil
}

// PutAssistant registers an Assistant for later GetAssistant lookups.
// The Store interface has no Create method for Assistants (they are
// configured out of band, not created by the orchestration core), so
// this is exposed only on the concrete MemoryStore for bootstrap/test
// seeding.
func (m *MemoryStore) PutAssistant(assistant *models.Assistant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *assistant
	m.assistants[assistant.ID] = &cp
}
