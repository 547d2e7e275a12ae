// Package store defines the persistence boundary the orchestration
// core reads and writes through: Threads, Messages, Runs, Actions and
// Assistants. It deliberately says nothing about SQL schema or
// migrations (out of scope per SPEC_FULL.md §1) — callers inject any
// backing implementation, mirroring the way internal/sessions.Store
// and internal/jobs' store interface are injected into the teacher's
// Runtime rather than constructed by it.
package store

import (
	"context"

	"github.com/haasonsaas/nexus-core/pkg/models"
)

// Threads persists conversation threads.
type Threads interface {
	CreateThread(ctx context.Context, thread *models.Thread) error
	GetThread(ctx context.Context, id string) (*models.Thread, error)
}

// Messages persists the authoritative (non-cached) message history.
type Messages interface {
	AppendMessage(ctx context.Context, threadID string, msg *models.Message) error
	GetMessages(ctx context.Context, threadID string, limit int) ([]*models.Message, error)
}

// Runs persists Run lifecycle state.
type Runs interface {
	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	UpdateRun(ctx context.Context, run *models.Run) error
}

// Actions persists per-tool-call Action records owned by a Run.
type Actions interface {
	CreateAction(ctx context.Context, action *models.Action) error
	GetAction(ctx context.Context, id string) (*models.Action, error)
	UpdateAction(ctx context.Context, action *models.Action) error
	ListActionsForRun(ctx context.Context, runID string) ([]*models.Action, error)
}

// Assistants persists Assistant configuration (system instructions,
// default model/provider, tool manifest).
type Assistants interface {
	GetAssistant(ctx context.Context, id string) (*models.Assistant, error)
}

// Store is the full persistence boundary; concrete backends (SQL, the
// in-memory reference implementation used in tests) implement all of
// it.
type Store interface {
	Threads
	Messages
	Runs
	Actions
	Assistants
}
