package sessions

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus-core/pkg/models"
)

// ErrPrimaryBranchExists is returned by EnsurePrimaryBranch when a
// session already has a primary branch recorded.
var ErrPrimaryBranchExists = errors.New("session already has a primary branch")

// BranchStore is the minimal branch-aware history contract the
// orchestrator needs: ensure every session has exactly one primary
// branch, append to it, and read it back. The teacher's original
// BranchStore additionally covered forking, merging, archiving and
// branch-tree traversal; that richer branching feature is out of
// SPEC_FULL.md's Thread/Run model (see DESIGN.md), so only the
// primary-branch history contract the loop actually calls is kept.
type BranchStore interface {
	// EnsurePrimaryBranch returns the session's primary branch,
	// creating one if none exists yet.
	EnsurePrimaryBranch(ctx context.Context, sessionID string) (string, error)

	// AppendMessageToBranch appends a message to the given branch. An
	// empty branchID means the session's primary branch.
	AppendMessageToBranch(ctx context.Context, sessionID, branchID string, msg *models.Message) error

	// GetBranchHistory returns up to limit messages from the branch,
	// oldest first.
	GetBranchHistory(ctx context.Context, branchID string, limit int) ([]*models.Message, error)
}

// MemoryBranchStore is an in-memory BranchStore, grounded on
// MemoryStore's own locking/slice-trimming idiom.
type MemoryBranchStore struct {
	mu        sync.RWMutex
	primary   map[string]string // sessionID -> branchID
	histories map[string][]*models.Message
}

// NewMemoryBranchStore creates an empty in-memory branch store.
func NewMemoryBranchStore() *MemoryBranchStore {
	return &MemoryBranchStore{
		primary:   map[string]string{},
		histories: map[string][]*models.Message{},
	}
}

func (s *MemoryBranchStore) EnsurePrimaryBranch(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.primary[sessionID]; ok {
		return id, nil
	}
	id := uuid.NewString()
	s.primary[sessionID] = id
	return id, nil
}

func (s *MemoryBranchStore) AppendMessageToBranch(ctx context.Context, sessionID, branchID string, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if branchID == "" {
		branchID = s.primary[sessionID]
	}
	if branchID == "" {
		return errors.New("sessions: no primary branch for session " + sessionID)
	}
	s.histories[branchID] = append(s.histories[branchID], msg)
	if len(s.histories[branchID]) > maxMessagesPerSession {
		s.histories[branchID] = s.histories[branchID][len(s.histories[branchID])-maxMessagesPerSession:]
	}
	return nil
}

func (s *MemoryBranchStore) GetBranchHistory(ctx context.Context, branchID string, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.histories[branchID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]*models.Message, len(history))
	copy(out, history)
	return out, nil
}
