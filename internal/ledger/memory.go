package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Memory is the in-process ledger used by tests and single-node setups.
type Memory struct {
	mu     sync.Mutex
	states map[common.Hash]State
}

func NewMemory() *Memory {
	return &Memory{states: make(map[common.Hash]State)}
}

func (m *Memory) State(_ context.Context, digest common.Hash) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[digest], nil
}

func (m *Memory) MarkCancelled(_ context.Context, digest common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.states[digest] {
	case StateUnseen, StateCancelled:
		m.states[digest] = StateCancelled
		return nil
	default:
		return ErrPerformed
	}
}

func (m *Memory) BeginPerform(_ context.Context, digest common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.states[digest] {
	case StateUnseen:
		m.states[digest] = StatePerforming
		return nil
	case StateCancelled:
		return ErrCancelled
	default:
		return ErrPerformed
	}
}

func (m *Memory) CompletePerform(_ context.Context, digest common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[digest] = StatePerformed
	return nil
}

func (m *Memory) AbortPerform(_ context.Context, digest common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states[digest] == StatePerforming {
		delete(m.states, digest)
	}
	return nil
}
