package ledgerdb

import (
	"context"
	"sort"
	"sync"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
)

// MemoryStore keeps entries in process memory. It backs local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[ledgerdomain.ParticipantID]ledgerdomain.ScoreEntry
	paused  bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[ledgerdomain.ParticipantID]ledgerdomain.ScoreEntry)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Get(_ context.Context, id ledgerdomain.ParticipantID) (ledgerdomain.ScoreEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return ledgerdomain.ScoreEntry{}, ErrNotFound
	}
	return e, nil
}

func (m *MemoryStore) Insert(_ context.Context, entry ledgerdomain.ScoreEntry) error {
	if err := checkRange(entry); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.ParticipantID]; ok {
		return ErrAlreadyExists
	}
	m.entries[entry.ParticipantID] = entry
	return nil
}

func (m *MemoryStore) CompareAndSwap(_ context.Context, entry ledgerdomain.ScoreEntry, expectedBest uint64) error {
	if err := checkRange(entry); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.entries[entry.ParticipantID]
	if !ok {
		return ErrNotFound
	}
	if current.BestScore != expectedBest {
		return ErrConflict
	}
	m.entries[entry.ParticipantID] = entry
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id ledgerdomain.ParticipantID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *MemoryStore) ScanSorted(_ context.Context) ([]ledgerdomain.ScoreEntry, error) {
	m.mu.RLock()
	out := make([]ledgerdomain.ScoreEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return ledgerdomain.Ranks(out[i], out[j]) })
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.entries)), nil
}

func (m *MemoryStore) Paused(_ context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused, nil
}

func (m *MemoryStore) SetPaused(_ context.Context, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = paused
	return nil
}

func (m *MemoryStore) Close() error { return nil }
