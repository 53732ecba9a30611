package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"insurance-ledger/internal/models"
	"insurance-ledger/internal/services"
)

// MemoryStore keeps the ledger tables in process. Writes made through a
// transaction become visible only on Commit.
type MemoryStore struct {
	mu       sync.Mutex
	settings models.Settings
	admins   map[string]bool
	policies map[uint64]models.Policy
	claims   map[uint64]models.Claim
	holders  map[string]models.PolicyholderRecord
	events   []models.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		admins:   make(map[string]bool),
		policies: make(map[uint64]models.Policy),
		claims:   make(map[uint64]models.Claim),
		holders:  make(map[string]models.PolicyholderRecord),
	}
}

func (s *MemoryStore) Load(_ context.Context) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &models.Snapshot{
		Settings:       s.settings,
		Administrators: maps.Clone(s.admins),
		Events:         slices.Clone(s.events),
	}
	for _, id := range slices.Sorted(maps.Keys(s.policies)) {
		snap.Policies = append(snap.Policies, s.policies[id])
	}
	for _, id := range slices.Sorted(maps.Keys(s.claims)) {
		snap.Claims = append(snap.Claims, s.claims[id])
	}
	for _, account := range slices.Sorted(maps.Keys(s.holders)) {
		snap.Holders = append(snap.Holders, s.holders[account])
	}
	return snap, nil
}

func (s *MemoryStore) Begin(_ context.Context) (services.StoreTx, error) {
	return &memoryTx{store: s}, nil
}

type memoryTx struct {
	store  *MemoryStore
	writes []func(s *MemoryStore)
	done   bool
}

func (t *memoryTx) stage(fn func(s *MemoryStore)) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.writes = append(t.writes, fn)
	return nil
}

func (t *memoryTx) SaveSettings(_ context.Context, settings models.Settings) error {
	return t.stage(func(s *MemoryStore) { s.settings = settings })
}

func (t *memoryTx) SaveAdministrator(_ context.Context, account string, enabled bool) error {
	return t.stage(func(s *MemoryStore) { s.admins[account] = enabled })
}

func (t *memoryTx) SavePolicy(_ context.Context, policy models.Policy) error {
	return t.stage(func(s *MemoryStore) { s.policies[policy.ID] = policy })
}

func (t *memoryTx) SaveClaim(_ context.Context, claim models.Claim) error {
	return t.stage(func(s *MemoryStore) { s.claims[claim.ID] = claim })
}

func (t *memoryTx) SaveHolder(_ context.Context, holder models.PolicyholderRecord) error {
	return t.stage(func(s *MemoryStore) { s.holders[holder.Account] = holder })
}

func (t *memoryTx) AppendEvent(_ context.Context, event models.Event) error {
	return t.stage(func(s *MemoryStore) { s.events = append(s.events, event) })
}

func (t *memoryTx) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, w := range t.writes {
		w(t.store)
	}
	return nil
}

func (t *memoryTx) Rollback() error {
	t.done = true
	t.writes = nil
	return nil
}
