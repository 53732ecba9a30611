package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"insurance-ledger/internal/funds"
	"insurance-ledger/internal/models"
)

// Clock supplies the monotonic tick. It is sampled once per operation.
type Clock interface {
	Now() uint64
}

// Funds moves currency between accounts. Transfer must fail without side effects
// when from cannot cover amount, wrapping funds.ErrInsufficientBalance.
type Funds interface {
	Transfer(ctx context.Context, amount uint64, from, to string) error
	Balance(ctx context.Context, account string) (uint64, error)
}

// Store is the durable mirror of the ledger tables.
type Store interface {
	Load(ctx context.Context) (*models.Snapshot, error)
	Begin(ctx context.Context) (StoreTx, error)
}

type StoreTx interface {
	SaveSettings(ctx context.Context, settings models.Settings) error
	SaveAdministrator(ctx context.Context, account string, enabled bool) error
	SavePolicy(ctx context.Context, policy models.Policy) error
	SaveClaim(ctx context.Context, claim models.Claim) error
	SaveHolder(ctx context.Context, holder models.PolicyholderRecord) error
	AppendEvent(ctx context.Context, event models.Event) error
	Commit() error
	Rollback() error
}

// EventPublisher forwards committed audit events to off-ledger observers.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event models.Event) error
}

// Core owns the ledger state. Every mutating operation runs under the single
// writer lock and either commits all of its writes or none of them.
type Core struct {
	mu        sync.RWMutex
	pubMu     sync.Mutex
	state     *ledgerState
	clock     Clock
	funds     Funds
	store     Store
	publisher EventPublisher
}

type Option func(*Core)

func WithPublisher(publisher EventPublisher) Option {
	return func(c *Core) {
		c.publisher = publisher
	}
}

func NewCore(clock Clock, funds Funds, store Store, opts ...Option) *Core {
	c := &Core{
		state: newLedgerState(),
		clock: clock,
		funds: funds,
		store: store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore replaces the in-memory state with the store's snapshot.
func (c *Core) Restore(ctx context.Context) error {
	snap, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ledger snapshot: %w", err)
	}
	state, err := stateFromSnapshot(snap)
	if err != nil {
		return fmt.Errorf("invalid ledger snapshot: %w", err)
	}

	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	slog.Info("Ledger state restored",
		"initialized", state.settings.Initialized,
		"policies", len(state.policies),
		"claims", len(state.claims),
		"events", len(state.events))
	return nil
}

// Now samples the clock outside of any operation.
func (c *Core) Now() uint64 {
	return c.clock.Now()
}

// ============================================================================
// STATE ARENA
// ============================================================================

type ledgerState struct {
	settings models.Settings
	admins   map[string]bool
	policies []models.Policy
	claims   []models.Claim
	holders  map[string]models.PolicyholderRecord
	events   []models.Event

	policiesByOwner map[string][]uint64
	claimsByPolicy  map[uint64][]uint64
}

func newLedgerState() *ledgerState {
	return &ledgerState{
		admins:          make(map[string]bool),
		holders:         make(map[string]models.PolicyholderRecord),
		policiesByOwner: make(map[string][]uint64),
		claimsByPolicy:  make(map[uint64][]uint64),
	}
}

func stateFromSnapshot(snap *models.Snapshot) (*ledgerState, error) {
	s := newLedgerState()
	s.settings = snap.Settings
	for account, enabled := range snap.Administrators {
		s.admins[account] = enabled
	}

	for i, p := range snap.Policies {
		if p.ID != uint64(i) {
			return nil, fmt.Errorf("policy ids not dense: position %d holds id %d", i, p.ID)
		}
		s.policies = append(s.policies, p)
		s.policiesByOwner[p.Owner] = append(s.policiesByOwner[p.Owner], p.ID)
	}
	for i, cl := range snap.Claims {
		if cl.ID != uint64(i) {
			return nil, fmt.Errorf("claim ids not dense: position %d holds id %d", i, cl.ID)
		}
		if cl.PolicyID >= uint64(len(s.policies)) {
			return nil, fmt.Errorf("claim %d references unknown policy %d", cl.ID, cl.PolicyID)
		}
		s.claims = append(s.claims, cl)
		s.claimsByPolicy[cl.PolicyID] = append(s.claimsByPolicy[cl.PolicyID], cl.ID)
	}
	for _, h := range snap.Holders {
		s.holders[h.Account] = h
	}
	for i, e := range snap.Events {
		if e.ID != uint64(i) {
			return nil, fmt.Errorf("event ids not dense: position %d holds id %d", i, e.ID)
		}
		s.events = append(s.events, e)
	}
	return s, nil
}

// ============================================================================
// STAGED TRANSACTION
// ============================================================================

type transfer struct {
	amount uint64
	from   string
	to     string
}

// txn stages every write of one operation on top of the committed state.
type txn struct {
	ctx    context.Context
	base   *ledgerState
	funds  Funds
	op     string
	caller string
	now    uint64

	settings models.Settings
	admins   map[string]bool
	policies map[uint64]models.Policy
	claims   map[uint64]models.Claim
	holders  map[string]models.PolicyholderRecord
	events   []models.Event
	transfer *transfer

	newPolicies uint64
	newClaims   uint64
}

func (c *Core) begin(ctx context.Context, op, caller string) *txn {
	return &txn{
		ctx:      ctx,
		base:     c.state,
		funds:    c.funds,
		op:       op,
		caller:   caller,
		now:      c.clock.Now(),
		settings: c.state.settings,
		admins:   make(map[string]bool),
		policies: make(map[uint64]models.Policy),
		claims:   make(map[uint64]models.Claim),
		holders:  make(map[string]models.PolicyholderRecord),
	}
}

func (tx *txn) policy(id uint64) (models.Policy, error) {
	if p, ok := tx.policies[id]; ok {
		return p, nil
	}
	if id < uint64(len(tx.base.policies)) {
		return tx.base.policies[id], nil
	}
	return models.Policy{}, fmt.Errorf("%w: policy %d", ErrNotFound, id)
}

func (tx *txn) putPolicy(p models.Policy) {
	tx.policies[p.ID] = p
}

func (tx *txn) insertPolicy(p models.Policy) models.Policy {
	p.ID = uint64(len(tx.base.policies)) + tx.newPolicies
	tx.newPolicies++
	tx.policies[p.ID] = p
	return p
}

func (tx *txn) claim(id uint64) (models.Claim, error) {
	if cl, ok := tx.claims[id]; ok {
		return cl, nil
	}
	if id < uint64(len(tx.base.claims)) {
		return tx.base.claims[id], nil
	}
	return models.Claim{}, fmt.Errorf("%w: claim %d", ErrNotFound, id)
}

func (tx *txn) putClaim(cl models.Claim) {
	tx.claims[cl.ID] = cl
}

func (tx *txn) insertClaim(cl models.Claim) models.Claim {
	cl.ID = uint64(len(tx.base.claims)) + tx.newClaims
	tx.newClaims++
	tx.claims[cl.ID] = cl
	return cl
}

// holder returns the staged, stored or zero record for account without staging it.
func (tx *txn) holder(account string) models.PolicyholderRecord {
	if h, ok := tx.holders[account]; ok {
		return h
	}
	return tx.base.holder(account)
}

func (tx *txn) putHolder(h models.PolicyholderRecord) {
	tx.holders[h.Account] = h
}

func (tx *txn) setAdministrator(account string, enabled bool) {
	tx.admins[account] = enabled
}

func (tx *txn) emit(kind models.EventKind, entity *uint64, account string, format string, args ...any) {
	tx.events = append(tx.events, models.Event{
		ID:       uint64(len(tx.base.events) + len(tx.events)),
		Kind:     kind,
		Payload:  fmt.Sprintf(format, args...),
		EntityID: entity,
		Account:  account,
		Tick:     tx.now,
	})
}

// charge stages the operation's single external transfer. Zero amounts move nothing.
func (tx *txn) charge(amount uint64, from, to string) error {
	if amount == 0 {
		return nil
	}
	if tx.transfer != nil {
		return fmt.Errorf("%s stages more than one transfer", tx.op)
	}
	tx.transfer = &transfer{amount: amount, from: from, to: to}
	return nil
}

// ensureAffordable is the pre-flight balance check against the external ledger.
func (tx *txn) ensureAffordable(account string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	balance, err := tx.funds.Balance(tx.ctx, account)
	if err != nil {
		return fmt.Errorf("failed to query balance of %s: %w", account, err)
	}
	if balance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, account, balance, amount)
	}
	return nil
}

// ============================================================================
// EXECUTE / COMMIT / APPLY
// ============================================================================

// execute runs fn against a fresh staged transaction and commits its writes
// only if fn and the commit both succeed.
func (c *Core) execute(ctx context.Context, op string, fn func(tx *txn) error) error {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return fmt.Errorf("%w: %s requires a caller identity", ErrUnauthorized, op)
	}

	c.mu.Lock()
	tx := c.begin(ctx, op, caller)
	if err := fn(tx); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.commit(tx); err != nil {
		c.mu.Unlock()
		slog.Error("Ledger operation failed to commit", "op", op, "caller", caller, "error", err)
		return err
	}
	c.apply(tx)
	// pubMu is taken before mu is released so events reach the publisher in id order.
	c.pubMu.Lock()
	c.mu.Unlock()

	slog.Info("Ledger operation committed", "op", op, "caller", caller, "tick", tx.now, "events", len(tx.events))
	c.publish(ctx, tx.events)
	c.pubMu.Unlock()
	return nil
}

func (c *Core) commit(tx *txn) error {
	ctx := tx.ctx
	stx, err := c.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting store transaction: %w", err)
	}
	if err := tx.persist(stx); err != nil {
		rollback(stx, tx.op)
		return fmt.Errorf("error persisting %s: %w", tx.op, err)
	}

	t := tx.transfer
	if t != nil {
		if err := c.funds.Transfer(ctx, t.amount, t.from, t.to); err != nil {
			rollback(stx, tx.op)
			if errors.Is(err, funds.ErrInsufficientBalance) {
				return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
			}
			return fmt.Errorf("transfer of %d from %s to %s failed: %w", t.amount, t.from, t.to, err)
		}
	}

	if err := stx.Commit(); err != nil {
		if t != nil {
			if cerr := c.funds.Transfer(ctx, t.amount, t.to, t.from); cerr != nil {
				slog.Error("Compensating transfer failed",
					"op", tx.op, "amount", t.amount, "from", t.to, "to", t.from, "error", cerr)
			}
		}
		return fmt.Errorf("error committing store transaction: %w", err)
	}
	return nil
}

func rollback(stx StoreTx, op string) {
	if err := stx.Rollback(); err != nil {
		slog.Error("error rolling back store transaction", "op", op, "error", err)
	}
}

func (tx *txn) persist(stx StoreTx) error {
	ctx := tx.ctx
	if tx.settings != tx.base.settings {
		if err := stx.SaveSettings(ctx, tx.settings); err != nil {
			return err
		}
	}
	for _, account := range slices.Sorted(maps.Keys(tx.admins)) {
		if err := stx.SaveAdministrator(ctx, account, tx.admins[account]); err != nil {
			return err
		}
	}
	for _, id := range slices.Sorted(maps.Keys(tx.policies)) {
		if err := stx.SavePolicy(ctx, tx.policies[id]); err != nil {
			return err
		}
	}
	for _, id := range slices.Sorted(maps.Keys(tx.claims)) {
		if err := stx.SaveClaim(ctx, tx.claims[id]); err != nil {
			return err
		}
	}
	for _, account := range slices.Sorted(maps.Keys(tx.holders)) {
		if err := stx.SaveHolder(ctx, tx.holders[account]); err != nil {
			return err
		}
	}
	for _, e := range tx.events {
		if err := stx.AppendEvent(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (c *Core) apply(tx *txn) {
	s := c.state
	s.settings = tx.settings
	for account, enabled := range tx.admins {
		s.admins[account] = enabled
	}
	for _, id := range slices.Sorted(maps.Keys(tx.policies)) {
		p := tx.policies[id]
		if id < uint64(len(s.policies)) {
			s.policies[id] = p
			continue
		}
		s.policies = append(s.policies, p)
		s.policiesByOwner[p.Owner] = append(s.policiesByOwner[p.Owner], p.ID)
	}
	for _, id := range slices.Sorted(maps.Keys(tx.claims)) {
		cl := tx.claims[id]
		if id < uint64(len(s.claims)) {
			s.claims[id] = cl
			continue
		}
		s.claims = append(s.claims, cl)
		s.claimsByPolicy[cl.PolicyID] = append(s.claimsByPolicy[cl.PolicyID], cl.ID)
	}
	for account, h := range tx.holders {
		s.holders[account] = h
	}
	s.events = append(s.events, tx.events...)
}

func (c *Core) publish(ctx context.Context, events []models.Event) {
	if c.publisher == nil {
		return
	}
	for _, e := range events {
		if err := c.publisher.PublishLedgerEvent(ctx, e); err != nil {
			slog.Warn("Failed to publish ledger event", "event_id", e.ID, "kind", e.Kind, "error", err)
		}
	}
}

// ============================================================================
// READ ACCESS
// ============================================================================

func (c *Core) read(fn func(s *ledgerState)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.state)
}

func (s *ledgerState) holder(account string) models.PolicyholderRecord {
	if h, ok := s.holders[account]; ok {
		return h
	}
	return models.PolicyholderRecord{Account: account}
}

func (c *Core) Settings() models.Settings {
	var settings models.Settings
	c.read(func(s *ledgerState) { settings = s.settings })
	return settings
}

func (c *Core) Counters() models.LedgerCounters {
	var counters models.LedgerCounters
	c.read(func(s *ledgerState) {
		counters = models.LedgerCounters{
			Policies: uint64(len(s.policies)),
			Claims:   uint64(len(s.claims)),
			Events:   uint64(len(s.events)),
		}
	})
	return counters
}

func (c *Core) GetEvent(id uint64) (models.Event, error) {
	var (
		event models.Event
		err   error
	)
	c.read(func(s *ledgerState) {
		if id >= uint64(len(s.events)) {
			err = fmt.Errorf("%w: event %d", ErrNotFound, id)
			return
		}
		event = s.events[id]
	})
	return event, err
}

// Events returns up to limit events starting at id from, in sequence order.
func (c *Core) Events(from uint64, limit int) []models.Event {
	var events []models.Event
	c.read(func(s *ledgerState) {
		if from >= uint64(len(s.events)) || limit <= 0 {
			return
		}
		end := min(uint64(len(s.events)), from+uint64(limit))
		events = slices.Clone(s.events[from:end])
	})
	return events
}
