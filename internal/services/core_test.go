package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"insurance-ledger/internal/funds"
	"insurance-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST SUITE 1: ATOMIC COMMIT
// ============================================================================

func TestExecute_FailedTransferRollsBack(t *testing.T) {
	bank := funds.NewMemoryBank()
	broken := &failingFunds{MemoryBank: bank}
	l := newUninitializedLedger(t, broken, bank)
	_, err := l.admin.Initialize(as(testOwner), models.InitializeRequest{Treasury: testTreasury, Parameters: testParameters()})
	require.NoError(t, err)
	l.fund(t, "alice", 10_000)
	events := l.core.Counters().Events

	broken.transferErr = errors.New("ledger node unreachable")
	_, err = l.policies.Enroll(as("alice"), models.EnrollRequest{BasePremium: 100, CoverageLimit: 1000, Term: 30})
	require.Error(t, err)
	assert.Nil(t, KindOf(err), "infrastructure failures carry no error kind")

	assert.Equal(t, 1, l.store.rollbacks)
	assert.Equal(t, uint64(0), l.core.Counters().Policies)
	assert.Equal(t, events, l.core.Counters().Events)
	assert.Equal(t, models.Reserves{}, l.reserves())
	assert.Equal(t, uint64(0), l.discount.GetHolder("alice").PoliciesHeld)

	broken.transferErr = fmt.Errorf("debit refused: %w", funds.ErrInsufficientBalance)
	_, err = l.policies.Enroll(as("alice"), models.EnrollRequest{BasePremium: 100, CoverageLimit: 1000, Term: 30})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	broken.transferErr = nil
	p, err := l.policies.Enroll(as("alice"), models.EnrollRequest{BasePremium: 100, CoverageLimit: 1000, Term: 30})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), p.ID, "failed attempts consume no ids")
}

func TestExecute_FailedCommitCompensatesTransfer(t *testing.T) {
	l := newTestLedger(t, testParameters())
	l.fund(t, "alice", 10_000)

	l.store.commitErr = errors.New("connection reset")
	_, err := l.policies.Enroll(as("alice"), models.EnrollRequest{BasePremium: 100, CoverageLimit: 1000, Term: 30})
	require.Error(t, err)

	assert.Equal(t, uint64(10_000), l.balance(t, "alice"), "compensating transfer restores the payer")
	assert.Equal(t, uint64(0), l.balance(t, testTreasury))
	assert.Equal(t, uint64(0), l.core.Counters().Policies)
	assert.Equal(t, uint64(0), l.reserves().Balance)
}

func TestExecute_FailedPersistMovesNoFunds(t *testing.T) {
	l := newTestLedger(t, testParameters())
	l.fund(t, "alice", 10_000)
	commits := l.store.commits

	l.store.saveErr = errors.New("disk full")
	_, err := l.policies.Enroll(as("alice"), models.EnrollRequest{BasePremium: 100, CoverageLimit: 1000, Term: 30})
	require.Error(t, err)

	assert.Equal(t, commits, l.store.commits)
	assert.Equal(t, 1, l.store.rollbacks)
	assert.Equal(t, uint64(10_000), l.balance(t, "alice"))
	assert.Equal(t, uint64(0), l.core.Counters().Policies)
}

func TestExecute_ValidationFailureNeverTouchesStore(t *testing.T) {
	l := newTestLedger(t, testParameters())
	begins := l.store.begins

	_, err := l.policies.Enroll(as("alice"), models.EnrollRequest{})
	require.ErrorIs(t, err, ErrInvalidParameters)
	assert.Equal(t, begins, l.store.begins)
}

// ============================================================================
// TEST SUITE 2: EVENTS
// ============================================================================

func TestEveryMutationEmitsOneEvent(t *testing.T) {
	l := newTestLedger(t, testParameters())
	l.fund(t, "alice", 100_000)
	l.fund(t, testOwner, 1000)

	var (
		p  models.Policy
		cl models.Claim
	)
	steps := []struct {
		kind models.EventKind
		run  func() error
	}{
		{models.EventPolicyEnrolled, func() (err error) {
			p, err = l.policies.Enroll(as("alice"), models.EnrollRequest{BasePremium: 10, CoverageLimit: 1000, Term: 30})
			return err
		}},
		{models.EventPolicyExtended, func() error {
			_, err := l.policies.Extend(as("alice"), models.ExtendRequest{PolicyID: p.ID, AdditionalTerm: 10})
			return err
		}},
		{models.EventCoverageUpgraded, func() error {
			_, err := l.policies.UpgradeCoverage(as("alice"), models.UpgradeCoverageRequest{PolicyID: p.ID, NewCoverageLimit: 2000})
			return err
		}},
		{models.EventClaimSubmitted, func() (err error) {
			cl, err = l.claims.SubmitClaim(as("alice"), models.SubmitClaimRequest{PolicyID: p.ID, Amount: 100})
			return err
		}},
		{models.EventClaimApproved, func() error {
			_, err := l.claims.AdjudicateClaim(as(testOwner), cl.ID, models.AdjudicateClaimRequest{Approve: true, SettlementAmount: 50})
			return err
		}},
		{models.EventClaimOverridden, func() error {
			_, err := l.claims.OverrideClaimStatus(as(testOwner), cl.ID, models.ClaimRejected)
			return err
		}},
		{models.EventClaimReport, func() error {
			_, err := l.claims.GenerateClaimReport(as(testOwner), cl.ID)
			return err
		}},
		{models.EventReservesDeposited, func() error {
			_, err := l.treasury.DepositToReserves(as(testOwner), 100)
			return err
		}},
		{models.EventCatastropheDeposited, func() error {
			_, err := l.treasury.DepositToCatastropheFund(as(testOwner), 100)
			return err
		}},
		{models.EventCatastropheReleased, func() error {
			_, err := l.treasury.ReleaseCatastropheFund(as(testOwner), 50)
			return err
		}},
		{models.EventFundsWithdrawn, func() error {
			_, err := l.treasury.WithdrawFunds(as(testOwner), models.WithdrawRequest{Amount: 10})
			return err
		}},
		{models.EventDiscountRateUpdated, func() error { return l.discount.UpdateDiscountRate(as(testOwner), 15) }},
		{models.EventDiscountEligibilitySet, func() error {
			_, err := l.discount.SetDiscountEligibility(as(testOwner), models.DiscountEligibilityRequest{Account: "alice"})
			return err
		}},
		{models.EventPolicyRenewed, func() error {
			src, err := l.policies.GetPolicy(p.ID)
			if err != nil {
				return err
			}
			l.clock.Set(src.ExpirationTick)
			_, err = l.policies.Renew(as("alice"), models.RenewRequest{PolicyID: p.ID, Term: 30})
			return err
		}},
		{models.EventPolicyCancelled, func() error {
			_, err := l.policies.Cancel(as("alice"), p.ID+1)
			return err
		}},
		{models.EventPoliciesExpired, func() error {
			_, err := l.policies.BatchExpire(as(testOwner), []uint64{p.ID})
			return err
		}},
		{models.EventAdministratorUpdated, func() error {
			return l.admin.SetAdministrator(as(testOwner), models.AdministratorRequest{Account: "admin", Enabled: true})
		}},
		{models.EventPauseToggled, func() error {
			_, err := l.admin.TogglePause(as(testOwner))
			return err
		}},
		{models.EventParametersUpdated, func() error {
			_, err := l.admin.UpdateParameters(as(testOwner), testParameters())
			return err
		}},
		{models.EventOwnershipTransferred, func() error { return l.admin.TransferOwnership(as(testOwner), "successor") }},
	}

	for _, step := range steps {
		before := l.core.Counters().Events
		require.NoError(t, step.run(), string(step.kind))
		require.Equal(t, before+1, l.core.Counters().Events, string(step.kind))

		e, err := l.core.GetEvent(before)
		require.NoError(t, err)
		assert.Equal(t, step.kind, e.Kind)
		assert.Equal(t, before, e.ID)
	}

	require.Len(t, l.publisher.events, int(l.core.Counters().Events))
	for i, e := range l.publisher.events {
		assert.Equal(t, uint64(i), e.ID, "events publish in sequence order")
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	l := newTestLedger(t, testParameters())
	l.publisher.err = errors.New("broker down")

	_, err := l.admin.TogglePause(as(testOwner))
	require.NoError(t, err)
	assert.True(t, l.core.Settings().Paused)
}

func TestConcurrentOperationsPublishInSequence(t *testing.T) {
	l := newTestLedger(t, testParameters())
	l.publisher.delay = time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.admin.TogglePause(as(testOwner))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, l.publisher.events, 17, "initialize plus one event per toggle")
	for i, e := range l.publisher.events {
		assert.Equal(t, uint64(i), e.ID, "events must be published in id order")
	}
}

func TestEvents_Paging(t *testing.T) {
	l := newTestLedger(t, testParameters())
	for i := 0; i < 4; i++ {
		_, err := l.admin.TogglePause(as(testOwner))
		require.NoError(t, err)
	}

	assert.Len(t, l.core.Events(0, 10), 5)
	page := l.core.Events(2, 2)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(2), page[0].ID)
	assert.Empty(t, l.core.Events(5, 10))
	assert.Empty(t, l.core.Events(0, 0))

	_, err := l.core.GetEvent(5)
	require.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// TEST SUITE 3: RESTORE
// ============================================================================

func TestRestore(t *testing.T) {
	store := &fakeStore{snapshot: &models.Snapshot{
		Settings:       models.Settings{Owner: testOwner, Treasury: testTreasury, Initialized: true, Parameters: testParameters()},
		Administrators: map[string]bool{"admin": true},
		Policies: []models.Policy{
			{ID: 0, Owner: "alice", Status: models.PolicyActive, ExpirationTick: 30},
		},
		Claims:  []models.Claim{{ID: 0, PolicyID: 0, Status: models.ClaimPending}},
		Holders: []models.PolicyholderRecord{{Account: "alice", PoliciesHeld: 1}},
		Events:  []models.Event{{ID: 0, Kind: models.EventLedgerInitialized}},
	}}
	bank := funds.NewMemoryBank()
	core := NewCore(&fixedClock{}, bank, store)
	require.NoError(t, core.Restore(context.Background()))

	assert.True(t, core.IsAdministrator("admin"))
	assert.Equal(t, models.LedgerCounters{Policies: 1, Claims: 1, Events: 1}, core.Counters())
	assert.Len(t, NewPolicyService(core).PoliciesByOwner("alice"), 1)
	claims, err := NewClaimService(core, nil).ClaimsByPolicy(0)
	require.NoError(t, err)
	assert.Len(t, claims, 1)

	store.snapshot.Policies[0].ID = 3
	require.Error(t, core.Restore(context.Background()), "ids must be dense")
}

type fixedClock struct{ tick uint64 }

func (c *fixedClock) Now() uint64 { return c.tick }

// ============================================================================
// TEST SUITE 4: ARITHMETIC AND ERROR KINDS
// ============================================================================

func TestCheckedArithmetic(t *testing.T) {
	maxU := ^uint64(0)

	_, err := add(maxU, 1)
	require.ErrorIs(t, err, ErrInvalidParameters)
	sum, err := add(models.MaxStoredAmount-1, 1)
	require.NoError(t, err)
	assert.Equal(t, models.MaxStoredAmount, sum)
	_, err = add(models.MaxStoredAmount, 1)
	require.ErrorIs(t, err, ErrInvalidParameters, "sums above the BIGINT range are rejected")

	_, err = mul(maxU, 2)
	require.ErrorIs(t, err, ErrInvalidParameters)
	_, err = mul(1<<32, 1<<31)
	require.ErrorIs(t, err, ErrInvalidParameters, "2^63 does not fit the store")
	product, err := mul(1<<31, 1<<31)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<62), product)
	_, err = mulDiv(maxU, 2, 4)
	require.ErrorIs(t, err, ErrInvalidParameters)

	q, err := mulDiv(7, 4, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), q)

	assert.Equal(t, maxU/2, prorate(maxU, 2, 4))
	assert.Equal(t, uint64(10), prorate(10, 20, 10), "part is clamped to whole")
	assert.Equal(t, uint64(0), prorate(10, 5, 0))
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("enroll: %w", fmt.Errorf("%w: detail", ErrLapsed))
	assert.Equal(t, ErrLapsed, KindOf(wrapped))
	assert.Nil(t, KindOf(errors.New("dial tcp: refused")))
	assert.Nil(t, KindOf(nil))
}
