package services

import (
	"errors"
	"strings"
	"testing"

	"insurance-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST SUITE 1: SUBMISSION
// ============================================================================

func TestSubmitClaim_ChargesFee(t *testing.T) {
	params := testParameters()
	params.ClaimFee = 5
	l := newTestLedger(t, params)
	l.fund(t, "alice", 3005)
	p := l.enroll(t, "alice", 100, 1000, 30)

	l.clock.Set(5)
	cl := l.fileClaim(t, "alice", p.ID, 500)

	assert.Equal(t, uint64(0), cl.ID)
	assert.Equal(t, models.ClaimPending, cl.Status)
	assert.Equal(t, uint64(5), cl.FiledTick)
	assert.Nil(t, cl.SettlementAmount)
	assert.Equal(t, uint64(0), l.balance(t, "alice"))

	r := l.reserves()
	assert.Equal(t, uint64(3005), r.Balance)
	assert.Equal(t, uint64(5), r.TotalFees)
	assert.Equal(t, uint64(3000), r.TotalPremiums, "fees are not premiums")

	policy, err := l.policies.GetPolicy(p.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), policy.ClaimCount)
	assert.Equal(t, uint64(1), l.discount.GetHolder("alice").ClaimsFiled)

	_, err = l.claims.SubmitClaim(as("alice"), models.SubmitClaimRequest{PolicyID: p.ID, Amount: 10, IncidentTick: 5})
	require.ErrorIs(t, err, ErrInsufficientFunds, "fee no longer affordable")
}

func TestSubmitClaim_Validation(t *testing.T) {
	l := newTestLedger(t, testParameters())
	l.fund(t, "alice", 10_000)
	p := l.enroll(t, "alice", 100, 1000, 30)
	l.clock.Set(10)

	tests := []struct {
		name   string
		caller string
		req    models.SubmitClaimRequest
		want   error
	}{
		{"unknown policy", "alice", models.SubmitClaimRequest{PolicyID: 7, Amount: 10, IncidentTick: 5}, ErrNotFound},
		{"not the owner", "bob", models.SubmitClaimRequest{PolicyID: p.ID, Amount: 10, IncidentTick: 5}, ErrUnauthorized},
		{"zero amount", "alice", models.SubmitClaimRequest{PolicyID: p.ID, Amount: 0, IncidentTick: 5}, ErrInvalidParameters},
		{"over coverage", "alice", models.SubmitClaimRequest{PolicyID: p.ID, Amount: 1001, IncidentTick: 5}, ErrCoverageExceeded},
		{"future incident", "alice", models.SubmitClaimRequest{PolicyID: p.ID, Amount: 10, IncidentTick: 11}, ErrInvalidParameters},
		{"long description", "alice", models.SubmitClaimRequest{
			PolicyID: p.ID, Amount: 10, IncidentTick: 5, Description: strings.Repeat("é", MaxClaimDescription+1),
		}, ErrInvalidParameters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.claims.SubmitClaim(as(tt.caller), tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := l.claims.SubmitClaim(as("alice"), models.SubmitClaimRequest{
		PolicyID: p.ID, Amount: 1000, IncidentTick: 10, Description: strings.Repeat("é", MaxClaimDescription),
	})
	require.NoError(t, err, "limits are inclusive and counted in characters")
}

// ============================================================================
// TEST SUITE 2: ADJUDICATION
// ============================================================================

func TestAdjudicateClaim_PartialSettlementKeepsPolicyActive(t *testing.T) {
	l := newTestLedger(t, testParameters())
	l.fund(t, "alice", 10_000)
	p := l.enroll(t, "alice", 100, 1000, 30)
	cl := l.fileClaim(t, "alice", p.ID, 500)

	l.clock.Set(3)
	decided, err := l.claims.AdjudicateClaim(as(testOwner), cl.ID, models.AdjudicateClaimRequest{Approve: true, SettlementAmount: 500})
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, decided.Status)
	require.NotNil(t, decided.SettlementAmount)
	require.NotNil(t, decided.SettlementTick)
	assert.Equal(t, uint64(500), *decided.SettlementAmount)
	assert.Equal(t, uint64(3), *decided.SettlementTick)

	policy, err := l.policies.GetPolicy(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PolicyActive, policy.Status)
	assert.Equal(t, uint64(500), policy.TotalSettled)

	assert.Equal(t, uint64(7500), l.balance(t, "alice"))
	r := l.reserves()
	assert.Equal(t, uint64(2500), r.Balance)
	assert.Equal(t, uint64(500), r.TotalClaimsPaid)
	assert.Equal(t, uint64(500), l.discount.GetHolder("alice").LifetimePayouts)

	_, err = l.claims.AdjudicateClaim(as(testOwner), cl.ID, models.AdjudicateClaimRequest{Approve: true, SettlementAmount: 500})
	require.ErrorIs(t, err, ErrInvalidState, "claims are adjudicated once")
}

func TestAdjudicateClaim_FullSettlementMarksPolicyClaimed(t *testing.T) {
	l := newTestLedger(t, testParameters())
	l.fund(t, "alice", 10_000)
	p := l.enroll(t, "alice", 100, 1000, 30)
	cl := l.fileClaim(t, "alice", p.ID, 1000)

	_, err := l.claims.AdjudicateClaim(as(testOwner), cl.ID, models.AdjudicateClaimRequest{Approve: true, SettlementAmount: 1000})
	require.NoError(t, err)

	policy, err := l.policies.GetPolicy(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PolicyClaimed, policy.Status)

	_, err = l.claims.SubmitClaim(as("alice"), models.SubmitClaimRequest{PolicyID: p.ID, Amount: 1})
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = l.policies.Cancel(as("alice"), p.ID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestAdjudicateClaim_CumulativeCap(t *testing.T) {
	l := newTestLedger(t, testParameters())
	l.fund(t, "alice", 10_000)
	p := l.enroll(t, "alice", 100, 1000, 30)
	first := l.fileClaim(t, "alice", p.ID, 600)
	second := l.fileClaim(t, "alice", p.ID, 600)

	_, err := l.claims.AdjudicateClaim(as(testOwner), first.ID, models.AdjudicateClaimRequest{Approve: true, SettlementAmount: 600})
	require.NoError(t, err)

	_, err = l.claims.AdjudicateClaim(as(testOwner), second.ID, models.AdjudicateClaimRequest{Approve: true, SettlementAmount: 600})
	require.ErrorIs(t, err, ErrCoverageExceeded, "only 400 of cover remains")

	_, err = l.claims.AdjudicateClaim(as(testOwner), second.ID, models.AdjudicateClaimRequest{Approve: true, SettlementAmount: 400})
	require.NoError(t, err)

	policy, err := l.policies.GetPolicy(p.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), policy.TotalSettled)
	assert.Equal(t, uint64(1000), l.reserves().TotalClaimsPaid)
}

func TestAdjudicateClaim_Rejections(t *testing.T) {
	l := newTestLedger(t, testParameters())
	l.fund(t, "alice", 10_000)
	p := l.enroll(t, "alice", 1, 1000, 10)
	cl := l.fileClaim(t, "alice", p.ID, 500)

	_, err := l.claims.AdjudicateClaim(as("alice"), cl.ID, models.AdjudicateClaimRequest{Approve: true, SettlementAmount: 10})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = l.claims.AdjudicateClaim(as(testOwner), 9, models.AdjudicateClaimRequest{Approve: false})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = l.claims.AdjudicateClaim(as(testOwner), cl.ID, models.AdjudicateClaimRequest{Approve: true, SettlementAmount: 501})
	require.ErrorIs(t, err, ErrInvalidParameters, "settlement above requested amount")

	_, err = l.claims.AdjudicateClaim(as(testOwner), cl.ID, models.AdjudicateClaimRequest{Approve: true, SettlementAmount: 0})
	require.ErrorIs(t, err, ErrInvalidParameters)

	_, err = l.claims.AdjudicateClaim(as(testOwner), cl.ID, models.AdjudicateClaimRequest{Approve: true, SettlementAmount: 500})
	require.ErrorIs(t, err, ErrInsufficientFunds, "reserve only holds 10")

	pending, err := l.claims.GetClaim(cl.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimPending, pending.Status)

	rejected, err := l.claims.AdjudicateClaim(as(testOwner), cl.ID, models.AdjudicateClaimRequest{Approve: false})
	require.NoError(t, err)
	assert.Equal(t, models.ClaimRejected, rejected.Status)
	assert.Nil(t, rejected.SettlementAmount)
	assert.Equal(t, uint64(10), l.reserves().Balance)
}

func TestOverrideClaimStatus_MovesNoFunds(t *testing.T) {
	l := newTestLedger(t, testParameters())
	l.fund(t, "alice", 10_000)
	p := l.enroll(t, "alice", 100, 1000, 30)
	cl := l.fileClaim(t, "alice", p.ID, 500)

	_, err := l.claims.AdjudicateClaim(as(testOwner), cl.ID, models.AdjudicateClaimRequest{Approve: false})
	require.NoError(t, err)

	overridden, err := l.claims.OverrideClaimStatus(as(testOwner), cl.ID, models.ClaimApproved)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, overridden.Status)
	assert.Nil(t, overridden.SettlementAmount)
	assert.Equal(t, uint64(3000), l.reserves().Balance)
	assert.Equal(t, uint64(7000), l.balance(t, "alice"))

	_, err = l.claims.OverrideClaimStatus(as(testOwner), cl.ID, models.ClaimStatus("paid"))
	require.ErrorIs(t, err, ErrInvalidParameters)

	_, err = l.claims.OverrideClaimStatus(as("alice"), cl.ID, models.ClaimPending)
	require.ErrorIs(t, err, ErrUnauthorized)
}

// ============================================================================
// TEST SUITE 3: REPORTS AND READERS
// ============================================================================

func TestGenerateClaimReport(t *testing.T) {
	l := newTestLedger(t, testParameters())
	l.fund(t, "alice", 10_000)
	p := l.enroll(t, "alice", 100, 1000, 30)
	cl := l.fileClaim(t, "alice", p.ID, 300)
	_, err := l.claims.AdjudicateClaim(as(testOwner), cl.ID, models.AdjudicateClaimRequest{Approve: true, SettlementAmount: 300})
	require.NoError(t, err)

	report, err := l.claims.GenerateClaimReport(as(testOwner), cl.ID)
	require.NoError(t, err)
	assert.Equal(t, cl.ID, report.Claim.ID)
	assert.Equal(t, p.ID, report.Policy.ID)
	assert.Equal(t, "alice", report.Holder.Account)
	assert.Equal(t, uint64(700), report.RemainingCover)
	assert.Equal(t, testOwner, report.GeneratedBy)
	assert.NotEmpty(t, report.ArchiveURL)
	require.Len(t, l.archiver.reports, 1)

	last := l.core.Events(l.core.Counters().Events-1, 1)
	require.Len(t, last, 1)
	assert.Equal(t, models.EventClaimReport, last[0].Kind)

	l.archiver.err = errors.New("bucket unavailable")
	report, err = l.claims.GenerateClaimReport(as(testOwner), cl.ID)
	require.NoError(t, err, "archive failures do not fail the report")
	assert.Empty(t, report.ArchiveURL)

	_, err = l.claims.GenerateClaimReport(as("alice"), cl.ID)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestClaimsByPolicy(t *testing.T) {
	l := newTestLedger(t, testParameters())
	l.fund(t, "alice", 10_000)
	first := l.enroll(t, "alice", 10, 1000, 30)
	second := l.enroll(t, "alice", 10, 1000, 30)
	l.fileClaim(t, "alice", first.ID, 10)
	l.fileClaim(t, "alice", second.ID, 20)
	l.fileClaim(t, "alice", first.ID, 30)

	claims, err := l.claims.ClaimsByPolicy(first.ID)
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, uint64(10), claims[0].RequestedAmount)
	assert.Equal(t, uint64(30), claims[1].RequestedAmount)

	_, err = l.claims.ClaimsByPolicy(5)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = l.claims.GetClaim(3)
	require.ErrorIs(t, err, ErrNotFound)
}
