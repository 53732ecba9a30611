package models

import (
	"fmt"
	"math"
)

// ============================================================================
// POLICY / CLAIM / HOLDER RECORDS
// ============================================================================

type Policy struct {
	ID               uint64       `json:"id" db:"id"`
	Owner            string       `json:"owner" db:"owner"`
	BasePremium      uint64       `json:"base_premium" db:"base_premium"`
	Premium          uint64       `json:"premium" db:"premium"`
	CoverageLimit    uint64       `json:"coverage_limit" db:"coverage_limit"`
	EffectiveTick    uint64       `json:"effective_tick" db:"effective_tick"`
	ExpirationTick   uint64       `json:"expiration_tick" db:"expiration_tick"`
	Status           PolicyStatus `json:"status" db:"status"`
	PreviousPolicyID *uint64      `json:"previous_policy_id,omitempty" db:"previous_policy_id"`
	ClaimCount       uint64       `json:"claim_count" db:"claim_count"`
	PremiumPaid      uint64       `json:"premium_paid" db:"premium_paid"`
	TotalSettled     uint64       `json:"total_settled" db:"total_settled"`
}

// TermTicks is the full term of the policy from its effective tick.
func (p Policy) TermTicks() uint64 {
	return p.ExpirationTick - p.EffectiveTick
}

// LapsedAt reports whether the policy's expiration tick has passed at now.
func (p Policy) LapsedAt(now uint64) bool {
	return now > p.ExpirationTick
}

type Claim struct {
	ID               uint64      `json:"id" db:"id"`
	PolicyID         uint64      `json:"policy_id" db:"policy_id"`
	Claimant         string      `json:"claimant" db:"claimant"`
	RequestedAmount  uint64      `json:"requested_amount" db:"requested_amount"`
	Description      string      `json:"description" db:"description"`
	IncidentTick     uint64      `json:"incident_tick" db:"incident_tick"`
	FiledTick        uint64      `json:"filed_tick" db:"filed_tick"`
	Status           ClaimStatus `json:"status" db:"status"`
	SettlementTick   *uint64     `json:"settlement_tick,omitempty" db:"settlement_tick"`
	SettlementAmount *uint64     `json:"settlement_amount,omitempty" db:"settlement_amount"`
}

type PolicyholderRecord struct {
	Account          string `json:"account" db:"account"`
	PoliciesHeld     uint64 `json:"policies_held" db:"policies_held"`
	ClaimsFiled      uint64 `json:"claims_filed" db:"claims_filed"`
	ClaimFreeTerms   uint64 `json:"claim_free_terms" db:"claim_free_terms"`
	DiscountEligible bool   `json:"discount_eligible" db:"discount_eligible"`
	LastActivityTick uint64 `json:"last_activity_tick" db:"last_activity_tick"`
	LifetimePremiums uint64 `json:"lifetime_premiums" db:"lifetime_premiums"`
	LifetimePayouts  uint64 `json:"lifetime_payouts" db:"lifetime_payouts"`
	LifetimeRefunds  uint64 `json:"lifetime_refunds" db:"lifetime_refunds"`
}

// ============================================================================
// PROCESS-WIDE STATE
// ============================================================================

type Reserves struct {
	Balance         uint64 `json:"balance" db:"reserve_balance"`
	CatastropheFund uint64 `json:"catastrophe_fund" db:"catastrophe_fund"`
	TotalPremiums   uint64 `json:"total_premiums" db:"total_premiums"`
	TotalFees       uint64 `json:"total_fees" db:"total_fees"`
	TotalClaimsPaid uint64 `json:"total_claims_paid" db:"total_claims_paid"`
	TotalRefunds    uint64 `json:"total_refunds" db:"total_refunds"`
}

// MaxStoredAmount is the largest amount or tick a signed BIGINT column can hold.
const MaxStoredAmount uint64 = math.MaxInt64

type Parameters struct {
	MinPremium   uint64 `json:"min_premium" db:"min_premium" yaml:"min_premium"`
	MinTerm      uint64 `json:"min_term" db:"min_term" yaml:"min_term"`
	MaxTerm      uint64 `json:"max_term" db:"max_term" yaml:"max_term"`
	MaxDiscount  uint64 `json:"max_discount" db:"max_discount" yaml:"max_discount"`
	DiscountRate uint64 `json:"discount_rate" db:"discount_rate" yaml:"discount_rate"`
	ClaimFee     uint64 `json:"claim_fee" db:"claim_fee" yaml:"claim_fee"`
}

// DefaultParameters assumes ten-minute ticks: one day is 144 ticks, one year 52,560.
func DefaultParameters() Parameters {
	return Parameters{
		MinPremium:   1,
		MinTerm:      144,
		MaxTerm:      52560,
		MaxDiscount:  50,
		DiscountRate: 10,
		ClaimFee:     0,
	}
}

func (p Parameters) Validate() error {
	if p.MinPremium == 0 {
		return fmt.Errorf("min_premium must be positive")
	}
	if p.MinTerm == 0 {
		return fmt.Errorf("min_term must be positive")
	}
	if p.MinTerm > p.MaxTerm {
		return fmt.Errorf("min_term %d exceeds max_term %d", p.MinTerm, p.MaxTerm)
	}
	if p.MaxDiscount > 100 {
		return fmt.Errorf("max_discount %d exceeds 100", p.MaxDiscount)
	}
	if p.DiscountRate > p.MaxDiscount {
		return fmt.Errorf("discount_rate %d exceeds max_discount %d", p.DiscountRate, p.MaxDiscount)
	}
	if p.MinPremium > MaxStoredAmount || p.MaxTerm > MaxStoredAmount || p.ClaimFee > MaxStoredAmount {
		return fmt.Errorf("parameters must not exceed %d", MaxStoredAmount)
	}
	return nil
}

// Settings is the single configuration row: identity, flags, parameters and reserves.
type Settings struct {
	Owner       string `json:"owner" db:"owner"`
	Treasury    string `json:"treasury" db:"treasury"`
	Paused      bool   `json:"paused" db:"paused"`
	Initialized bool   `json:"initialized" db:"initialized"`
	Parameters
	Reserves
}

// ============================================================================
// AUDIT EVENTS / REPORTS
// ============================================================================

type Event struct {
	ID       uint64    `json:"id" db:"id"`
	Kind     EventKind `json:"kind" db:"kind"`
	Payload  string    `json:"payload" db:"payload"`
	EntityID *uint64   `json:"entity_id,omitempty" db:"entity_id"`
	Account  string    `json:"account" db:"account"`
	Tick     uint64    `json:"tick" db:"tick"`
}

type ClaimReport struct {
	Claim           Claim              `json:"claim"`
	Policy          Policy             `json:"policy"`
	Holder          PolicyholderRecord `json:"holder"`
	RemainingCover  uint64             `json:"remaining_cover"`
	GeneratedAtTick uint64             `json:"generated_at_tick"`
	GeneratedBy     string             `json:"generated_by"`
	ArchiveURL      string             `json:"archive_url,omitempty"`
}

// Snapshot is the full persisted ledger as loaded at boot.
type Snapshot struct {
	Settings       Settings
	Administrators map[string]bool
	Policies       []Policy
	Claims         []Claim
	Holders        []PolicyholderRecord
	Events         []Event
}
