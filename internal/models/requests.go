package models

// ============================================================================
// POLICY REQUESTS
// ============================================================================

type EnrollRequest struct {
	BasePremium   uint64 `json:"base_premium"`
	CoverageLimit uint64 `json:"coverage_limit"`
	Term          uint64 `json:"term"`
}

type RenewRequest struct {
	PolicyID uint64 `json:"policy_id"`
	Term     uint64 `json:"term"`
}

type ExtendRequest struct {
	PolicyID       uint64 `json:"policy_id"`
	AdditionalTerm uint64 `json:"additional_term"`
}

type UpgradeCoverageRequest struct {
	PolicyID         uint64 `json:"policy_id"`
	NewCoverageLimit uint64 `json:"new_coverage_limit"`
}

type BatchExpireRequest struct {
	PolicyIDs []uint64 `json:"policy_ids"`
}

// ============================================================================
// CLAIM REQUESTS
// ============================================================================

type SubmitClaimRequest struct {
	PolicyID     uint64 `json:"policy_id"`
	Amount       uint64 `json:"amount"`
	Description  string `json:"description"`
	IncidentTick uint64 `json:"incident_tick"`
}

type AdjudicateClaimRequest struct {
	Approve          bool   `json:"approve"`
	SettlementAmount uint64 `json:"settlement_amount"`
}

type OverrideClaimRequest struct {
	Status ClaimStatus `json:"status"`
}

// ============================================================================
// TREASURY / DISCOUNT / ADMIN REQUESTS
// ============================================================================

type AmountRequest struct {
	Amount uint64 `json:"amount"`
}

type WithdrawRequest struct {
	Amount    uint64 `json:"amount"`
	Recipient string `json:"recipient"`
}

type DiscountRateRequest struct {
	Rate uint64 `json:"rate"`
}

type DiscountEligibilityRequest struct {
	Account  string `json:"account"`
	Eligible bool   `json:"eligible"`
}

type AdministratorRequest struct {
	Account string `json:"account"`
	Enabled bool   `json:"enabled"`
}

type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner"`
}

type InitializeRequest struct {
	Owner      string     `json:"owner"`
	Treasury   string     `json:"treasury"`
	Parameters Parameters `json:"parameters"`
}

// ============================================================================
// RESPONSES
// ============================================================================

type CancellationResult struct {
	PolicyID uint64 `json:"policy_id"`
	Refund   uint64 `json:"refund"`
}

type UpgradeResult struct {
	PolicyID   uint64 `json:"policy_id"`
	Charged    uint64 `json:"charged"`
	NewPremium uint64 `json:"new_premium"`
}

type BatchExpireResult struct {
	Requested int `json:"requested"`
	Expired   int `json:"expired"`
}

type LedgerCounters struct {
	Policies uint64 `json:"policies"`
	Claims   uint64 `json:"claims"`
	Events   uint64 `json:"events"`
}
