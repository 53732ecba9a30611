package models

type PolicyStatus string

const (
	PolicyActive    PolicyStatus = "active"
	PolicyExpired   PolicyStatus = "expired"
	PolicyCancelled PolicyStatus = "cancelled"
	PolicyClaimed   PolicyStatus = "claimed"
)

// IsTerminal reports whether no transition may leave the status.
func (s PolicyStatus) IsTerminal() bool {
	switch s {
	case PolicyExpired, PolicyCancelled, PolicyClaimed:
		return true
	default:
		return false
	}
}

type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimPending, ClaimApproved, ClaimRejected:
		return true
	default:
		return false
	}
}

type EventKind string

const (
	EventLedgerInitialized      EventKind = "ledger_initialized"
	EventPolicyEnrolled         EventKind = "policy_enrolled"
	EventPolicyRenewed          EventKind = "policy_renewed"
	EventPolicyExtended         EventKind = "policy_extended"
	EventCoverageUpgraded       EventKind = "coverage_upgraded"
	EventPolicyCancelled        EventKind = "policy_cancelled"
	EventPoliciesExpired        EventKind = "policies_expired"
	EventClaimSubmitted         EventKind = "claim_submitted"
	EventClaimApproved          EventKind = "claim_approved"
	EventClaimRejected          EventKind = "claim_rejected"
	EventClaimOverridden        EventKind = "claim_overridden"
	EventClaimReport            EventKind = "claim_report"
	EventDiscountRateUpdated    EventKind = "discount_rate_updated"
	EventDiscountEligibilitySet EventKind = "discount_eligibility_set"
	EventReservesDeposited      EventKind = "reserves_deposited"
	EventFundsWithdrawn         EventKind = "funds_withdrawn"
	EventCatastropheDeposited   EventKind = "catastrophe_deposited"
	EventCatastropheReleased    EventKind = "catastrophe_released"
	EventAdministratorUpdated   EventKind = "administrator_updated"
	EventOwnershipTransferred   EventKind = "ownership_transferred"
	EventPauseToggled           EventKind = "pause_toggled"
	EventParametersUpdated      EventKind = "parameters_updated"
)
