package services

import "insurance-ledger/internal/models"

// ============================================================================
// POLICYHOLDER HISTORY / DISCOUNT ENGINE
// ============================================================================

// discountedPremium subtracts floor(base*rate/100) when the holder is eligible.
// rate never exceeds 100, so the product is bounded by a 128-bit prorate.
func discountedPremium(base uint64, holder models.PolicyholderRecord, rate uint64) uint64 {
	if !holder.DiscountEligible || rate == 0 {
		return base
	}
	return base - prorate(base, min(rate, 100), 100)
}

// discountRate is the configured rate capped at the configured maximum.
func (tx *txn) discountRate() uint64 {
	return min(tx.settings.DiscountRate, tx.settings.MaxDiscount)
}

// recordActivity merges additive deltas into lifetime totals and stamps the activity tick.
func recordActivity(holder *models.PolicyholderRecord, now, premiumDelta, payoutDelta uint64) error {
	premiums, err := add(holder.LifetimePremiums, premiumDelta)
	if err != nil {
		return err
	}
	payouts, err := add(holder.LifetimePayouts, payoutDelta)
	if err != nil {
		return err
	}
	holder.LifetimePremiums = premiums
	holder.LifetimePayouts = payouts
	holder.LastActivityTick = now
	return nil
}

// applyRenewalOutcome recomputes eligibility from the claim count of the term being renewed.
func applyRenewalOutcome(holder *models.PolicyholderRecord, claimCount uint64) {
	if claimCount == 0 {
		holder.ClaimFreeTerms++
		holder.DiscountEligible = true
		return
	}
	holder.ClaimFreeTerms = 0
	holder.DiscountEligible = false
}
