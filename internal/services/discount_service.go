package services

import (
	"context"
	"fmt"

	"insurance-ledger/internal/models"
)

type DiscountService struct {
	core *Core
}

func NewDiscountService(core *Core) *DiscountService {
	return &DiscountService{core: core}
}

// UpdateDiscountRate sets the percentage granted to eligible holders, capped by max_discount.
func (s *DiscountService) UpdateDiscountRate(ctx context.Context, rate uint64) error {
	return s.core.execute(ctx, "update_discount_rate", func(tx *txn) error {
		if err := tx.requireAdministrator(); err != nil {
			return err
		}
		if rate > tx.settings.MaxDiscount {
			return fmt.Errorf("%w: rate %d exceeds max discount %d", ErrInvalidParameters, rate, tx.settings.MaxDiscount)
		}
		previous := tx.settings.DiscountRate
		tx.settings.DiscountRate = rate
		tx.emit(models.EventDiscountRateUpdated, nil, tx.caller, "from=%d to=%d", previous, rate)
		return nil
	})
}

// SetDiscountEligibility overrides the eligibility flag without touching the claim-free counter.
func (s *DiscountService) SetDiscountEligibility(ctx context.Context, req models.DiscountEligibilityRequest) (models.PolicyholderRecord, error) {
	var holder models.PolicyholderRecord
	err := s.core.execute(ctx, "set_discount_eligibility", func(tx *txn) error {
		if err := tx.requireAdministrator(); err != nil {
			return err
		}
		if req.Account == "" {
			return fmt.Errorf("%w: account is required", ErrInvalidParameters)
		}
		holder = tx.holder(req.Account)
		holder.DiscountEligible = req.Eligible
		tx.putHolder(holder)
		tx.emit(models.EventDiscountEligibilitySet, nil, req.Account, "eligible=%t", req.Eligible)
		return nil
	})
	return holder, err
}

// GetHolder returns the stored record for account, or a zero record that is not persisted.
func (s *DiscountService) GetHolder(account string) models.PolicyholderRecord {
	var holder models.PolicyholderRecord
	s.core.read(func(st *ledgerState) {
		holder = st.holder(account)
	})
	return holder
}

// DiscountedPremium quotes the per-tick rate account would pay for basePremium right now.
func (s *DiscountService) DiscountedPremium(basePremium uint64, account string) uint64 {
	var rate uint64
	s.core.read(func(st *ledgerState) {
		r := min(st.settings.DiscountRate, st.settings.MaxDiscount)
		rate = discountedPremium(basePremium, st.holder(account), r)
	})
	return rate
}
