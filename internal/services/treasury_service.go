package services

import (
	"context"
	"fmt"

	"insurance-ledger/internal/models"
)

type TreasuryService struct {
	core *Core
}

func NewTreasuryService(core *Core) *TreasuryService {
	return &TreasuryService{core: core}
}

// DepositToReserves moves amount from the caller into the treasury and credits the reserve.
func (s *TreasuryService) DepositToReserves(ctx context.Context, amount uint64) (models.Reserves, error) {
	var reserves models.Reserves
	err := s.core.execute(ctx, "deposit_reserves", func(tx *txn) error {
		if err := tx.requireAdministrator(); err != nil {
			return err
		}
		if amount == 0 {
			return fmt.Errorf("%w: deposit must be positive", ErrInvalidParameters)
		}
		if err := tx.ensureAffordable(tx.caller, amount); err != nil {
			return err
		}
		if err := tx.creditReserve(amount); err != nil {
			return err
		}
		if err := tx.charge(amount, tx.caller, tx.settings.Treasury); err != nil {
			return err
		}
		tx.emit(models.EventReservesDeposited, nil, tx.caller, "amount=%d balance=%d", amount, tx.settings.Reserves.Balance)
		reserves = tx.settings.Reserves
		return nil
	})
	return reserves, err
}

// WithdrawFunds debits the reserve and pays recipient from the treasury. An empty
// recipient pays the caller.
func (s *TreasuryService) WithdrawFunds(ctx context.Context, req models.WithdrawRequest) (models.Reserves, error) {
	var reserves models.Reserves
	err := s.core.execute(ctx, "withdraw_funds", func(tx *txn) error {
		if err := tx.requireOwner(); err != nil {
			return err
		}
		if req.Amount == 0 {
			return fmt.Errorf("%w: withdrawal must be positive", ErrInvalidParameters)
		}
		recipient := req.Recipient
		if recipient == "" {
			recipient = tx.caller
		}
		if recipient == tx.settings.Treasury {
			return fmt.Errorf("%w: cannot withdraw to the treasury account", ErrInvalidParameters)
		}
		if err := tx.payOut(recipient, req.Amount); err != nil {
			return err
		}
		tx.emit(models.EventFundsWithdrawn, nil, recipient, "amount=%d balance=%d", req.Amount, tx.settings.Reserves.Balance)
		reserves = tx.settings.Reserves
		return nil
	})
	return reserves, err
}

// DepositToCatastropheFund earmarks part of the reserve for large-scale events.
func (s *TreasuryService) DepositToCatastropheFund(ctx context.Context, amount uint64) (models.Reserves, error) {
	var reserves models.Reserves
	err := s.core.execute(ctx, "deposit_catastrophe", func(tx *txn) error {
		if err := tx.requireAdministrator(); err != nil {
			return err
		}
		if amount == 0 {
			return fmt.Errorf("%w: amount must be positive", ErrInvalidParameters)
		}
		if err := tx.moveToCatastrophe(amount); err != nil {
			return err
		}
		tx.emit(models.EventCatastropheDeposited, nil, tx.caller,
			"amount=%d catastrophe_fund=%d", amount, tx.settings.CatastropheFund)
		reserves = tx.settings.Reserves
		return nil
	})
	return reserves, err
}

// ReleaseCatastropheFund returns earmarked funds to the general reserve.
func (s *TreasuryService) ReleaseCatastropheFund(ctx context.Context, amount uint64) (models.Reserves, error) {
	var reserves models.Reserves
	err := s.core.execute(ctx, "release_catastrophe", func(tx *txn) error {
		if err := tx.requireAdministrator(); err != nil {
			return err
		}
		if amount == 0 {
			return fmt.Errorf("%w: amount must be positive", ErrInvalidParameters)
		}
		if err := tx.releaseCatastrophe(amount); err != nil {
			return err
		}
		tx.emit(models.EventCatastropheReleased, nil, tx.caller,
			"amount=%d catastrophe_fund=%d", amount, tx.settings.CatastropheFund)
		reserves = tx.settings.Reserves
		return nil
	})
	return reserves, err
}

func (s *TreasuryService) GetReserves() models.Reserves {
	return s.core.Settings().Reserves
}
