package services

import "fmt"

// ============================================================================
// RESERVE LEDGER
// ============================================================================

func (tx *txn) creditReserve(amount uint64) error {
	balance, err := add(tx.settings.Reserves.Balance, amount)
	if err != nil {
		return err
	}
	tx.settings.Reserves.Balance = balance
	return nil
}

// debitReserve rejects, never clamps, a debit larger than the balance.
func (tx *txn) debitReserve(amount uint64) error {
	if amount > tx.settings.Reserves.Balance {
		return fmt.Errorf("%w: reserve holds %d, needs %d", ErrInsufficientFunds, tx.settings.Reserves.Balance, amount)
	}
	tx.settings.Reserves.Balance -= amount
	return nil
}

// moveToCatastrophe debits the reserve and credits the catastrophe fund as one step.
func (tx *txn) moveToCatastrophe(amount uint64) error {
	r := tx.settings.Reserves
	if amount > r.Balance {
		return fmt.Errorf("%w: reserve holds %d, needs %d", ErrInsufficientFunds, r.Balance, amount)
	}
	fund, err := add(r.CatastropheFund, amount)
	if err != nil {
		return err
	}
	r.Balance -= amount
	r.CatastropheFund = fund
	tx.settings.Reserves = r
	return nil
}

// releaseCatastrophe debits the catastrophe fund and credits the reserve as one step.
func (tx *txn) releaseCatastrophe(amount uint64) error {
	r := tx.settings.Reserves
	if amount > r.CatastropheFund {
		return fmt.Errorf("%w: catastrophe fund holds %d, needs %d", ErrInsufficientFunds, r.CatastropheFund, amount)
	}
	balance, err := add(r.Balance, amount)
	if err != nil {
		return err
	}
	r.CatastropheFund -= amount
	r.Balance = balance
	tx.settings.Reserves = r
	return nil
}

// collectPremium credits the reserve with a premium payment and stages the transfer from payer.
func (tx *txn) collectPremium(payer string, amount uint64) error {
	if err := tx.creditReserve(amount); err != nil {
		return err
	}
	total, err := add(tx.settings.Reserves.TotalPremiums, amount)
	if err != nil {
		return err
	}
	tx.settings.Reserves.TotalPremiums = total
	return tx.charge(amount, payer, tx.settings.Treasury)
}

// payOut debits the reserve before staging the transfer to beneficiary.
func (tx *txn) payOut(beneficiary string, amount uint64) error {
	if err := tx.debitReserve(amount); err != nil {
		return err
	}
	return tx.charge(amount, tx.settings.Treasury, beneficiary)
}
