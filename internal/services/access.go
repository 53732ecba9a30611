package services

import "fmt"

// isOwner is strict equality to the single owner identifier.
func (tx *txn) isOwner(account string) bool {
	return account != "" && account == tx.settings.Owner
}

// isAdministrator resolves the owner-is-administrator rule and the administrator set in one place.
func (tx *txn) isAdministrator(account string) bool {
	if tx.isOwner(account) {
		return true
	}
	if enabled, ok := tx.admins[account]; ok {
		return enabled
	}
	return tx.base.admins[account]
}

func (tx *txn) requireInitialized() error {
	if !tx.settings.Initialized {
		return fmt.Errorf("%w: ledger not initialized", ErrInvalidState)
	}
	return nil
}

// requireOperational gates the policyholder operations: initialized and not paused.
func (tx *txn) requireOperational() error {
	if err := tx.requireInitialized(); err != nil {
		return err
	}
	if tx.settings.Paused {
		return fmt.Errorf("%w: %s rejected", ErrPaused, tx.op)
	}
	return nil
}

func (tx *txn) requireOwner() error {
	if err := tx.requireInitialized(); err != nil {
		return err
	}
	if !tx.isOwner(tx.caller) {
		return fmt.Errorf("%w: %s is owner-only", ErrUnauthorized, tx.op)
	}
	return nil
}

func (tx *txn) requireAdministrator() error {
	if err := tx.requireInitialized(); err != nil {
		return err
	}
	if !tx.isAdministrator(tx.caller) {
		return fmt.Errorf("%w: %s requires an administrator", ErrUnauthorized, tx.op)
	}
	return nil
}

// IsOwner reports whether account is the current owner.
func (c *Core) IsOwner(account string) bool {
	var ok bool
	c.read(func(s *ledgerState) {
		ok = account != "" && account == s.settings.Owner
	})
	return ok
}

// IsAdministrator reports whether account is the owner or an enabled administrator.
func (c *Core) IsAdministrator(account string) bool {
	var ok bool
	c.read(func(s *ledgerState) {
		ok = account != "" && (account == s.settings.Owner || s.admins[account])
	})
	return ok
}
