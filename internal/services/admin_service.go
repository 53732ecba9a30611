package services

import (
	"context"
	"fmt"

	"insurance-ledger/internal/models"
)

type AdminService struct {
	core *Core
}

func NewAdminService(core *Core) *AdminService {
	return &AdminService{core: core}
}

// Initialize configures the ledger once. An empty owner defaults to the caller.
func (s *AdminService) Initialize(ctx context.Context, req models.InitializeRequest) (models.Settings, error) {
	var settings models.Settings
	err := s.core.execute(ctx, "initialize", func(tx *txn) error {
		if tx.settings.Initialized {
			return ErrAlreadyInitialized
		}
		owner := req.Owner
		if owner == "" {
			owner = tx.caller
		}
		if req.Treasury == "" {
			return fmt.Errorf("%w: treasury account is required", ErrInvalidParameters)
		}
		if err := req.Parameters.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidParameters, err)
		}
		tx.settings.Owner = owner
		tx.settings.Treasury = req.Treasury
		tx.settings.Parameters = req.Parameters
		tx.settings.Initialized = true

		tx.emit(models.EventLedgerInitialized, nil, owner, "treasury=%s min_premium=%d min_term=%d max_term=%d",
			req.Treasury, req.Parameters.MinPremium, req.Parameters.MinTerm, req.Parameters.MaxTerm)
		settings = tx.settings
		return nil
	})
	return settings, err
}

// SetAdministrator adds or removes account from the administrator set. Repeating the
// current value succeeds.
func (s *AdminService) SetAdministrator(ctx context.Context, req models.AdministratorRequest) error {
	return s.core.execute(ctx, "set_administrator", func(tx *txn) error {
		if err := tx.requireOwner(); err != nil {
			return err
		}
		if req.Account == "" {
			return fmt.Errorf("%w: account is required", ErrInvalidParameters)
		}
		tx.setAdministrator(req.Account, req.Enabled)
		tx.emit(models.EventAdministratorUpdated, nil, req.Account, "enabled=%t", req.Enabled)
		return nil
	})
}

func (s *AdminService) TransferOwnership(ctx context.Context, newOwner string) error {
	return s.core.execute(ctx, "transfer_ownership", func(tx *txn) error {
		if err := tx.requireOwner(); err != nil {
			return err
		}
		if newOwner == "" {
			return fmt.Errorf("%w: new owner is required", ErrInvalidParameters)
		}
		if newOwner == tx.caller {
			return fmt.Errorf("%w: %s already owns the ledger", ErrSelfTransfer, newOwner)
		}
		previous := tx.settings.Owner
		tx.settings.Owner = newOwner
		tx.emit(models.EventOwnershipTransferred, nil, newOwner, "from=%s", previous)
		return nil
	})
}

// TogglePause flips the pause flag and returns its new value.
func (s *AdminService) TogglePause(ctx context.Context) (bool, error) {
	var paused bool
	err := s.core.execute(ctx, "toggle_pause", func(tx *txn) error {
		if err := tx.requireAdministrator(); err != nil {
			return err
		}
		tx.settings.Paused = !tx.settings.Paused
		paused = tx.settings.Paused
		tx.emit(models.EventPauseToggled, nil, tx.caller, "paused=%t", paused)
		return nil
	})
	return paused, err
}

func (s *AdminService) UpdateParameters(ctx context.Context, params models.Parameters) (models.Parameters, error) {
	err := s.core.execute(ctx, "update_parameters", func(tx *txn) error {
		if err := tx.requireOwner(); err != nil {
			return err
		}
		if err := params.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidParameters, err)
		}
		tx.settings.Parameters = params
		tx.emit(models.EventParametersUpdated, nil, tx.caller,
			"min_premium=%d min_term=%d max_term=%d max_discount=%d discount_rate=%d claim_fee=%d",
			params.MinPremium, params.MinTerm, params.MaxTerm, params.MaxDiscount, params.DiscountRate, params.ClaimFee)
		return nil
	})
	if err != nil {
		return models.Parameters{}, err
	}
	return params, nil
}

func (s *AdminService) GetParameters() models.Parameters {
	return s.core.Settings().Parameters
}
