package worker

import (
	"context"
	"fmt"
	"log/slog"

	"insurance-ledger/internal/models"
	"insurance-ledger/internal/services"
)

type policyExpirer interface {
	ExpirableIDs(now, grace uint64) []uint64
	BatchExpire(ctx context.Context, ids []uint64) (models.BatchExpireResult, error)
}

type ledgerView interface {
	Now() uint64
	Settings() models.Settings
}

// ExpirySweeper expires active policies whose renewal window has closed, acting as
// the ledger owner.
type ExpirySweeper struct {
	policies policyExpirer
	ledger   ledgerView
}

func NewExpirySweeper(policies policyExpirer, ledger ledgerView) *ExpirySweeper {
	return &ExpirySweeper{
		policies: policies,
		ledger:   ledger,
	}
}

// Sweep runs one pass and returns the number of policies expired.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int, error) {
	settings := s.ledger.Settings()
	if !settings.Initialized || settings.Owner == "" {
		return 0, nil
	}

	ids := s.policies.ExpirableIDs(s.ledger.Now(), services.RenewalGraceTicks)
	if len(ids) == 0 {
		return 0, nil
	}

	ctx = services.WithCaller(ctx, settings.Owner)
	expired := 0
	for start := 0; start < len(ids); start += services.MaxBatchExpire {
		chunk := ids[start:min(start+services.MaxBatchExpire, len(ids))]
		result, err := s.policies.BatchExpire(ctx, chunk)
		if err != nil {
			return expired, fmt.Errorf("batch expire of %d policies failed: %w", len(chunk), err)
		}
		expired += result.Expired
	}

	slog.Info("Expiry sweep finished", "candidates", len(ids), "expired", expired)
	return expired, nil
}

// Job adapts the sweeper to the working pool.
func (s *ExpirySweeper) Job() Job {
	return func(ctx context.Context) error {
		_, err := s.Sweep(ctx)
		return err
	}
}
