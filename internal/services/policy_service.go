package services

import (
	"context"
	"fmt"
	"slices"

	"insurance-ledger/internal/models"
)

const (
	// RenewalGraceTicks is how long after expiration a policy may still be renewed.
	RenewalGraceTicks uint64 = 1440
	// MaxBatchExpire bounds the ids accepted by one BatchExpire call.
	MaxBatchExpire = 10
)

type PolicyService struct {
	core *Core
}

func NewPolicyService(core *Core) *PolicyService {
	return &PolicyService{core: core}
}

func (tx *txn) validateTerm(term uint64) error {
	p := tx.settings.Parameters
	if term < p.MinTerm || term > p.MaxTerm {
		return fmt.Errorf("%w: term %d outside [%d, %d]", ErrInvalidParameters, term, p.MinTerm, p.MaxTerm)
	}
	return nil
}

// ownedActivePolicy loads a policy the caller owns in the active status.
func (tx *txn) ownedActivePolicy(id uint64) (models.Policy, error) {
	p, err := tx.policy(id)
	if err != nil {
		return p, err
	}
	if p.Owner != tx.caller {
		return p, fmt.Errorf("%w: policy %d is not owned by %s", ErrUnauthorized, id, tx.caller)
	}
	if p.Status != models.PolicyActive {
		return p, fmt.Errorf("%w: policy %d is %s", ErrInvalidState, id, p.Status)
	}
	return p, nil
}

// issue prices and charges a new term for the caller, then stages the new policy.
func (tx *txn) issue(basePremium, coverage, term uint64, previous *uint64, holder models.PolicyholderRecord) (models.Policy, error) {
	rate := discountedPremium(basePremium, holder, tx.discountRate())
	total, err := mul(rate, term)
	if err != nil {
		return models.Policy{}, err
	}
	expiration, err := add(tx.now, term)
	if err != nil {
		return models.Policy{}, err
	}
	if err := tx.ensureAffordable(tx.caller, total); err != nil {
		return models.Policy{}, err
	}
	if err := tx.collectPremium(tx.caller, total); err != nil {
		return models.Policy{}, err
	}

	p := tx.insertPolicy(models.Policy{
		Owner:            tx.caller,
		BasePremium:      basePremium,
		Premium:          rate,
		CoverageLimit:    coverage,
		EffectiveTick:    tx.now,
		ExpirationTick:   expiration,
		Status:           models.PolicyActive,
		PreviousPolicyID: previous,
		PremiumPaid:      total,
	})

	holder.PoliciesHeld++
	if err := recordActivity(&holder, tx.now, total, 0); err != nil {
		return models.Policy{}, err
	}
	tx.putHolder(holder)
	return p, nil
}

// Enroll issues a new active policy to the caller for the full discounted term premium.
func (s *PolicyService) Enroll(ctx context.Context, req models.EnrollRequest) (models.Policy, error) {
	var issued models.Policy
	err := s.core.execute(ctx, "enroll", func(tx *txn) error {
		if err := tx.requireOperational(); err != nil {
			return err
		}
		if req.BasePremium < tx.settings.MinPremium {
			return fmt.Errorf("%w: premium %d below minimum %d", ErrInvalidParameters, req.BasePremium, tx.settings.MinPremium)
		}
		if err := tx.validateTerm(req.Term); err != nil {
			return err
		}
		if req.CoverageLimit == 0 {
			return fmt.Errorf("%w: coverage limit must be positive", ErrInvalidParameters)
		}
		if err := checkStorable("premium", req.BasePremium); err != nil {
			return err
		}
		if err := checkStorable("coverage limit", req.CoverageLimit); err != nil {
			return err
		}

		p, err := tx.issue(req.BasePremium, req.CoverageLimit, req.Term, nil, tx.holder(tx.caller))
		if err != nil {
			return err
		}
		tx.emit(models.EventPolicyEnrolled, &p.ID, tx.caller,
			"premium=%d coverage=%d term=%d paid=%d", p.Premium, p.CoverageLimit, req.Term, p.PremiumPaid)
		issued = p
		return nil
	})
	return issued, err
}

// Renew replaces an active policy with a new term priced from the source's base
// premium. The window runs from the expiration tick through RenewalGraceTicks after it.
func (s *PolicyService) Renew(ctx context.Context, req models.RenewRequest) (models.Policy, error) {
	var renewed models.Policy
	err := s.core.execute(ctx, "renew", func(tx *txn) error {
		if err := tx.requireOperational(); err != nil {
			return err
		}
		src, err := tx.ownedActivePolicy(req.PolicyID)
		if err != nil {
			return err
		}
		if tx.now < src.ExpirationTick {
			return fmt.Errorf("%w: policy %d is renewable from tick %d", ErrInvalidState, src.ID, src.ExpirationTick)
		}
		deadline, err := add(src.ExpirationTick, RenewalGraceTicks)
		if err != nil {
			return err
		}
		if tx.now > deadline {
			return fmt.Errorf("%w: renewal window for policy %d closed at tick %d", ErrLapsed, src.ID, deadline)
		}
		if err := tx.validateTerm(req.Term); err != nil {
			return err
		}

		holder := tx.holder(tx.caller)
		applyRenewalOutcome(&holder, src.ClaimCount)

		previous := src.ID
		p, err := tx.issue(src.BasePremium, src.CoverageLimit, req.Term, &previous, holder)
		if err != nil {
			return err
		}
		src.Status = models.PolicyExpired
		tx.putPolicy(src)

		tx.emit(models.EventPolicyRenewed, &p.ID, tx.caller,
			"previous=%d premium=%d term=%d paid=%d claim_free_terms=%d",
			src.ID, p.Premium, req.Term, p.PremiumPaid, tx.holder(tx.caller).ClaimFreeTerms)
		renewed = p
		return nil
	})
	return renewed, err
}

// Extend pushes out the expiration of an active, non-lapsed policy at its current rate.
func (s *PolicyService) Extend(ctx context.Context, req models.ExtendRequest) (models.Policy, error) {
	var extended models.Policy
	err := s.core.execute(ctx, "extend", func(tx *txn) error {
		if err := tx.requireOperational(); err != nil {
			return err
		}
		p, err := tx.ownedActivePolicy(req.PolicyID)
		if err != nil {
			return err
		}
		if p.LapsedAt(tx.now) {
			return fmt.Errorf("%w: policy %d expired at tick %d", ErrLapsed, p.ID, p.ExpirationTick)
		}
		if req.AdditionalTerm == 0 {
			return fmt.Errorf("%w: additional term must be positive", ErrInvalidParameters)
		}
		expiration, err := add(p.ExpirationTick, req.AdditionalTerm)
		if err != nil {
			return err
		}
		if total := expiration - p.EffectiveTick; total > tx.settings.MaxTerm {
			return fmt.Errorf("%w: extended term %d exceeds maximum %d", ErrInvalidParameters, total, tx.settings.MaxTerm)
		}
		cost, err := mul(p.Premium, req.AdditionalTerm)
		if err != nil {
			return err
		}
		paid, err := add(p.PremiumPaid, cost)
		if err != nil {
			return err
		}
		if err := tx.ensureAffordable(tx.caller, cost); err != nil {
			return err
		}
		if err := tx.collectPremium(tx.caller, cost); err != nil {
			return err
		}

		p.ExpirationTick = expiration
		p.PremiumPaid = paid
		tx.putPolicy(p)

		holder := tx.holder(tx.caller)
		if err := recordActivity(&holder, tx.now, cost, 0); err != nil {
			return err
		}
		tx.putHolder(holder)

		tx.emit(models.EventPolicyExtended, &p.ID, tx.caller,
			"additional_term=%d expiration=%d cost=%d", req.AdditionalTerm, expiration, cost)
		extended = p
		return nil
	})
	return extended, err
}

// UpgradeCoverage raises the coverage limit and re-prices the rate linearly:
// new_rate = floor(old_rate * new_limit / old_limit), charged over the remaining ticks.
func (s *PolicyService) UpgradeCoverage(ctx context.Context, req models.UpgradeCoverageRequest) (models.UpgradeResult, error) {
	var result models.UpgradeResult
	err := s.core.execute(ctx, "upgrade_coverage", func(tx *txn) error {
		if err := tx.requireOperational(); err != nil {
			return err
		}
		p, err := tx.ownedActivePolicy(req.PolicyID)
		if err != nil {
			return err
		}
		if p.LapsedAt(tx.now) {
			return fmt.Errorf("%w: policy %d expired at tick %d", ErrLapsed, p.ID, p.ExpirationTick)
		}
		if p.CoverageLimit == 0 {
			return fmt.Errorf("%w: policy %d has no coverage to scale", ErrInvalidParameters, p.ID)
		}
		if req.NewCoverageLimit <= p.CoverageLimit {
			return fmt.Errorf("%w: new limit %d must exceed current %d", ErrInvalidParameters, req.NewCoverageLimit, p.CoverageLimit)
		}
		if err := checkStorable("coverage limit", req.NewCoverageLimit); err != nil {
			return err
		}

		rate, err := mulDiv(p.Premium, req.NewCoverageLimit, p.CoverageLimit)
		if err != nil {
			return err
		}
		base, err := mulDiv(p.BasePremium, req.NewCoverageLimit, p.CoverageLimit)
		if err != nil {
			return err
		}
		cost, err := mul(rate-p.Premium, p.ExpirationTick-tx.now)
		if err != nil {
			return err
		}
		paid, err := add(p.PremiumPaid, cost)
		if err != nil {
			return err
		}
		if err := tx.ensureAffordable(tx.caller, cost); err != nil {
			return err
		}
		if err := tx.collectPremium(tx.caller, cost); err != nil {
			return err
		}

		p.Premium = rate
		p.BasePremium = base
		p.CoverageLimit = req.NewCoverageLimit
		p.PremiumPaid = paid
		tx.putPolicy(p)

		holder := tx.holder(tx.caller)
		if err := recordActivity(&holder, tx.now, cost, 0); err != nil {
			return err
		}
		tx.putHolder(holder)

		tx.emit(models.EventCoverageUpgraded, &p.ID, tx.caller,
			"coverage=%d premium=%d cost=%d", p.CoverageLimit, rate, cost)
		result = models.UpgradeResult{PolicyID: p.ID, Charged: cost, NewPremium: rate}
		return nil
	})
	return result, err
}

// CancellationRefund is floor(premium_paid * ticks_remaining / total_term_ticks), zero for
// a zero-length term or once the expiration tick is reached.
func CancellationRefund(p models.Policy, now uint64) uint64 {
	total := p.TermTicks()
	if total == 0 || now >= p.ExpirationTick {
		return 0
	}
	return prorate(p.PremiumPaid, p.ExpirationTick-now, total)
}

// Cancel terminates an active policy owned by the caller and refunds the unused premium.
func (s *PolicyService) Cancel(ctx context.Context, policyID uint64) (models.CancellationResult, error) {
	var result models.CancellationResult
	err := s.core.execute(ctx, "cancel", func(tx *txn) error {
		if err := tx.requireOperational(); err != nil {
			return err
		}
		p, err := tx.ownedActivePolicy(policyID)
		if err != nil {
			return err
		}

		refund := CancellationRefund(p, tx.now)
		holder := tx.holder(tx.caller)
		if refund > 0 {
			if err := tx.payOut(tx.caller, refund); err != nil {
				return err
			}
			refunds, err := add(tx.settings.TotalRefunds, refund)
			if err != nil {
				return err
			}
			tx.settings.TotalRefunds = refunds
			lifetime, err := add(holder.LifetimeRefunds, refund)
			if err != nil {
				return err
			}
			holder.LifetimeRefunds = lifetime
		}
		holder.LastActivityTick = tx.now
		tx.putHolder(holder)

		p.Status = models.PolicyCancelled
		tx.putPolicy(p)

		tx.emit(models.EventPolicyCancelled, &p.ID, tx.caller, "refund=%d", refund)
		result = models.CancellationResult{PolicyID: p.ID, Refund: refund}
		return nil
	})
	return result, err
}

// BatchExpire flips up to MaxBatchExpire active, past-expiration policies to expired.
// Ids that do not qualify are skipped.
func (s *PolicyService) BatchExpire(ctx context.Context, ids []uint64) (models.BatchExpireResult, error) {
	result := models.BatchExpireResult{Requested: len(ids)}
	err := s.core.execute(ctx, "batch_expire", func(tx *txn) error {
		if err := tx.requireAdministrator(); err != nil {
			return err
		}
		if len(ids) > MaxBatchExpire {
			return fmt.Errorf("%w: %d ids exceeds batch limit %d", ErrInvalidParameters, len(ids), MaxBatchExpire)
		}

		expired := 0
		for _, id := range ids {
			p, err := tx.policy(id)
			if err != nil {
				continue
			}
			if p.Status != models.PolicyActive || !p.LapsedAt(tx.now) {
				continue
			}
			p.Status = models.PolicyExpired
			tx.putPolicy(p)
			expired++
		}

		tx.emit(models.EventPoliciesExpired, nil, tx.caller, "requested=%d expired=%d", len(ids), expired)
		result.Expired = expired
		return nil
	})
	return result, err
}

// ============================================================================
// READ-ONLY ACCESSORS
// ============================================================================

func (s *PolicyService) GetPolicy(id uint64) (models.Policy, error) {
	var (
		p   models.Policy
		err error
	)
	s.core.read(func(st *ledgerState) {
		if id >= uint64(len(st.policies)) {
			err = fmt.Errorf("%w: policy %d", ErrNotFound, id)
			return
		}
		p = st.policies[id]
	})
	return p, err
}

func (s *PolicyService) PoliciesByOwner(owner string) []models.Policy {
	var policies []models.Policy
	s.core.read(func(st *ledgerState) {
		for _, id := range st.policiesByOwner[owner] {
			policies = append(policies, st.policies[id])
		}
	})
	return policies
}

// ExpirableIDs lists active policies whose expiration tick plus grace has passed at now.
func (s *PolicyService) ExpirableIDs(now, grace uint64) []uint64 {
	var ids []uint64
	s.core.read(func(st *ledgerState) {
		for _, p := range st.policies {
			if p.Status == models.PolicyActive && now > p.ExpirationTick && now-p.ExpirationTick > grace {
				ids = append(ids, p.ID)
			}
		}
	})
	return slices.Clip(ids)
}

// QuoteRefund returns the refund Cancel would pay for the policy at the current tick.
func (s *PolicyService) QuoteRefund(id uint64) (uint64, error) {
	p, err := s.GetPolicy(id)
	if err != nil {
		return 0, err
	}
	if p.Status != models.PolicyActive {
		return 0, fmt.Errorf("%w: policy %d is %s", ErrInvalidState, id, p.Status)
	}
	return CancellationRefund(p, s.core.Now()), nil
}
