package services

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"insurance-ledger/internal/models"
)

// MaxClaimDescription bounds the incident narrative, in characters.
const MaxClaimDescription = 500

// ReportArchiver stores a generated claim report and returns where it landed.
type ReportArchiver interface {
	ArchiveClaimReport(ctx context.Context, report models.ClaimReport) (string, error)
}

type ClaimService struct {
	core     *Core
	archiver ReportArchiver
}

func NewClaimService(core *Core, archiver ReportArchiver) *ClaimService {
	return &ClaimService{
		core:     core,
		archiver: archiver,
	}
}

// SubmitClaim files a pending claim against an active policy owned by the caller
// and charges the configured filing fee.
func (s *ClaimService) SubmitClaim(ctx context.Context, req models.SubmitClaimRequest) (models.Claim, error) {
	var filed models.Claim
	err := s.core.execute(ctx, "submit_claim", func(tx *txn) error {
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
		if req.Amount == 0 {
			return fmt.Errorf("%w: claim amount must be positive", ErrInvalidParameters)
		}
		if req.Amount > p.CoverageLimit {
			return fmt.Errorf("%w: claim of %d over coverage limit %d", ErrCoverageExceeded, req.Amount, p.CoverageLimit)
		}
		if utf8.RuneCountInString(req.Description) > MaxClaimDescription {
			return fmt.Errorf("%w: description longer than %d characters", ErrInvalidParameters, MaxClaimDescription)
		}
		if req.IncidentTick < p.EffectiveTick || req.IncidentTick > tx.now {
			return fmt.Errorf("%w: incident tick %d outside [%d, %d]", ErrInvalidParameters, req.IncidentTick, p.EffectiveTick, tx.now)
		}

		fee := tx.settings.ClaimFee
		if fee > 0 {
			if err := tx.ensureAffordable(tx.caller, fee); err != nil {
				return err
			}
			if err := tx.creditReserve(fee); err != nil {
				return err
			}
			fees, err := add(tx.settings.TotalFees, fee)
			if err != nil {
				return err
			}
			tx.settings.TotalFees = fees
			if err := tx.charge(fee, tx.caller, tx.settings.Treasury); err != nil {
				return err
			}
		}

		cl := tx.insertClaim(models.Claim{
			PolicyID:        p.ID,
			Claimant:        tx.caller,
			RequestedAmount: req.Amount,
			Description:     req.Description,
			IncidentTick:    req.IncidentTick,
			FiledTick:       tx.now,
			Status:          models.ClaimPending,
		})

		p.ClaimCount++
		tx.putPolicy(p)

		holder := tx.holder(tx.caller)
		holder.ClaimsFiled++
		holder.LastActivityTick = tx.now
		tx.putHolder(holder)

		tx.emit(models.EventClaimSubmitted, &cl.ID, tx.caller,
			"policy=%d amount=%d fee=%d", p.ID, req.Amount, fee)
		filed = cl
		return nil
	})
	return filed, err
}

// AdjudicateClaim settles or rejects a pending claim. An approval pays the
// settlement from the reserve to the policy owner.
func (s *ClaimService) AdjudicateClaim(ctx context.Context, claimID uint64, req models.AdjudicateClaimRequest) (models.Claim, error) {
	var decided models.Claim
	err := s.core.execute(ctx, "adjudicate_claim", func(tx *txn) error {
		if err := tx.requireAdministrator(); err != nil {
			return err
		}
		cl, err := tx.claim(claimID)
		if err != nil {
			return err
		}
		if cl.Status != models.ClaimPending {
			return fmt.Errorf("%w: claim %d already %s", ErrInvalidState, cl.ID, cl.Status)
		}

		if !req.Approve {
			cl.Status = models.ClaimRejected
			cl.SettlementTick = nil
			cl.SettlementAmount = nil
			tx.putClaim(cl)
			tx.emit(models.EventClaimRejected, &cl.ID, cl.Claimant, "policy=%d", cl.PolicyID)
			decided = cl
			return nil
		}

		p, err := tx.policy(cl.PolicyID)
		if err != nil {
			return err
		}
		amount := req.SettlementAmount
		if amount == 0 {
			return fmt.Errorf("%w: settlement must be positive", ErrInvalidParameters)
		}
		if amount > cl.RequestedAmount {
			return fmt.Errorf("%w: settlement %d over requested %d", ErrInvalidParameters, amount, cl.RequestedAmount)
		}
		if amount > p.CoverageLimit {
			return fmt.Errorf("%w: settlement %d over coverage limit %d", ErrCoverageExceeded, amount, p.CoverageLimit)
		}
		if remaining := p.CoverageLimit - min(p.TotalSettled, p.CoverageLimit); amount > remaining {
			return fmt.Errorf("%w: settlement %d over remaining cover %d", ErrCoverageExceeded, amount, remaining)
		}
		if err := tx.payOut(p.Owner, amount); err != nil {
			return err
		}
		paid, err := add(tx.settings.TotalClaimsPaid, amount)
		if err != nil {
			return err
		}
		tx.settings.TotalClaimsPaid = paid

		p.TotalSettled += amount
		if amount == p.CoverageLimit && p.Status == models.PolicyActive {
			p.Status = models.PolicyClaimed
		}
		tx.putPolicy(p)

		holder := tx.holder(p.Owner)
		if err := recordActivity(&holder, tx.now, 0, amount); err != nil {
			return err
		}
		tx.putHolder(holder)

		settledAt := tx.now
		cl.Status = models.ClaimApproved
		cl.SettlementTick = &settledAt
		cl.SettlementAmount = &amount
		tx.putClaim(cl)

		tx.emit(models.EventClaimApproved, &cl.ID, p.Owner,
			"policy=%d settlement=%d policy_status=%s", p.ID, amount, p.Status)
		decided = cl
		return nil
	})
	return decided, err
}

// OverrideClaimStatus overwrites a claim's status regardless of its current one.
// No funds move and settlement fields are left as they are.
func (s *ClaimService) OverrideClaimStatus(ctx context.Context, claimID uint64, status models.ClaimStatus) (models.Claim, error) {
	var overridden models.Claim
	err := s.core.execute(ctx, "override_claim", func(tx *txn) error {
		if err := tx.requireAdministrator(); err != nil {
			return err
		}
		if !status.Valid() {
			return fmt.Errorf("%w: unknown claim status %q", ErrInvalidParameters, status)
		}
		cl, err := tx.claim(claimID)
		if err != nil {
			return err
		}
		previous := cl.Status
		cl.Status = status
		tx.putClaim(cl)

		tx.emit(models.EventClaimOverridden, &cl.ID, tx.caller, "from=%s to=%s", previous, status)
		overridden = cl
		return nil
	})
	return overridden, err
}

// GenerateClaimReport assembles a claim report and records its generation. When an
// archiver is configured the report is uploaded after the operation commits.
func (s *ClaimService) GenerateClaimReport(ctx context.Context, claimID uint64) (models.ClaimReport, error) {
	var report models.ClaimReport
	err := s.core.execute(ctx, "generate_claim_report", func(tx *txn) error {
		if err := tx.requireAdministrator(); err != nil {
			return err
		}
		cl, err := tx.claim(claimID)
		if err != nil {
			return err
		}
		p, err := tx.policy(cl.PolicyID)
		if err != nil {
			return err
		}
		report = models.ClaimReport{
			Claim:           cl,
			Policy:          p,
			Holder:          tx.holder(p.Owner),
			RemainingCover:  p.CoverageLimit - min(p.TotalSettled, p.CoverageLimit),
			GeneratedAtTick: tx.now,
			GeneratedBy:     tx.caller,
		}
		tx.emit(models.EventClaimReport, &cl.ID, tx.caller, "policy=%d status=%s", p.ID, cl.Status)
		return nil
	})
	if err != nil {
		return models.ClaimReport{}, err
	}

	if s.archiver != nil {
		url, aerr := s.archiver.ArchiveClaimReport(ctx, report)
		if aerr != nil {
			slog.Warn("Failed to archive claim report", "claim_id", claimID, "error", aerr)
		} else {
			report.ArchiveURL = url
		}
	}
	return report, nil
}

// ============================================================================
// READ-ONLY ACCESSORS
// ============================================================================

func (s *ClaimService) GetClaim(id uint64) (models.Claim, error) {
	var (
		cl  models.Claim
		err error
	)
	s.core.read(func(st *ledgerState) {
		if id >= uint64(len(st.claims)) {
			err = fmt.Errorf("%w: claim %d", ErrNotFound, id)
			return
		}
		cl = st.claims[id]
	})
	return cl, err
}

func (s *ClaimService) ClaimsByPolicy(policyID uint64) ([]models.Claim, error) {
	var (
		claims []models.Claim
		err    error
	)
	s.core.read(func(st *ledgerState) {
		if policyID >= uint64(len(st.policies)) {
			err = fmt.Errorf("%w: policy %d", ErrNotFound, policyID)
			return
		}
		for _, id := range st.claimsByPolicy[policyID] {
			claims = append(claims, st.claims[id])
		}
	})
	return claims, err
}
