package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"insurance-ledger/internal/models"
	"insurance-ledger/internal/services"
	"insurance-ledger/internal/utils"

	"github.com/jmoiron/sqlx"
)

// PostgresStore mirrors the ledger tables in postgres. Rows are upserted by id, never deleted.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type administratorRow struct {
	Account string `db:"account"`
	Enabled bool   `db:"enabled"`
}

// Load reads every table in id order.
func (r *PostgresStore) Load(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{Administrators: make(map[string]bool)}

	settingsQuery := `
		SELECT owner, treasury, paused, initialized,
		       min_premium, min_term, max_term, max_discount, discount_rate, claim_fee,
		       reserve_balance, catastrophe_fund, total_premiums, total_fees, total_claims_paid, total_refunds
		FROM ledger_settings
		WHERE id = 1
	`
	err := r.db.GetContext(ctx, &snap.Settings, settingsQuery)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load ledger settings: %w", err)
	}

	var admins []administratorRow
	if err := r.db.SelectContext(ctx, &admins, `SELECT account, enabled FROM ledger_administrator`); err != nil {
		return nil, fmt.Errorf("failed to load administrators: %w", err)
	}
	for _, a := range admins {
		snap.Administrators[a.Account] = a.Enabled
	}

	policyQuery := `
		SELECT id, owner, base_premium, premium, coverage_limit, effective_tick, expiration_tick,
		       status, previous_policy_id, claim_count, premium_paid, total_settled
		FROM policy
		ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &snap.Policies, policyQuery); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	claimQuery := `
		SELECT id, policy_id, claimant, requested_amount, description, incident_tick, filed_tick,
		       status, settlement_tick, settlement_amount
		FROM claim
		ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &snap.Claims, claimQuery); err != nil {
		return nil, fmt.Errorf("failed to load claims: %w", err)
	}

	holderQuery := `
		SELECT account, policies_held, claims_filed, claim_free_terms, discount_eligible,
		       last_activity_tick, lifetime_premiums, lifetime_payouts, lifetime_refunds
		FROM policyholder
		ORDER BY account
	`
	if err := r.db.SelectContext(ctx, &snap.Holders, holderQuery); err != nil {
		return nil, fmt.Errorf("failed to load policyholders: %w", err)
	}

	eventQuery := `
		SELECT id, kind, payload, entity_id, account, tick
		FROM ledger_event
		ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &snap.Events, eventQuery); err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	return snap, nil
}

// ============================================================================
// TRANSACTION SUPPORT
// ============================================================================

func (r *PostgresStore) Begin(ctx context.Context) (services.StoreTx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		slog.Error("Failed to begin transaction", "error", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &postgresTx{tx: tx}, nil
}

type postgresTx struct {
	tx *sqlx.Tx
}

func (t *postgresTx) SaveSettings(ctx context.Context, settings models.Settings) error {
	query := `
		INSERT INTO ledger_settings (
			id, owner, treasury, paused, initialized,
			min_premium, min_term, max_term, max_discount, discount_rate, claim_fee,
			reserve_balance, catastrophe_fund, total_premiums, total_fees, total_claims_paid, total_refunds
		) VALUES (
			1, :owner, :treasury, :paused, :initialized,
			:min_premium, :min_term, :max_term, :max_discount, :discount_rate, :claim_fee,
			:reserve_balance, :catastrophe_fund, :total_premiums, :total_fees, :total_claims_paid, :total_refunds
		)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner, treasury = EXCLUDED.treasury,
			paused = EXCLUDED.paused, initialized = EXCLUDED.initialized,
			min_premium = EXCLUDED.min_premium, min_term = EXCLUDED.min_term, max_term = EXCLUDED.max_term,
			max_discount = EXCLUDED.max_discount, discount_rate = EXCLUDED.discount_rate, claim_fee = EXCLUDED.claim_fee,
			reserve_balance = EXCLUDED.reserve_balance, catastrophe_fund = EXCLUDED.catastrophe_fund,
			total_premiums = EXCLUDED.total_premiums, total_fees = EXCLUDED.total_fees,
			total_claims_paid = EXCLUDED.total_claims_paid, total_refunds = EXCLUDED.total_refunds`

	result, err := t.tx.NamedExecContext(ctx, query, settings)
	if err := utils.CheckExec(result, err, utils.ExecUpsert); err != nil {
		return fmt.Errorf("failed to save ledger settings: %w", err)
	}
	return nil
}

func (t *postgresTx) SaveAdministrator(ctx context.Context, account string, enabled bool) error {
	query := `
		INSERT INTO ledger_administrator (account, enabled) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET enabled = EXCLUDED.enabled`

	result, err := t.tx.ExecContext(ctx, query, account, enabled)
	if err := utils.CheckExec(result, err, utils.ExecUpsert); err != nil {
		return fmt.Errorf("failed to save administrator %s: %w", account, err)
	}
	return nil
}

func (t *postgresTx) SavePolicy(ctx context.Context, policy models.Policy) error {
	query := `
		INSERT INTO policy (
			id, owner, base_premium, premium, coverage_limit, effective_tick, expiration_tick,
			status, previous_policy_id, claim_count, premium_paid, total_settled
		) VALUES (
			:id, :owner, :base_premium, :premium, :coverage_limit, :effective_tick, :expiration_tick,
			:status, :previous_policy_id, :claim_count, :premium_paid, :total_settled
		)
		ON CONFLICT (id) DO UPDATE SET
			base_premium = EXCLUDED.base_premium, premium = EXCLUDED.premium,
			coverage_limit = EXCLUDED.coverage_limit, expiration_tick = EXCLUDED.expiration_tick,
			status = EXCLUDED.status, claim_count = EXCLUDED.claim_count,
			premium_paid = EXCLUDED.premium_paid, total_settled = EXCLUDED.total_settled`

	result, err := t.tx.NamedExecContext(ctx, query, policy)
	if err := utils.CheckExec(result, err, utils.ExecUpsert); err != nil {
		return fmt.Errorf("failed to save policy %d: %w", policy.ID, err)
	}
	return nil
}

func (t *postgresTx) SaveClaim(ctx context.Context, claim models.Claim) error {
	query := `
		INSERT INTO claim (
			id, policy_id, claimant, requested_amount, description, incident_tick, filed_tick,
			status, settlement_tick, settlement_amount
		) VALUES (
			:id, :policy_id, :claimant, :requested_amount, :description, :incident_tick, :filed_tick,
			:status, :settlement_tick, :settlement_amount
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, settlement_tick = EXCLUDED.settlement_tick,
			settlement_amount = EXCLUDED.settlement_amount`

	result, err := t.tx.NamedExecContext(ctx, query, claim)
	if err := utils.CheckExec(result, err, utils.ExecUpsert); err != nil {
		return fmt.Errorf("failed to save claim %d: %w", claim.ID, err)
	}
	return nil
}

func (t *postgresTx) SaveHolder(ctx context.Context, holder models.PolicyholderRecord) error {
	query := `
		INSERT INTO policyholder (
			account, policies_held, claims_filed, claim_free_terms, discount_eligible,
			last_activity_tick, lifetime_premiums, lifetime_payouts, lifetime_refunds
		) VALUES (
			:account, :policies_held, :claims_filed, :claim_free_terms, :discount_eligible,
			:last_activity_tick, :lifetime_premiums, :lifetime_payouts, :lifetime_refunds
		)
		ON CONFLICT (account) DO UPDATE SET
			policies_held = EXCLUDED.policies_held, claims_filed = EXCLUDED.claims_filed,
			claim_free_terms = EXCLUDED.claim_free_terms, discount_eligible = EXCLUDED.discount_eligible,
			last_activity_tick = EXCLUDED.last_activity_tick, lifetime_premiums = EXCLUDED.lifetime_premiums,
			lifetime_payouts = EXCLUDED.lifetime_payouts, lifetime_refunds = EXCLUDED.lifetime_refunds`

	result, err := t.tx.NamedExecContext(ctx, query, holder)
	if err := utils.CheckExec(result, err, utils.ExecUpsert); err != nil {
		return fmt.Errorf("failed to save policyholder %s: %w", holder.Account, err)
	}
	return nil
}

// AppendEvent inserts without an upsert clause: an id collision is an error.
func (t *postgresTx) AppendEvent(ctx context.Context, event models.Event) error {
	query := `
		INSERT INTO ledger_event (id, kind, payload, entity_id, account, tick)
		VALUES (:id, :kind, :payload, :entity_id, :account, :tick)`

	result, err := t.tx.NamedExecContext(ctx, query, event)
	if err := utils.CheckExec(result, err, utils.ExecInsert); err != nil {
		return fmt.Errorf("failed to append event %d: %w", event.ID, err)
	}
	return nil
}

func (t *postgresTx) Commit() error {
	return t.tx.Commit()
}

func (t *postgresTx) Rollback() error {
	return t.tx.Rollback()
}
