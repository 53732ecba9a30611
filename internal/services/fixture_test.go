package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"insurance-ledger/internal/clock"
	"insurance-ledger/internal/funds"
	"insurance-ledger/internal/models"

	"github.com/stretchr/testify/require"
)

const (
	testOwner    = "owner"
	testTreasury = "treasury"
)

// ============================================================================
// FAKE STORE
// ============================================================================

type fakeStore struct {
	mu        sync.Mutex
	snapshot  *models.Snapshot
	saveErr   error
	commitErr error
	begins    int
	commits   int
	rollbacks int
	writes    int
}

func (s *fakeStore) Load(context.Context) (*models.Snapshot, error) {
	if s.snapshot == nil {
		return &models.Snapshot{}, nil
	}
	return s.snapshot, nil
}

func (s *fakeStore) Begin(context.Context) (StoreTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	return &fakeStoreTx{store: s}, nil
}

type fakeStoreTx struct {
	store  *fakeStore
	writes int
}

func (t *fakeStoreTx) write() error {
	if t.store.saveErr != nil {
		return t.store.saveErr
	}
	t.writes++
	return nil
}

func (t *fakeStoreTx) SaveSettings(context.Context, models.Settings) error       { return t.write() }
func (t *fakeStoreTx) SaveAdministrator(context.Context, string, bool) error     { return t.write() }
func (t *fakeStoreTx) SavePolicy(context.Context, models.Policy) error           { return t.write() }
func (t *fakeStoreTx) SaveClaim(context.Context, models.Claim) error             { return t.write() }
func (t *fakeStoreTx) SaveHolder(context.Context, models.PolicyholderRecord) error { return t.write() }
func (t *fakeStoreTx) AppendEvent(context.Context, models.Event) error           { return t.write() }

func (t *fakeStoreTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.commitErr != nil {
		return t.store.commitErr
	}
	t.store.commits++
	t.store.writes += t.writes
	return nil
}

func (t *fakeStoreTx) Rollback() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.rollbacks++
	return nil
}

// failingFunds reports every account as funded but fails the transfer itself.
type failingFunds struct {
	*funds.MemoryBank
	transferErr error
}

func (f *failingFunds) Transfer(ctx context.Context, amount uint64, from, to string) error {
	if f.transferErr != nil {
		return f.transferErr
	}
	return f.MemoryBank.Transfer(ctx, amount, from, to)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
	err    error
	delay  time.Duration
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, e models.Event) error {
	if p.delay > 0 && e.ID%2 == 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type fakeArchiver struct {
	reports []models.ClaimReport
	err     error
}

func (a *fakeArchiver) ArchiveClaimReport(_ context.Context, report models.ClaimReport) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.reports = append(a.reports, report)
	return "http://minio/claim-reports/report.json", nil
}

// ============================================================================
// LEDGER FIXTURE
// ============================================================================

type testLedger struct {
	core      *Core
	clock     *clock.Manual
	bank      *funds.MemoryBank
	store     *fakeStore
	publisher *recordingPublisher
	archiver  *fakeArchiver

	policies *PolicyService
	claims   *ClaimService
	treasury *TreasuryService
	discount *DiscountService
	admin    *AdminService
}

func testParameters() models.Parameters {
	return models.Parameters{
		MinPremium:   1,
		MinTerm:      10,
		MaxTerm:      1000,
		MaxDiscount:  50,
		DiscountRate: 10,
		ClaimFee:     0,
	}
}

func newUninitializedLedger(t *testing.T, fundsImpl Funds, bank *funds.MemoryBank) *testLedger {
	t.Helper()
	l := &testLedger{
		clock:     clock.NewManual(0),
		bank:      bank,
		store:     &fakeStore{},
		publisher: &recordingPublisher{},
		archiver:  &fakeArchiver{},
	}
	l.core = NewCore(l.clock, fundsImpl, l.store, WithPublisher(l.publisher))
	l.policies = NewPolicyService(l.core)
	l.claims = NewClaimService(l.core, l.archiver)
	l.treasury = NewTreasuryService(l.core)
	l.discount = NewDiscountService(l.core)
	l.admin = NewAdminService(l.core)
	return l
}

func newTestLedger(t *testing.T, params models.Parameters) *testLedger {
	t.Helper()
	bank := funds.NewMemoryBank()
	l := newUninitializedLedger(t, bank, bank)
	_, err := l.admin.Initialize(as(testOwner), models.InitializeRequest{
		Owner:      testOwner,
		Treasury:   testTreasury,
		Parameters: params,
	})
	require.NoError(t, err)
	return l
}

func as(account string) context.Context {
	return WithCaller(context.Background(), account)
}

func (l *testLedger) fund(t *testing.T, account string, amount uint64) {
	t.Helper()
	require.NoError(t, l.bank.Deposit(context.Background(), account, amount))
}

func (l *testLedger) balance(t *testing.T, account string) uint64 {
	t.Helper()
	b, err := l.bank.Balance(context.Background(), account)
	require.NoError(t, err)
	return b
}

func (l *testLedger) enroll(t *testing.T, account string, premium, coverage, term uint64) models.Policy {
	t.Helper()
	p, err := l.policies.Enroll(as(account), models.EnrollRequest{BasePremium: premium, CoverageLimit: coverage, Term: term})
	require.NoError(t, err)
	return p
}

func (l *testLedger) fileClaim(t *testing.T, account string, policyID, amount uint64) models.Claim {
	t.Helper()
	cl, err := l.claims.SubmitClaim(as(account), models.SubmitClaimRequest{
		PolicyID:     policyID,
		Amount:       amount,
		Description:  "storm damage",
		IncidentTick: l.clock.Now(),
	})
	require.NoError(t, err)
	return cl
}

func (l *testLedger) reserves() models.Reserves {
	return l.treasury.GetReserves()
}
