package invoice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/duewell/duewell/internal/collection"
	"github.com/duewell/duewell/internal/shared"
)

// memoryRepo is guarded by a mutex because the bulk operations fan out
// across goroutines.
type memoryRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*Invoice
	cases    map[uuid.UUID]*collection.Case
	saveErr  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices: make(map[uuid.UUID]*Invoice),
		cases:    make(map[uuid.UUID]*collection.Case),
	}
}

func (r *memoryRepo) Create(ctx context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inv
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, orgID, id uuid.UUID) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.OrgID != orgID {
		return nil, shared.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *memoryRepo) List(ctx context.Context, orgID uuid.UUID, f ListFilter) ([]Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.OrgID != orgID {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		out = append(out, *inv)
	}
	return out, nil
}

func (r *memoryRepo) ActiveCase(ctx context.Context, orgID, invoiceID uuid.UUID) (*collection.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cases {
		if c.OrgID == orgID && c.InvoiceID == invoiceID && c.Status != collection.CaseClosed {
			cp := *c
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) SaveTransition(ctx context.Context, inv *Invoice, kase *collection.Case, caseCreated bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	cpInv := *inv
	r.invoices[inv.ID] = &cpInv
	if kase != nil {
		cpCase := *kase
		r.cases[kase.ID] = &cpCase
	}
	return nil
}

func (r *memoryRepo) ListDueForOverdue(ctx context.Context, asOf time.Time, limit int) ([]Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if (inv.Status == StatusPending || inv.Status == StatusPartiallyPaid) && inv.DueDate.Before(asOf) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListBrokenPromises(ctx context.Context, asOf time.Time, limit int) ([]collection.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []collection.Case
	for _, c := range r.cases {
		if c.Stage != collection.StagePromiseToPay || c.Status == collection.CaseClosed {
			continue
		}
		if c.NextActionAt != nil && !c.NextActionAt.After(asOf) {
			out = append(out, *c)
		}
	}
	return out, nil
}

var serviceNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestService(repo *memoryRepo) (*Service, shared.TenantContext) {
	svc := NewService(repo, collection.NewCoordinator(collection.DefaultPlaybook()), nil, nil)
	svc.now = func() time.Time { return serviceNow }
	tc := shared.TenantContext{OrgID: uuid.New(), ActorID: uuid.New(), Role: shared.RoleAdmin}
	return svc, tc
}

func validInput() CreateInput {
	return CreateInput{
		CompanyID: uuid.New(),
		Number:    "INV-001",
		Amount:    decimal.RequireFromString("150.00"),
		Currency:  "EUR",
		IssueDate: serviceNow.AddDate(0, 0, -5),
		DueDate:   serviceNow.AddDate(0, 0, 25),
	}
}

func TestCreateDefaultsToDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)

	inv, err := svc.Create(context.Background(), tc, validInput())
	require.NoError(t, err)
	require.Equal(t, StatusDraft, inv.Status)
	require.Empty(t, repo.cases)
}

func TestCreatePendingOpensCase(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)

	input := validInput()
	input.Status = StatusPending
	inv, err := svc.Create(context.Background(), tc, input)
	require.NoError(t, err)
	require.Equal(t, StatusPending, inv.Status)

	kase, err := repo.ActiveCase(context.Background(), tc.OrgID, inv.ID)
	require.NoError(t, err)
	require.Equal(t, collection.StageInitial, kase.Stage)
	require.Equal(t, collection.CaseActive, kase.Status)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	ctx := context.Background()

	bad := validInput()
	bad.Amount = decimal.RequireFromString("100.555")
	_, err := svc.Create(ctx, tc, bad)
	require.ErrorIs(t, err, shared.ErrValidation)

	bad = validInput()
	bad.Currency = "BTC"
	_, err = svc.Create(ctx, tc, bad)
	require.ErrorIs(t, err, shared.ErrValidation)

	bad = validInput()
	bad.Number = "INV#1"
	_, err = svc.Create(ctx, tc, bad)
	require.ErrorIs(t, err, shared.ErrValidation)

	bad = validInput()
	bad.Status = StatusOverdue
	_, err = svc.Create(ctx, tc, bad)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateNormalizesNumber(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)

	input := validInput()
	input.Number = "  inv 001  "
	inv, err := svc.Create(context.Background(), tc, input)
	require.NoError(t, err)
	require.Equal(t, "INV001", inv.Number)
}

func seedInvoice(repo *memoryRepo, tc shared.TenantContext, status Status) *Invoice {
	inv := &Invoice{
		ID:        uuid.New(),
		OrgID:     tc.OrgID,
		CompanyID: uuid.New(),
		Number:    "INV-" + inv4(),
		Amount:    decimal.RequireFromString("500.00"),
		Currency:  "EUR",
		IssueDate: serviceNow.AddDate(0, -1, 0),
		DueDate:   serviceNow.AddDate(0, 0, -2),
		Status:    status,
		CreatedAt: serviceNow.AddDate(0, -1, 0),
		UpdatedAt: serviceNow.AddDate(0, -1, 0),
	}
	cp := *inv
	repo.invoices[inv.ID] = &cp
	return inv
}

func inv4() string {
	return uuid.NewString()[:4]
}

func seedCase(repo *memoryRepo, tc shared.TenantContext, invoiceID uuid.UUID, stage collection.Stage) *collection.Case {
	c := &collection.Case{
		ID:        uuid.New(),
		OrgID:     tc.OrgID,
		InvoiceID: invoiceID,
		CompanyID: uuid.New(),
		Stage:     stage,
		Status:    collection.CaseActive,
		CreatedAt: serviceNow.AddDate(0, 0, -7),
		UpdatedAt: serviceNow.AddDate(0, 0, -7),
	}
	cp := *c
	repo.cases[c.ID] = &cp
	return c
}

func TestMarkAsPaidClosesCase(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	inv := seedInvoice(repo, tc, StatusOverdue)
	kase := seedCase(repo, tc, inv.ID, collection.StageReminder2)

	got, err := svc.MarkAsPaid(context.Background(), tc, inv.ID, "bank-123")
	require.NoError(t, err)
	require.Equal(t, StatusPaid, got.Status)
	require.Equal(t, "bank-123", got.PaymentReference)
	require.NotNil(t, got.PaidAt)

	stored := repo.cases[kase.ID]
	require.Equal(t, collection.CaseClosed, stored.Status)
	require.Equal(t, collection.StageResolved, stored.Stage)
}

func TestMarkAsPaidRejectsCancelled(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	inv := seedInvoice(repo, tc, StatusCancelled)

	_, err := svc.MarkAsPaid(context.Background(), tc, inv.ID, "")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.Equal(t, StatusCancelled, repo.invoices[inv.ID].Status)
}

func TestCancelRequiresReason(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	inv := seedInvoice(repo, tc, StatusPending)

	_, err := svc.Cancel(context.Background(), tc, inv.ID, "   ")
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, StatusPending, repo.invoices[inv.ID].Status)

	got, err := svc.Cancel(context.Background(), tc, inv.ID, " dispute settled ")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)
	require.Equal(t, "dispute settled", got.CancelReason)
	require.NotNil(t, got.CancelledAt)
}

func TestPermissionGateRunsBeforeReasonValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	inv := seedInvoice(repo, tc, StatusPending)
	viewer := tc
	viewer.Role = shared.RoleViewer

	// A viewer with a blank reason is told about the permission, not the
	// reason.
	_, err := svc.Cancel(context.Background(), viewer, inv.ID, "  ")
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	paid := seedInvoice(repo, tc, StatusPaid)
	_, err = svc.RevertToPending(context.Background(), viewer, paid.ID, "")
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestCancelClosesOpenCase(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	inv := seedInvoice(repo, tc, StatusOverdue)
	kase := seedCase(repo, tc, inv.ID, collection.StageEscalated)

	_, err := svc.Cancel(context.Background(), tc, inv.ID, "written off")
	require.NoError(t, err)
	require.Equal(t, collection.CaseClosed, repo.cases[kase.ID].Status)
}

func TestRevertToPendingReopensCollections(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	inv := seedInvoice(repo, tc, StatusPaid)

	_, err := svc.RevertToPending(context.Background(), tc, inv.ID, "")
	require.ErrorIs(t, err, shared.ErrValidation)

	got, err := svc.RevertToPending(context.Background(), tc, inv.ID, "payment was for another invoice")
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
	require.Nil(t, got.PaidAt)
	require.Empty(t, got.PaymentReference)

	kase, err := repo.ActiveCase(context.Background(), tc.OrgID, inv.ID)
	require.NoError(t, err)
	require.Equal(t, collection.StageInitial, kase.Stage)
}

func TestRevertToPendingDeniedBelowAdmin(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	inv := seedInvoice(repo, tc, StatusPaid)
	tc.Role = shared.RoleMember

	_, err := svc.RevertToPending(context.Background(), tc, inv.ID, "reason")
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestRecordPaymentPromise(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	inv := seedInvoice(repo, tc, StatusOverdue)
	kase := seedCase(repo, tc, inv.ID, collection.StageReminder1)
	ctx := context.Background()

	_, err := svc.RecordPaymentPromise(ctx, tc, inv.ID, serviceNow.AddDate(0, 0, -1), "")
	require.ErrorIs(t, err, shared.ErrValidation)

	promise := serviceNow.AddDate(0, 0, 7)
	got, err := svc.RecordPaymentPromise(ctx, tc, inv.ID, promise, "called them")
	require.NoError(t, err)
	require.NotNil(t, got.PaymentPromiseDate)
	require.Equal(t, promise, *got.PaymentPromiseDate)

	stored := repo.cases[kase.ID]
	require.Equal(t, collection.StagePromiseToPay, stored.Stage)
	require.Equal(t, promise.AddDate(0, 0, 1), *stored.NextActionAt)
}

func TestRecordPaymentPromiseOpensCaseWhenMissing(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	inv := seedInvoice(repo, tc, StatusPending)

	_, err := svc.RecordPaymentPromise(context.Background(), tc, inv.ID, serviceNow, "")
	require.NoError(t, err)

	kase, err := repo.ActiveCase(context.Background(), tc.OrgID, inv.ID)
	require.NoError(t, err)
	require.Equal(t, collection.StagePromiseToPay, kase.Stage)
}

func TestRecordPaymentPromiseRejectedOnSettledInvoice(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	inv := seedInvoice(repo, tc, StatusPaid)

	_, err := svc.RecordPaymentPromise(context.Background(), tc, inv.ID, serviceNow.AddDate(0, 0, 3), "")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestUpdateExpectedPaymentDate(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	inv := seedInvoice(repo, tc, StatusPending)
	kase := seedCase(repo, tc, inv.ID, collection.StageReminder1)
	ctx := context.Background()

	date := serviceNow.AddDate(0, 0, 14)
	origin := OriginCustomerPromise

	_, err := svc.UpdateExpectedPaymentDate(ctx, tc, inv.ID, &date, nil, "")
	require.ErrorIs(t, err, shared.ErrValidation)

	got, err := svc.UpdateExpectedPaymentDate(ctx, tc, inv.ID, &date, &origin, "confirmed by phone")
	require.NoError(t, err)
	require.Equal(t, date, *got.ExpectedPaymentDate)
	require.Equal(t, origin, *got.DateOrigin)
	require.Equal(t, date, *repo.cases[kase.ID].NextActionAt)

	// Clearing the date clears the origin too.
	got, err = svc.UpdateExpectedPaymentDate(ctx, tc, inv.ID, nil, nil, "")
	require.NoError(t, err)
	require.Nil(t, got.ExpectedPaymentDate)
	require.Nil(t, got.DateOrigin)
}

func TestUpdateAmountFrozenAfterSettlement(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	ctx := context.Background()

	open := seedInvoice(repo, tc, StatusPending)
	got, err := svc.UpdateAmount(ctx, tc, open.ID, decimal.RequireFromString("750.00"))
	require.NoError(t, err)
	require.True(t, got.Amount.Equal(decimal.RequireFromString("750.00")))

	paid := seedInvoice(repo, tc, StatusPaid)
	_, err = svc.UpdateAmount(ctx, tc, paid.ID, decimal.RequireFromString("10.00"))
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestCrossTenantLookupsMaskAsNotFound(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	inv := seedInvoice(repo, tc, StatusPending)

	other := shared.TenantContext{OrgID: uuid.New(), ActorID: uuid.New(), Role: shared.RoleAdmin}
	_, err := svc.Get(context.Background(), other, inv.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.MarkAsPaid(context.Background(), other, inv.ID, "")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestBulkMarkAsPaidIsolatesFailures(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	ctx := context.Background()

	a := seedInvoice(repo, tc, StatusPending)
	b := seedInvoice(repo, tc, StatusCancelled)
	c := seedInvoice(repo, tc, StatusOverdue)

	res, err := svc.BulkMarkAsPaid(ctx, tc, []uuid.UUID{a.ID, b.ID, c.ID}, "batch-1")
	require.NoError(t, err)
	require.Equal(t, 2, res.Updated)
	require.Equal(t, 1, res.Failed)
	require.Equal(t, 3, res.Total)

	require.Equal(t, StatusPaid, repo.invoices[a.ID].Status)
	require.Equal(t, StatusCancelled, repo.invoices[b.ID].Status)
	require.Equal(t, StatusPaid, repo.invoices[c.ID].Status)
	require.NotEmpty(t, res.Items[1].Error)
}

func TestBulkMarkAsPaidGatesBeforeFanout(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	tc.Role = shared.RoleViewer

	_, err := svc.BulkMarkAsPaid(context.Background(), tc, []uuid.UUID{uuid.New()}, "")
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestSweepOverdue(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	ctx := context.Background()

	due := seedInvoice(repo, tc, StatusPending) // due two days ago
	notYet := seedInvoice(repo, tc, StatusPending)
	notYet.DueDate = serviceNow.AddDate(0, 0, 10)
	repo.invoices[notYet.ID] = notYet

	res, err := svc.SweepOverdue(ctx, serviceNow, 0)
	require.NoError(t, err)
	require.Equal(t, 1, res.Scanned)
	require.Equal(t, 1, res.Updated)
	require.Equal(t, 0, res.Failed)

	require.Equal(t, StatusOverdue, repo.invoices[due.ID].Status)
	require.Equal(t, StatusPending, repo.invoices[notYet.ID].Status)

	kase, err := repo.ActiveCase(ctx, tc.OrgID, due.ID)
	require.NoError(t, err)
	require.Equal(t, collection.CaseActive, kase.Status)
}

func TestSweepBrokenPromises(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	ctx := context.Background()

	inv := seedInvoice(repo, tc, StatusOverdue)
	promise := serviceNow.AddDate(0, 0, -3)
	inv.PaymentPromiseDate = &promise
	repo.invoices[inv.ID] = inv

	kase := seedCase(repo, tc, inv.ID, collection.StagePromiseToPay)
	check := serviceNow.AddDate(0, 0, -2)
	repo.cases[kase.ID].NextActionAt = &check

	res, err := svc.SweepBrokenPromises(ctx, serviceNow, 0)
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)

	stored := repo.cases[kase.ID]
	require.Equal(t, collection.StageEscalated, stored.Stage)
	require.Nil(t, repo.invoices[inv.ID].PaymentPromiseDate)
}

func TestSaveFailureSurfacesToCaller(t *testing.T) {
	repo := newMemoryRepo()
	svc, tc := newTestService(repo)
	inv := seedInvoice(repo, tc, StatusPending)
	repo.saveErr = errors.New("tx rollback")

	_, err := svc.MarkAsPaid(context.Background(), tc, inv.ID, "")
	require.Error(t, err)
	require.Equal(t, StatusPending, repo.invoices[inv.ID].Status)
}
