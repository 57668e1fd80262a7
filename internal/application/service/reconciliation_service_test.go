package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendsur/caja-api/internal/domain/entity"
	"github.com/vendsur/caja-api/internal/domain/enum"
	"github.com/vendsur/caja-api/internal/domain/gateway"
	"github.com/vendsur/caja-api/pkg/apperror"
	"github.com/vendsur/caja-api/pkg/fiscal"
)

type fixture struct {
	svc      *ReconciliationService
	pending  *fakePendingRepo
	store    *fakeStore
	tasks    *fakeTaskRepo
	payments *fakePaymentGateway
	tax      *fakeTaxAuthority
	notifier *fakeNotifier
}

func newFixture() *fixture {
	f := &fixture{
		pending:  newFakePendingRepo(),
		store:    newFakeStore(),
		tasks:    newFakeTaskRepo(),
		payments: &fakePaymentGateway{},
		tax:      &fakeTaxAuthority{},
		notifier: &fakeNotifier{},
	}
	f.svc = NewReconciliationService(
		f.pending, f.store, f.store, f.tasks,
		f.payments, f.tax,
		fiscal.NewBuilder(1900),
		f.notifier,
		RetryPolicy{MaxAttempts: 3, BackoffBase: time.Millisecond, CorrectionLimit: 3},
	)
	return f
}

// seedPending stores the reference cart: 12000 + 8500 net, 19% tax
// rounded half up per line gives 2280 + 1615, total 24395.
func (f *fixture) seedPending(token, buyOrder string) *entity.PendingTransaction {
	p := &entity.PendingTransaction{
		Token:     token,
		BuyOrder:  buyOrder,
		SessionID: "sess-1",
		SubTotal:  20500,
		Tax:       3895,
		Total:     24395,
		ExpiresAt: time.Now().Add(30 * time.Minute),
		Lines: []entity.CartLine{
			{Description: "Cafe en grano 1kg", Quantity: 1, UnitPrice: 12000},
			{Description: "Filtros x100", Quantity: 1, UnitPrice: 8500},
		},
	}
	_ = f.pending.Put(context.Background(), p)
	return p
}

func authorizedPayment(buyOrder string, amount int64) *entity.AuthorizedPayment {
	return &entity.AuthorizedPayment{
		BuyOrder:          buyOrder,
		SessionID:         "sess-1",
		Amount:            amount,
		Status:            enum.PaymentStatusAuthorized,
		AuthorizationCode: "1213",
		CardNumber:        "XXXX-XXXX-XXXX-6623",
		TransactionDate:   time.Now(),
	}
}

func TestCompletePayment_HappyPath(t *testing.T) {
	f := newFixture()
	f.seedPending("tok-1", "OC-1")
	f.payments.commitFn = func(token string) (*entity.AuthorizedPayment, error) {
		return authorizedPayment("OC-1", 24395), nil
	}
	f.tax.submitFn = func(doc *entity.FiscalDocument) (string, error) {
		return "trk-1", nil
	}
	f.tax.statusFn = func(trackID string) (*gateway.SubmissionStatus, error) {
		return &gateway.SubmissionStatus{State: gateway.SubmissionAccepted, Folio: 7741}, nil
	}

	result, err := f.svc.CompletePayment(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	require.NotNil(t, result.Document)
	assert.Equal(t, enum.DocumentStatusAccepted, result.Document.Status)
	require.NotNil(t, result.Document.Folio)
	assert.Equal(t, int64(7741), *result.Document.Folio)
	assert.Equal(t, int64(24395), result.Document.Total)
	assert.Equal(t, int64(3895), result.Document.Tax)

	// Snapshot consumed
	p, _ := f.pending.Get(context.Background(), "tok-1")
	assert.Nil(t, p)
	// No operator task on the happy path
	assert.Equal(t, 0, f.tasks.openCount())
}

func TestCompletePayment_ReplayReturnsSameDocument(t *testing.T) {
	f := newFixture()
	f.seedPending("tok-1", "OC-1")
	payment := authorizedPayment("OC-1", 24395)
	f.payments.commitFn = func(token string) (*entity.AuthorizedPayment, error) { return payment, nil }
	f.payments.statusFn = func(token string) (*entity.AuthorizedPayment, error) { return payment, nil }
	f.tax.submitFn = func(doc *entity.FiscalDocument) (string, error) { return "trk-1", nil }
	f.tax.statusFn = func(trackID string) (*gateway.SubmissionStatus, error) {
		return &gateway.SubmissionStatus{State: gateway.SubmissionAccepted, Folio: 7741}, nil
	}

	first, err := f.svc.CompletePayment(context.Background(), "tok-1")
	require.NoError(t, err)

	// Browser refresh: the snapshot is gone, the ledger answers
	second, err := f.svc.CompletePayment(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.Equal(t, first.Document.ID, second.Document.ID)
	assert.Equal(t, 1, f.tax.submitCalls)
	assert.Len(t, f.store.docs, 1)
}

func TestCompletePayment_Declined(t *testing.T) {
	f := newFixture()
	f.seedPending("tok-1", "OC-1")
	f.payments.commitFn = func(token string) (*entity.AuthorizedPayment, error) {
		p := authorizedPayment("OC-1", 24395)
		p.Status = enum.PaymentStatusFailed
		return p, nil
	}

	result, err := f.svc.CompletePayment(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.Equal(t, OutcomePaymentFailed, result.Outcome)
	assert.Nil(t, result.Document)
	assert.Empty(t, f.store.docs)
	assert.Empty(t, f.store.ledger)
	assert.Equal(t, 0, f.tasks.openCount())
}

func TestCompletePayment_AmbiguousCommitOpensTask(t *testing.T) {
	f := newFixture()
	f.seedPending("tok-1", "OC-1")
	f.payments.commitFn = func(token string) (*entity.AuthorizedPayment, error) {
		return nil, apperror.ErrPaymentAmbiguous
	}

	result, err := f.svc.CompletePayment(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnconfirmed, result.Outcome)
	assert.Nil(t, result.Document)
	// No document, no ledger entry: nothing claims the buy order until
	// the payment is known to have been captured
	assert.Empty(t, f.store.docs)

	task, err := f.tasks.GetOpenByBuyOrder(context.Background(), "OC-1", enum.TaskKindAmbiguousPayment)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "tok-1", task.Token)
	require.NotNil(t, task.SnapshotJSON)
	assert.Contains(t, *task.SnapshotJSON, "OC-1")
	assert.Contains(t, f.notifier.calls, "AmbiguousPayment:OC-1")
}

func TestCompletePayment_TransientSubmitRetriesThenAccepted(t *testing.T) {
	f := newFixture()
	f.seedPending("tok-1", "OC-1")
	f.payments.commitFn = func(token string) (*entity.AuthorizedPayment, error) {
		return authorizedPayment("OC-1", 24395), nil
	}
	var mu sync.Mutex
	attempt := 0
	f.tax.submitFn = func(doc *entity.FiscalDocument) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		attempt++
		if attempt < 3 {
			return "", apperror.TransientSubmission("connection refused")
		}
		return "trk-1", nil
	}
	f.tax.statusFn = func(trackID string) (*gateway.SubmissionStatus, error) {
		return &gateway.SubmissionStatus{State: gateway.SubmissionAccepted, Folio: 42}, nil
	}

	result, err := f.svc.CompletePayment(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, enum.DocumentStatusAccepted, result.Document.Status)
	assert.Equal(t, 3, f.tax.submitCalls)
	assert.Len(t, f.store.docs, 1)
}

func TestCompletePayment_SubmitExhaustedParksDocument(t *testing.T) {
	f := newFixture()
	f.seedPending("tok-1", "OC-1")
	f.payments.commitFn = func(token string) (*entity.AuthorizedPayment, error) {
		return authorizedPayment("OC-1", 24395), nil
	}
	f.tax.submitFn = func(doc *entity.FiscalDocument) (string, error) {
		return "", apperror.TransientSubmission("authority down")
	}

	result, err := f.svc.CompletePayment(context.Background(), "tok-1")
	require.NoError(t, err)

	// The payer is still told the payment succeeded
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, enum.DocumentStatusSubmitted, result.Document.Status)
	assert.Equal(t, 3, f.tax.submitCalls)

	task, _ := f.tasks.GetOpenByBuyOrder(context.Background(), "OC-1", enum.TaskKindStuckSubmission)
	require.NotNil(t, task)
}

func TestCompletePayment_RejectedDocumentOpensTask(t *testing.T) {
	f := newFixture()
	f.seedPending("tok-1", "OC-1")
	f.payments.commitFn = func(token string) (*entity.AuthorizedPayment, error) {
		return authorizedPayment("OC-1", 24395), nil
	}
	f.tax.submitFn = func(doc *entity.FiscalDocument) (string, error) { return "trk-1", nil }
	f.tax.statusFn = func(trackID string) (*gateway.SubmissionStatus, error) {
		return &gateway.SubmissionStatus{State: gateway.SubmissionRejected, Reason: "folio range exhausted"}, nil
	}

	result, err := f.svc.CompletePayment(context.Background(), "tok-1")
	require.NoError(t, err)

	// Payment captured, receipt invalid: visible, never silent
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, enum.DocumentStatusRejected, result.Document.Status)
	require.NotNil(t, result.Document.RejectReason)
	assert.Equal(t, "folio range exhausted", *result.Document.RejectReason)

	task, _ := f.tasks.GetOpenByBuyOrder(context.Background(), "OC-1", enum.TaskKindRejectedDocument)
	require.NotNil(t, task)
	assert.Contains(t, f.notifier.calls, "RejectedDocument:OC-1")
}

func TestCompletePayment_UnknownTokenIsExpired(t *testing.T) {
	f := newFixture()
	f.payments.statusFn = func(token string) (*entity.AuthorizedPayment, error) {
		return nil, errors.New("no such transaction")
	}

	_, err := f.svc.CompletePayment(context.Background(), "tok-missing")
	require.Error(t, err)
	assert.Equal(t, apperror.ErrSessionExpired, err)
}

func TestCompletePayment_CapturedButUnrecordedOpensTask(t *testing.T) {
	// Crash window: the commit landed but the process died before the
	// ledger reservation, and the snapshot is gone. The money moved, so
	// the attempt must surface on the operator queue, never vanish as an
	// expired session.
	f := newFixture()
	f.payments.statusFn = func(token string) (*entity.AuthorizedPayment, error) {
		return authorizedPayment("OC-lost", 24395), nil
	}

	result, err := f.svc.CompletePayment(context.Background(), "tok-lost")
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnconfirmed, result.Outcome)
	assert.Nil(t, result.Document)

	task, _ := f.tasks.GetOpenByBuyOrder(context.Background(), "OC-lost", enum.TaskKindMissingDocument)
	require.NotNil(t, task)
	assert.Equal(t, int64(24395), task.Amount)
	assert.Equal(t, "tok-lost", task.Token)
	assert.Contains(t, f.notifier.calls, "MissingDocument:OC-lost")

	// Replaying the same return hit must not pile up duplicate tasks
	_, err = f.svc.CompletePayment(context.Background(), "tok-lost")
	require.NoError(t, err)
	assert.Equal(t, 1, f.tasks.openCount())
}

func TestCompletePayment_BuildFailureOpensTask(t *testing.T) {
	f := newFixture()
	f.seedPending("tok-1", "OC-1")
	// Captured amount disagrees with the snapshot, so no document can be
	// built for it
	f.payments.commitFn = func(token string) (*entity.AuthorizedPayment, error) {
		return authorizedPayment("OC-1", 24394), nil
	}

	_, err := f.svc.CompletePayment(context.Background(), "tok-1")
	require.Error(t, err)

	assert.Empty(t, f.store.docs)
	task, _ := f.tasks.GetOpenByBuyOrder(context.Background(), "OC-1", enum.TaskKindMissingDocument)
	require.NotNil(t, task)
	assert.Equal(t, int64(24394), task.Amount)
}

func TestCompletePayment_ConcurrentDuplicatesProduceOneDocument(t *testing.T) {
	f := newFixture()
	// Two snapshot rows carrying the same buy order simulate a duplicated
	// return-page invocation racing past Consume
	f.seedPending("tok-a", "OC-1")
	f.seedPending("tok-b", "OC-1")
	f.payments.commitFn = func(token string) (*entity.AuthorizedPayment, error) {
		return authorizedPayment("OC-1", 24395), nil
	}
	f.tax.submitFn = func(doc *entity.FiscalDocument) (string, error) { return "trk-1", nil }
	f.tax.statusFn = func(trackID string) (*gateway.SubmissionStatus, error) {
		return &gateway.SubmissionStatus{State: gateway.SubmissionAccepted, Folio: 9}, nil
	}

	var wg sync.WaitGroup
	results := make([]*CompletePaymentResult, 2)
	errs := make([]error, 2)
	for i, token := range []string{"tok-a", "tok-b"} {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			results[i], errs[i] = f.svc.CompletePayment(context.Background(), token)
		}(i, token)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// Exactly one document survives the race
	assert.Len(t, f.store.docs, 1)
	assert.Len(t, f.store.ledger, 1)
	assert.Equal(t, results[0].Document.ID, results[1].Document.ID)
}

func TestResolveAmbiguous_PaymentWasCaptured(t *testing.T) {
	f := newFixture()
	f.seedPending("tok-1", "OC-1")
	f.payments.commitFn = func(token string) (*entity.AuthorizedPayment, error) {
		return nil, apperror.ErrPaymentAmbiguous
	}
	_, err := f.svc.CompletePayment(context.Background(), "tok-1")
	require.NoError(t, err)

	task, _ := f.tasks.GetOpenByBuyOrder(context.Background(), "OC-1", enum.TaskKindAmbiguousPayment)
	require.NotNil(t, task)

	// The gateway later confirms the money moved
	f.payments.statusFn = func(token string) (*entity.AuthorizedPayment, error) {
		return authorizedPayment("OC-1", 24395), nil
	}
	f.tax.submitFn = func(doc *entity.FiscalDocument) (string, error) { return "trk-1", nil }
	f.tax.statusFn = func(trackID string) (*gateway.SubmissionStatus, error) {
		return &gateway.SubmissionStatus{State: gateway.SubmissionAccepted, Folio: 51}, nil
	}

	result, err := f.svc.ResolveAmbiguous(context.Background(), task.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, enum.DocumentStatusAccepted, result.Document.Status)

	resolved, _ := f.tasks.GetByID(context.Background(), task.ID)
	assert.False(t, resolved.IsOpen())
}

func TestResolveAmbiguous_PaymentNeverCaptured(t *testing.T) {
	f := newFixture()
	f.seedPending("tok-1", "OC-1")
	f.payments.commitFn = func(token string) (*entity.AuthorizedPayment, error) {
		return nil, apperror.ErrPaymentAmbiguous
	}
	_, err := f.svc.CompletePayment(context.Background(), "tok-1")
	require.NoError(t, err)

	task, _ := f.tasks.GetOpenByBuyOrder(context.Background(), "OC-1", enum.TaskKindAmbiguousPayment)
	require.NotNil(t, task)

	f.payments.statusFn = func(token string) (*entity.AuthorizedPayment, error) {
		p := authorizedPayment("OC-1", 24395)
		p.Status = enum.PaymentStatusFailed
		return p, nil
	}

	result, err := f.svc.ResolveAmbiguous(context.Background(), task.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomePaymentFailed, result.Outcome)
	assert.Empty(t, f.store.docs)
	resolved, _ := f.tasks.GetByID(context.Background(), task.ID)
	assert.False(t, resolved.IsOpen())
}

func TestResolveAmbiguous_GatewayStillDownKeepsTaskOpen(t *testing.T) {
	f := newFixture()
	f.seedPending("tok-1", "OC-1")
	f.payments.commitFn = func(token string) (*entity.AuthorizedPayment, error) {
		return nil, apperror.ErrPaymentAmbiguous
	}
	_, err := f.svc.CompletePayment(context.Background(), "tok-1")
	require.NoError(t, err)

	task, _ := f.tasks.GetOpenByBuyOrder(context.Background(), "OC-1", enum.TaskKindAmbiguousPayment)
	f.payments.statusFn = func(token string) (*entity.AuthorizedPayment, error) {
		return nil, errors.New("gateway unreachable")
	}

	_, err = f.svc.ResolveAmbiguous(context.Background(), task.ID)
	require.Error(t, err)

	still, _ := f.tasks.GetByID(context.Background(), task.ID)
	assert.True(t, still.IsOpen())
}

func TestResubmitCorrected(t *testing.T) {
	f := newFixture()
	f.seedPending("tok-1", "OC-1")
	f.payments.commitFn = func(token string) (*entity.AuthorizedPayment, error) {
		return authorizedPayment("OC-1", 24395), nil
	}
	f.tax.submitFn = func(doc *entity.FiscalDocument) (string, error) { return "trk-1", nil }
	f.tax.statusFn = func(trackID string) (*gateway.SubmissionStatus, error) {
		return &gateway.SubmissionStatus{State: gateway.SubmissionRejected, Reason: "bad description"}, nil
	}

	first, err := f.svc.CompletePayment(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Equal(t, enum.DocumentStatusRejected, first.Document.Status)

	// Resubmitting identical content is refused
	same := make([]entity.LineItem, len(first.Document.Lines))
	for i, l := range first.Document.Lines {
		same[i] = entity.LineItem{Description: l.Description, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	_, err = f.svc.ResubmitCorrected(context.Background(), first.Document.ID, same)
	require.Error(t, err)

	// Corrected content goes through and is accepted this time
	f.tax.statusFn = func(trackID string) (*gateway.SubmissionStatus, error) {
		return &gateway.SubmissionStatus{State: gateway.SubmissionAccepted, Folio: 88}, nil
	}
	corrected := []entity.LineItem{
		{Description: "Cafe en grano 1kg tostado", Quantity: 1, UnitPrice: 12000},
		{Description: "Filtros x100", Quantity: 1, UnitPrice: 8500},
	}
	doc, err := f.svc.ResubmitCorrected(context.Background(), first.Document.ID, corrected)
	require.NoError(t, err)

	assert.Equal(t, enum.DocumentStatusAccepted, doc.Status)
	assert.Equal(t, 1, doc.CorrectionCount)
	assert.Equal(t, int64(24395), doc.Total)
}

func TestResubmitCorrected_LimitExhausted(t *testing.T) {
	f := newFixture()
	doc := &entity.FiscalDocument{
		BuyOrder:        "OC-9",
		Status:          enum.DocumentStatusRejected,
		SubTotal:        1000,
		Tax:             190,
		Total:           1190,
		CorrectionCount: 3,
		Lines:           []entity.LineItem{{Description: "x", Quantity: 1, UnitPrice: 1000, Tax: 190, Total: 1190}},
	}
	_, _, err := f.store.Reserve(context.Background(), doc)
	require.NoError(t, err)

	_, err = f.svc.ResubmitCorrected(context.Background(), doc.ID, []entity.LineItem{
		{Description: "y", Quantity: 1, UnitPrice: 1000},
	})
	require.Error(t, err)

	final, _ := f.store.GetByID(context.Background(), doc.ID)
	assert.Equal(t, enum.DocumentStatusFailedPermanently, final.Status)
}

func TestCloseTask(t *testing.T) {
	f := newFixture()
	task := &entity.ReconciliationTask{Kind: enum.TaskKindStuckSubmission, BuyOrder: "OC-1", Amount: 1000}
	require.NoError(t, f.tasks.Create(context.Background(), task))

	require.NoError(t, f.svc.CloseTask(context.Background(), task.ID, "handled by phone with the authority"))

	closed, _ := f.tasks.GetByID(context.Background(), task.ID)
	assert.False(t, closed.IsOpen())

	// Closing twice is refused
	err := f.svc.CloseTask(context.Background(), task.ID, "again")
	require.Error(t, err)
}
