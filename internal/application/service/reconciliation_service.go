package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vendsur/caja-api/internal/domain/entity"
	"github.com/vendsur/caja-api/internal/domain/enum"
	"github.com/vendsur/caja-api/internal/domain/gateway"
	"github.com/vendsur/caja-api/internal/domain/repository"
	"github.com/vendsur/caja-api/pkg/apperror"
	"github.com/vendsur/caja-api/pkg/fiscal"
)

// Outcome is the user-visible verdict of a completion attempt. There are
// exactly three: the user is never told a definite success or failure
// when the true state is ambiguous.
type Outcome int

const (
	// OutcomeCompleted: the payment was captured. The document's own
	// status says how far the fiscal side got.
	OutcomeCompleted Outcome = 0
	// OutcomePaymentFailed: the gateway declined; nothing was charged
	// and no document exists.
	OutcomePaymentFailed Outcome = 1
	// OutcomeUnconfirmed: the commit outcome is unknown. The payer is
	// told we will follow up; reconciliation resolves it asynchronously.
	OutcomeUnconfirmed Outcome = 2
)

func (o Outcome) String() string {
	names := [...]string{"Completed", "PaymentFailed", "Unconfirmed"}
	if int(o) < 0 || int(o) >= len(names) {
		return "Unconfirmed"
	}
	return names[o]
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// CompletePaymentResult is what the payment-return page renders from
type CompletePaymentResult struct {
	Outcome  Outcome                   `json:"outcome"`
	Message  string                    `json:"message"`
	Payment  *entity.AuthorizedPayment `json:"payment,omitempty"`
	Document *entity.FiscalDocument    `json:"document,omitempty"`
}

// Notifier reports newly opened reconciliation tasks to the back office
type Notifier interface {
	TaskOpened(kind, buyOrder string, amount int64, reason string)
}

// RetryPolicy bounds tax submission retries
type RetryPolicy struct {
	MaxAttempts     int
	BackoffBase     time.Duration
	CorrectionLimit int
}

// ReconciliationService coordinates the three systems that must agree on
// every sale: the payment gateway that moved the money, our fiscal
// document store, and the tax authority that must acknowledge the
// document. It is the only writer of document status transitions and of
// the document ledger.
type ReconciliationService struct {
	pendingRepo repository.PendingTransactionRepository
	docRepo     repository.FiscalDocumentRepository
	ledgerRepo  repository.LedgerRepository
	taskRepo    repository.ReconciliationTaskRepository
	payments    gateway.PaymentGateway
	tax         gateway.TaxAuthority
	builder     *fiscal.Builder
	notifier    Notifier
	retry       RetryPolicy
}

// NewReconciliationService creates the reconciliation orchestrator
func NewReconciliationService(
	pendingRepo repository.PendingTransactionRepository,
	docRepo repository.FiscalDocumentRepository,
	ledgerRepo repository.LedgerRepository,
	taskRepo repository.ReconciliationTaskRepository,
	payments gateway.PaymentGateway,
	tax gateway.TaxAuthority,
	builder *fiscal.Builder,
	notifier Notifier,
	retry RetryPolicy,
) *ReconciliationService {
	return &ReconciliationService{
		pendingRepo: pendingRepo,
		docRepo:     docRepo,
		ledgerRepo:  ledgerRepo,
		taskRepo:    taskRepo,
		payments:    payments,
		tax:         tax,
		builder:     builder,
		notifier:    notifier,
		retry:       retry,
	}
}

// CompletePayment drives one payment-return to a terminal or
// terminal-pending state. It tolerates being invoked again for the same
// underlying attempt (refresh, back button, crash replay): the pending
// snapshot is consumed at most once, the gateway commit is
// replay-normalized by the adapter, and every step after the commit is
// idempotent through the document ledger.
func (s *ReconciliationService) CompletePayment(ctx context.Context, token string) (*CompletePaymentResult, error) {
	pending, err := s.pendingRepo.Consume(ctx, token)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		// Missing, already consumed by a concurrent request, or expired.
		// A concurrent duplicate still gets the right answer below only
		// if a ledger entry exists; a truly expired session restarts
		// checkout.
		return s.replayWithoutSnapshot(ctx, token)
	}

	payment, err := s.payments.Commit(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrPaymentAmbiguous) {
			return s.parkAmbiguous(ctx, token, pending)
		}
		// Any other transport-shaped failure is equally unknowable.
		log.Printf("reconciliation: commit failed for %s, parking as ambiguous: %v", pending.BuyOrder, err)
		return s.parkAmbiguous(ctx, token, pending)
	}

	if !payment.Authorized() {
		// Terminal: nothing was charged, no document is ever built.
		return &CompletePaymentResult{
			Outcome: OutcomePaymentFailed,
			Message: "Payment was declined, nothing was charged",
			Payment: payment,
		}, nil
	}

	return s.settleAuthorized(ctx, pending, payment)
}

// settleAuthorized runs the post-commit half of the pipeline: reserve,
// build, persist, submit. Shared with ambiguous-payment resolution.
func (s *ReconciliationService) settleAuthorized(ctx context.Context, pending *entity.PendingTransaction, payment *entity.AuthorizedPayment) (*CompletePaymentResult, error) {
	doc, err := s.builder.Build(pending, payment)
	if err != nil {
		// The builder is deterministic; reaching this is a bug, not a
		// retryable condition. The money moved, so it must be visible.
		s.openTask(ctx, enum.TaskKindMissingDocument, payment.BuyOrder, payment.Amount,
			fmt.Sprintf("document build failed: %v", err), "", nil, nil)
		return nil, err
	}

	doc.ID = uuid.New()
	winner, won, err := s.ledgerRepo.Reserve(ctx, doc)
	if err != nil {
		return nil, err
	}
	if !won {
		// Idempotent replay: someone already built the document for this
		// buy order. Return their result, advancing it if it is stuck.
		return s.resumeDocument(ctx, winner, payment)
	}

	return s.submitDocument(ctx, doc, payment)
}

// submitDocument pushes a draft to the tax authority with bounded
// exponential backoff, then settles its verdict.
func (s *ReconciliationService) submitDocument(ctx context.Context, doc *entity.FiscalDocument, payment *entity.AuthorizedPayment) (*CompletePaymentResult, error) {
	var (
		trackID string
		err     error
	)

	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			if werr := s.wait(ctx, s.retry.BackoffBase*(1<<(attempt-1))); werr != nil {
				break
			}
		}

		trackID, err = s.tax.Submit(ctx, doc)
		if err == nil {
			break
		}
		if apperror.IsRejectedSubmission(err) {
			return s.settleRejection(ctx, doc, payment, err.Error())
		}
		log.Printf("reconciliation: transient submit failure for %s (attempt %d/%d): %v",
			doc.BuyOrder, attempt+1, s.retry.MaxAttempts, err)
	}

	if err != nil {
		// Retries exhausted. The submission may or may not have landed;
		// park the document as Submitted with no track id and let the
		// background reconciler sort it out.
		if uerr := s.docRepo.MarkSubmitted(ctx, doc.ID, ""); uerr != nil {
			return nil, uerr
		}
		doc.Status = enum.DocumentStatusSubmitted
		s.openTask(ctx, enum.TaskKindStuckSubmission, doc.BuyOrder, doc.Total,
			"tax authority unreachable, submission outcome pending", "", &doc.ID, nil)
		return &CompletePaymentResult{
			Outcome:  OutcomeCompleted,
			Message:  "Payment captured; receipt is being processed",
			Payment:  payment,
			Document: doc,
		}, nil
	}

	if uerr := s.docRepo.MarkSubmitted(ctx, doc.ID, trackID); uerr != nil {
		return nil, uerr
	}
	doc.Status = enum.DocumentStatusSubmitted
	doc.TrackID = &trackID

	return s.settleVerdict(ctx, doc, payment)
}

// settleVerdict queries the authority once and moves the document
// accordingly. A still-pending verdict leaves the document Submitted for
// the background reconciler.
func (s *ReconciliationService) settleVerdict(ctx context.Context, doc *entity.FiscalDocument, payment *entity.AuthorizedPayment) (*CompletePaymentResult, error) {
	if doc.TrackID == nil || *doc.TrackID == "" {
		return &CompletePaymentResult{
			Outcome:  OutcomeCompleted,
			Message:  "Payment captured; receipt is being processed",
			Payment:  payment,
			Document: doc,
		}, nil
	}

	status, err := s.tax.QueryStatus(ctx, *doc.TrackID)
	if err != nil {
		// Transient; the worker will poll again.
		log.Printf("reconciliation: status query failed for %s: %v", doc.BuyOrder, err)
		return &CompletePaymentResult{
			Outcome:  OutcomeCompleted,
			Message:  "Payment captured; receipt is being processed",
			Payment:  payment,
			Document: doc,
		}, nil
	}

	switch status.State {
	case gateway.SubmissionAccepted:
		if err := s.docRepo.MarkAccepted(ctx, doc.ID, status.Folio); err != nil {
			return nil, err
		}
		doc.Status = enum.DocumentStatusAccepted
		doc.Folio = &status.Folio
		return &CompletePaymentResult{
			Outcome:  OutcomeCompleted,
			Message:  "Payment captured and receipt issued",
			Payment:  payment,
			Document: doc,
		}, nil
	case gateway.SubmissionRejected:
		return s.settleRejection(ctx, doc, payment, status.Reason)
	default:
		return &CompletePaymentResult{
			Outcome:  OutcomeCompleted,
			Message:  "Payment captured; receipt is being processed",
			Payment:  payment,
			Document: doc,
		}, nil
	}
}

// settleRejection records an authority rejection. The payment was
// captured but the legal document is invalid: this is the one
// irreducible partial-failure state, and it is always made visible on
// the operator queue, never retried as-is.
func (s *ReconciliationService) settleRejection(ctx context.Context, doc *entity.FiscalDocument, payment *entity.AuthorizedPayment, reason string) (*CompletePaymentResult, error) {
	if err := s.docRepo.MarkRejected(ctx, doc.ID, reason); err != nil {
		return nil, err
	}
	doc.Status = enum.DocumentStatusRejected
	doc.RejectReason = &reason

	s.openTask(ctx, enum.TaskKindRejectedDocument, doc.BuyOrder, doc.Total, reason, "", &doc.ID, nil)

	return &CompletePaymentResult{
		Outcome:  OutcomeCompleted,
		Message:  "Payment captured; receipt needs correction and will follow",
		Payment:  payment,
		Document: doc,
	}, nil
}

// resumeDocument handles the replay path: a ledger entry already maps
// this buy order to a document, so advance that document rather than
// building another.
func (s *ReconciliationService) resumeDocument(ctx context.Context, doc *entity.FiscalDocument, payment *entity.AuthorizedPayment) (*CompletePaymentResult, error) {
	switch doc.Status {
	case enum.DocumentStatusDraft:
		return s.submitDocument(ctx, doc, payment)
	case enum.DocumentStatusSubmitted:
		return s.settleVerdict(ctx, doc, payment)
	case enum.DocumentStatusAccepted:
		return &CompletePaymentResult{
			Outcome:  OutcomeCompleted,
			Message:  "Payment captured and receipt issued",
			Payment:  payment,
			Document: doc,
		}, nil
	case enum.DocumentStatusRejected, enum.DocumentStatusFailedPermanently:
		return &CompletePaymentResult{
			Outcome:  OutcomeCompleted,
			Message:  "Payment captured; receipt needs correction and will follow",
			Payment:  payment,
			Document: doc,
		}, nil
	default:
		return nil, apperror.ErrInternalServer
	}
}

// replayWithoutSnapshot covers a return-page hit whose snapshot is gone.
// If a ledger entry exists the attempt already ran to (or past) the
// reserve step and this is a duplicate invocation; otherwise the session
// genuinely expired.
func (s *ReconciliationService) replayWithoutSnapshot(ctx context.Context, token string) (*CompletePaymentResult, error) {
	payment, err := s.payments.Status(ctx, token)
	if err != nil {
		return nil, apperror.ErrSessionExpired
	}

	if payment.BuyOrder != "" {
		entry, err := s.ledgerRepo.Get(ctx, payment.BuyOrder)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			doc, err := s.docRepo.GetByID(ctx, entry.DocumentID)
			if err != nil {
				return nil, err
			}
			if doc != nil {
				return s.resumeDocument(ctx, doc, payment)
			}
		}
		if !payment.Authorized() {
			return &CompletePaymentResult{
				Outcome: OutcomePaymentFailed,
				Message: "Payment was declined, nothing was charged",
				Payment: payment,
			}, nil
		}

		// Money moved but no ledger entry exists: the process died between
		// commit and reserve and the snapshot is gone, so the document
		// cannot be rebuilt here. This must never end silently.
		s.openTask(ctx, enum.TaskKindMissingDocument, payment.BuyOrder, payment.Amount,
			"payment captured but no document exists and the checkout snapshot is gone", token, nil, nil)
		return &CompletePaymentResult{
			Outcome: OutcomeUnconfirmed,
			Message: "Payment status unconfirmed, we will follow up",
			Payment: payment,
		}, nil
	}

	return nil, apperror.ErrSessionExpired
}

// parkAmbiguous records a commit whose outcome is unknown. No document
// is built; the snapshot is retained on the task so the pipeline can
// finish later if the status query shows the money actually moved.
func (s *ReconciliationService) parkAmbiguous(ctx context.Context, token string, pending *entity.PendingTransaction) (*CompletePaymentResult, error) {
	snapshot, err := json.Marshal(pending)
	if err != nil {
		return nil, err
	}
	snapshotJSON := string(snapshot)

	s.openTask(ctx, enum.TaskKindAmbiguousPayment, pending.BuyOrder, pending.Total,
		"payment commit outcome unknown", token, nil, &snapshotJSON)

	return &CompletePaymentResult{
		Outcome: OutcomeUnconfirmed,
		Message: "Payment status unconfirmed, we will follow up",
	}, nil
}

// ResolveAmbiguous queries the gateway for an ambiguous payment's settled
// outcome and, if the money moved, finishes the pipeline from the
// retained snapshot. Called by the background reconciler and by the
// operator endpoint.
func (s *ReconciliationService) ResolveAmbiguous(ctx context.Context, taskID uuid.UUID) (*CompletePaymentResult, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apperror.NewNotFoundError("Reconciliation task")
	}
	if !task.IsOpen() || task.Kind != enum.TaskKindAmbiguousPayment {
		return nil, apperror.NewBadRequestError("Task is not an open ambiguous payment")
	}

	payment, err := s.payments.Status(ctx, task.Token)
	if err != nil {
		// Still unknowable; leave the task open for the next pass.
		return nil, err
	}

	if !payment.Authorized() {
		if err := s.taskRepo.Resolve(ctx, task.ID, "gateway confirms payment never captured"); err != nil {
			return nil, err
		}
		return &CompletePaymentResult{
			Outcome: OutcomePaymentFailed,
			Message: "Payment was declined, nothing was charged",
			Payment: payment,
		}, nil
	}

	if task.SnapshotJSON == nil {
		return nil, apperror.ErrInternalServer
	}
	var pending entity.PendingTransaction
	if err := json.Unmarshal([]byte(*task.SnapshotJSON), &pending); err != nil {
		return nil, err
	}

	result, err := s.settleAuthorized(ctx, &pending, payment)
	if err != nil {
		return nil, err
	}
	if err := s.taskRepo.Resolve(ctx, task.ID, "payment confirmed captured, document pipeline completed"); err != nil {
		return nil, err
	}
	return result, nil
}

// ResubmitCorrected replaces a rejected document's content with the
// operator's corrected lines and submits again. Resubmitting unchanged
// content is refused — the authority already said no to it.
func (s *ReconciliationService) ResubmitCorrected(ctx context.Context, docID uuid.UUID, lines []entity.LineItem) (*entity.FiscalDocument, error) {
	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NewNotFoundError("Fiscal document")
	}
	if doc.Status != enum.DocumentStatusRejected {
		return nil, apperror.NewBadRequestError("Only rejected documents can be resubmitted")
	}
	if doc.CorrectionCount >= s.retry.CorrectionLimit {
		if err := s.docRepo.MarkFailedPermanently(ctx, doc.ID, "correction attempts exhausted"); err != nil {
			return nil, err
		}
		return nil, apperror.NewBadRequestError("Correction attempts exhausted; document failed permanently")
	}
	var subTotal, tax, total int64
	for i := range lines {
		lineNet := lines[i].UnitPrice * int64(lines[i].Quantity)
		lines[i].Tax = s.builder.LineTax(lineNet)
		lines[i].Total = lineNet + lines[i].Tax
		subTotal += lineNet
		tax += lines[i].Tax
		total += lines[i].Total
	}

	if sameLines(doc.Lines, lines) {
		return nil, apperror.NewBadRequestError("Corrected content is identical to the rejected document")
	}

	if err := s.docRepo.ReplaceLines(ctx, doc.ID, lines, subTotal, tax, total); err != nil {
		return nil, err
	}

	fresh, err := s.docRepo.GetByID(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	payment := &entity.AuthorizedPayment{
		BuyOrder:          fresh.BuyOrder,
		Amount:            fresh.Total,
		Status:            enum.PaymentStatusAuthorized,
		AuthorizationCode: fresh.AuthorizationCode,
		TransactionDate:   fresh.TransactionDate,
	}
	if _, err := s.submitDocument(ctx, fresh, payment); err != nil {
		return nil, err
	}
	return s.docRepo.GetByID(ctx, doc.ID)
}

// ListTasks returns the operator queue, oldest open tasks first
func (s *ReconciliationService) ListTasks(ctx context.Context, params *repository.TaskFilterParams) ([]entity.ReconciliationTask, int64, error) {
	return s.taskRepo.List(ctx, params)
}

// GetTask returns one task by id
func (s *ReconciliationService) GetTask(ctx context.Context, id uuid.UUID) (*entity.ReconciliationTask, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apperror.NewNotFoundError("Reconciliation task")
	}
	return task, nil
}

// CloseTask lets an operator close a task they handled out of band
func (s *ReconciliationService) CloseTask(ctx context.Context, id uuid.UUID, note string) error {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return apperror.NewNotFoundError("Reconciliation task")
	}
	if !task.IsOpen() {
		return apperror.NewBadRequestError("Task is already resolved")
	}
	return s.taskRepo.Resolve(ctx, id, note)
}

// CheckSubmitted polls the authority for a document sitting in Submitted
// and settles whatever verdict exists. Used by the background reconciler.
func (s *ReconciliationService) CheckSubmitted(ctx context.Context, doc *entity.FiscalDocument) error {
	if doc.TrackID == nil || *doc.TrackID == "" {
		// The original submission outcome was never learned. Submitting
		// again is safe: the authority dedupes on the buy order reference.
		payment := &entity.AuthorizedPayment{
			BuyOrder:        doc.BuyOrder,
			Amount:          doc.Total,
			Status:          enum.PaymentStatusAuthorized,
			TransactionDate: doc.TransactionDate,
		}
		_, err := s.submitDocument(ctx, doc, payment)
		return err
	}

	status, err := s.tax.QueryStatus(ctx, *doc.TrackID)
	if err != nil {
		return err
	}

	switch status.State {
	case gateway.SubmissionAccepted:
		return s.docRepo.MarkAccepted(ctx, doc.ID, status.Folio)
	case gateway.SubmissionRejected:
		_, err := s.settleRejection(ctx, doc, nil, status.Reason)
		return err
	default:
		return nil
	}
}

func (s *ReconciliationService) openTask(ctx context.Context, kind enum.TaskKind, buyOrder string, amount int64, reason, token string, docID *uuid.UUID, snapshotJSON *string) {
	existing, err := s.taskRepo.GetOpenByBuyOrder(ctx, buyOrder, kind)
	if err != nil {
		log.Printf("reconciliation: failed to check open tasks for %s: %v", buyOrder, err)
	}
	if existing != nil {
		return
	}

	task := &entity.ReconciliationTask{
		Kind:         kind,
		BuyOrder:     buyOrder,
		Amount:       amount,
		Reason:       reason,
		Token:        token,
		DocumentID:   docID,
		SnapshotJSON: snapshotJSON,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		// The queue write failed but the pipeline state is durable;
		// log loudly, the worker sweep will re-detect stuck documents.
		log.Printf("reconciliation: FAILED to open %s task for %s: %v", kind, buyOrder, err)
		return
	}

	if s.notifier != nil {
		s.notifier.TaskOpened(kind.String(), buyOrder, amount, reason)
	}
}

// wait sleeps for the backoff duration unless the context ends first
func (s *ReconciliationService) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func sameLines(a, b []entity.LineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Description != b[i].Description ||
			a[i].Quantity != b[i].Quantity ||
			a[i].UnitPrice != b[i].UnitPrice ||
			a[i].Tax != b[i].Tax ||
			a[i].Total != b[i].Total {
			return false
		}
	}
	return true
}
