package worker

import (
	"context"
	"log"
	"time"

	"github.com/vendsur/caja-api/internal/application/service"
	"github.com/vendsur/caja-api/internal/domain/enum"
	"github.com/vendsur/caja-api/internal/domain/repository"
)

const (
	// ambiguousBatch bounds how many stuck payments one pass touches
	ambiguousBatch = 50
	// submittedBatch bounds how many pending verdicts one pass polls
	submittedBatch = 100
	// submittedGrace keeps the worker from polling documents the request
	// path is still actively settling
	submittedGrace = 2 * time.Minute
)

// Reconciler is the background half of the pipeline. It drives every
// non-terminal state toward a terminal one: ambiguous payments get their
// settled outcome queried, submitted documents get their verdict polled,
// and expired snapshots get swept. One instance per process.
type Reconciler struct {
	svc             *service.ReconciliationService
	docRepo         repository.FiscalDocumentRepository
	taskRepo        repository.ReconciliationTaskRepository
	pendingRepo     repository.PendingTransactionRepository
	idempotencyRepo repository.IdempotencyRepository
	interval        time.Duration
}

// NewReconciler creates the background reconciler
func NewReconciler(
	svc *service.ReconciliationService,
	docRepo repository.FiscalDocumentRepository,
	taskRepo repository.ReconciliationTaskRepository,
	pendingRepo repository.PendingTransactionRepository,
	idempotencyRepo repository.IdempotencyRepository,
	interval time.Duration,
) *Reconciler {
	return &Reconciler{
		svc:             svc,
		docRepo:         docRepo,
		taskRepo:        taskRepo,
		pendingRepo:     pendingRepo,
		idempotencyRepo: idempotencyRepo,
		interval:        interval,
	}
}

// Run loops until ctx is cancelled. Intended as `go reconciler.Run(ctx)`.
func (r *Reconciler) Run(ctx context.Context) {
	log.Printf("reconciler: starting, interval %s", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler: stopping")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single reconciliation pass. Every step is
// independently idempotent, so a pass interrupted by shutdown leaves
// nothing worse than work for the next pass.
func (r *Reconciler) RunOnce(ctx context.Context) {
	r.resolveAmbiguousPayments(ctx)
	r.pollSubmittedDocuments(ctx)
	r.sweep(ctx)
}

// resolveAmbiguousPayments queries the gateway for each parked commit.
// Tasks stay open while the gateway stays unreachable.
func (r *Reconciler) resolveAmbiguousPayments(ctx context.Context) {
	tasks, err := r.taskRepo.ListOpenByKind(ctx, enum.TaskKindAmbiguousPayment, ambiguousBatch)
	if err != nil {
		log.Printf("reconciler: listing ambiguous tasks: %v", err)
		return
	}

	for i := range tasks {
		result, err := r.svc.ResolveAmbiguous(ctx, tasks[i].ID)
		if err != nil {
			log.Printf("reconciler: ambiguous payment %s still unresolved: %v", tasks[i].BuyOrder, err)
			continue
		}
		log.Printf("reconciler: ambiguous payment %s resolved: %s", tasks[i].BuyOrder, result.Outcome)
	}
}

// pollSubmittedDocuments asks the authority for verdicts on documents
// stuck in Submitted, including ones whose original submission outcome
// was never learned.
func (r *Reconciler) pollSubmittedDocuments(ctx context.Context) {
	cutoff := time.Now().Add(-submittedGrace)
	docs, err := r.docRepo.ListSubmittedBefore(ctx, cutoff, submittedBatch)
	if err != nil {
		log.Printf("reconciler: listing submitted documents: %v", err)
		return
	}

	for i := range docs {
		if err := r.svc.CheckSubmitted(ctx, &docs[i]); err != nil {
			log.Printf("reconciler: document %s still pending: %v", docs[i].BuyOrder, err)
		}
	}
}

// sweep removes expired snapshots and replay-cache entries
func (r *Reconciler) sweep(ctx context.Context) {
	if err := r.pendingRepo.DeleteExpired(ctx); err != nil {
		log.Printf("reconciler: sweeping expired snapshots: %v", err)
	}
	if err := r.idempotencyRepo.DeleteExpired(ctx); err != nil {
		log.Printf("reconciler: sweeping idempotency keys: %v", err)
	}
}
