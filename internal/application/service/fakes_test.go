package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vendsur/caja-api/internal/domain/entity"
	"github.com/vendsur/caja-api/internal/domain/enum"
	"github.com/vendsur/caja-api/internal/domain/gateway"
	"github.com/vendsur/caja-api/internal/domain/repository"
	"github.com/vendsur/caja-api/pkg/pagination"
)

// In-memory fakes mirroring the repository contracts closely enough to
// exercise the orchestration logic without a database.

type fakePendingRepo struct {
	mu    sync.Mutex
	items map[string]*entity.PendingTransaction
}

func newFakePendingRepo() *fakePendingRepo {
	return &fakePendingRepo{items: make(map[string]*entity.PendingTransaction)}
}

func (r *fakePendingRepo) Put(ctx context.Context, pending *entity.PendingTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pending.ID == uuid.Nil {
		pending.ID = uuid.New()
	}
	r.items[pending.Token] = pending
	return nil
}

func (r *fakePendingRepo) Get(ctx context.Context, token string) (*entity.PendingTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[token]
	if !ok || p.IsExpired() {
		return nil, nil
	}
	return p, nil
}

func (r *fakePendingRepo) Consume(ctx context.Context, token string) (*entity.PendingTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[token]
	if !ok || p.IsExpired() {
		return nil, nil
	}
	delete(r.items, token)
	return p, nil
}

func (r *fakePendingRepo) DeleteExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, p := range r.items {
		if p.IsExpired() {
			delete(r.items, token)
		}
	}
	return nil
}

// fakeStore implements both the document repository and the ledger so the
// reserve-then-persist coupling behaves like the real transactional one.
type fakeStore struct {
	mu     sync.Mutex
	docs   map[uuid.UUID]*entity.FiscalDocument
	ledger map[string]*entity.LedgerEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:   make(map[uuid.UUID]*entity.FiscalDocument),
		ledger: make(map[string]*entity.LedgerEntry),
	}
}

// copyDoc hands callers their own mutable view, the way a real row scan
// would
func copyDoc(d *entity.FiscalDocument) *entity.FiscalDocument {
	if d == nil {
		return nil
	}
	c := *d
	c.Lines = append([]entity.LineItem(nil), d.Lines...)
	return &c
}

func (s *fakeStore) Reserve(ctx context.Context, doc *entity.FiscalDocument) (*entity.FiscalDocument, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.ledger[doc.BuyOrder]; ok {
		return copyDoc(s.docs[entry.DocumentID]), false, nil
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	s.docs[doc.ID] = copyDoc(doc)
	s.ledger[doc.BuyOrder] = &entity.LedgerEntry{
		ID:         uuid.New(),
		BuyOrder:   doc.BuyOrder,
		DocumentID: doc.ID,
		CreatedAt:  time.Now(),
	}
	return doc, true, nil
}

func (s *fakeStore) Get(ctx context.Context, buyOrder string) (*entity.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger[buyOrder], nil
}

func (s *fakeStore) DeleteOlderThan(ctx context.Context, days int) error { return nil }

func (s *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*entity.FiscalDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyDoc(s.docs[id]), nil
}

func (s *fakeStore) GetByBuyOrder(ctx context.Context, buyOrder string) (*entity.FiscalDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.ledger[buyOrder]
	if !ok {
		return nil, nil
	}
	return copyDoc(s.docs[entry.DocumentID]), nil
}

func (s *fakeStore) List(ctx context.Context, params *repository.DocumentFilterParams) ([]entity.FiscalDocument, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.FiscalDocument
	for _, d := range s.docs {
		if params != nil && params.Status != nil && d.Status != *params.Status {
			continue
		}
		if params != nil && params.BuyOrder != "" && d.BuyOrder != params.BuyOrder {
			continue
		}
		out = append(out, *d)
	}
	return out, int64(len(out)), nil
}

func (s *fakeStore) MarkSubmitted(ctx context.Context, id uuid.UUID, trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	doc.Status = enum.DocumentStatusSubmitted
	doc.TrackID = &trackID
	return nil
}

func (s *fakeStore) MarkAccepted(ctx context.Context, id uuid.UUID, folio int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	if doc.Status == enum.DocumentStatusAccepted {
		return nil
	}
	doc.Status = enum.DocumentStatusAccepted
	doc.Folio = &folio
	return nil
}

func (s *fakeStore) MarkRejected(ctx context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	doc.Status = enum.DocumentStatusRejected
	doc.RejectReason = &reason
	return nil
}

func (s *fakeStore) MarkFailedPermanently(ctx context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	doc.Status = enum.DocumentStatusFailedPermanently
	doc.RejectReason = &reason
	return nil
}

func (s *fakeStore) ReplaceLines(ctx context.Context, id uuid.UUID, lines []entity.LineItem, subTotal, tax, total int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	doc.Lines = lines
	doc.SubTotal = subTotal
	doc.Tax = tax
	doc.Total = total
	doc.Status = enum.DocumentStatusDraft
	doc.RejectReason = nil
	doc.TrackID = nil
	doc.CorrectionCount++
	return nil
}

func (s *fakeStore) ListSubmittedBefore(ctx context.Context, cutoff time.Time, limit int) ([]entity.FiscalDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.FiscalDocument
	for _, d := range s.docs {
		if d.Status == enum.DocumentStatusSubmitted {
			out = append(out, *d)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*entity.ReconciliationTask
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[uuid.UUID]*entity.ReconciliationTask)}
}

func (r *fakeTaskRepo) Create(ctx context.Context, task *entity.ReconciliationTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	task.CreatedAt = time.Now()
	r.tasks[task.ID] = task
	return nil
}

func (r *fakeTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ReconciliationTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[id], nil
}

func (r *fakeTaskRepo) GetOpenByBuyOrder(ctx context.Context, buyOrder string, kind enum.TaskKind) (*entity.ReconciliationTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.BuyOrder == buyOrder && t.Kind == kind && t.IsOpen() {
			return t, nil
		}
	}
	return nil, nil
}

func (r *fakeTaskRepo) List(ctx context.Context, params *repository.TaskFilterParams) ([]entity.ReconciliationTask, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.ReconciliationTask
	for _, t := range r.tasks {
		if params != nil && params.Kind != nil && t.Kind != *params.Kind {
			continue
		}
		if params != nil && params.Status != nil && t.Status != *params.Status {
			continue
		}
		out = append(out, *t)
	}
	return out, int64(len(out)), nil
}

func (r *fakeTaskRepo) ListOpenByKind(ctx context.Context, kind enum.TaskKind, limit int) ([]entity.ReconciliationTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.ReconciliationTask
	for _, t := range r.tasks {
		if t.Kind == kind && t.IsOpen() {
			out = append(out, *t)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) Resolve(ctx context.Context, id uuid.UUID, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return errors.New("task not found")
	}
	now := time.Now()
	t.Status = enum.TaskStatusResolved
	t.ResolvedAt = &now
	t.ResolvedNote = &note
	return nil
}

func (r *fakeTaskRepo) openCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tasks {
		if t.IsOpen() {
			n++
		}
	}
	return n
}

type fakePaymentGateway struct {
	mu          sync.Mutex
	commitFn    func(token string) (*entity.AuthorizedPayment, error)
	statusFn    func(token string) (*entity.AuthorizedPayment, error)
	commitCalls int
	statusCalls int
}

func (g *fakePaymentGateway) Authorize(ctx context.Context, req gateway.AuthorizeRequest) (*gateway.PaymentSession, error) {
	return &gateway.PaymentSession{Token: "tok-" + req.BuyOrder, RedirectURL: "https://gateway.example/pay"}, nil
}

func (g *fakePaymentGateway) Commit(ctx context.Context, token string) (*entity.AuthorizedPayment, error) {
	g.mu.Lock()
	g.commitCalls++
	fn := g.commitFn
	g.mu.Unlock()
	return fn(token)
}

func (g *fakePaymentGateway) Status(ctx context.Context, token string) (*entity.AuthorizedPayment, error) {
	g.mu.Lock()
	g.statusCalls++
	fn := g.statusFn
	g.mu.Unlock()
	if fn == nil {
		return nil, errors.New("status unavailable")
	}
	return fn(token)
}

type fakeTaxAuthority struct {
	mu          sync.Mutex
	submitFn    func(doc *entity.FiscalDocument) (string, error)
	statusFn    func(trackID string) (*gateway.SubmissionStatus, error)
	submitCalls int
}

func (t *fakeTaxAuthority) Submit(ctx context.Context, doc *entity.FiscalDocument) (string, error) {
	t.mu.Lock()
	t.submitCalls++
	fn := t.submitFn
	t.mu.Unlock()
	return fn(doc)
}

func (t *fakeTaxAuthority) QueryStatus(ctx context.Context, trackID string) (*gateway.SubmissionStatus, error) {
	t.mu.Lock()
	fn := t.statusFn
	t.mu.Unlock()
	if fn == nil {
		return &gateway.SubmissionStatus{State: gateway.SubmissionPending}, nil
	}
	return fn(trackID)
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *fakeNotifier) TaskOpened(kind, buyOrder string, amount int64, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, kind+":"+buyOrder)
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*entity.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[uuid.UUID]*entity.Product)}
}

func (r *fakeProductRepo) Create(ctx context.Context, product *entity.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	r.products[product.ID] = product
	return nil
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id], nil
}

func (r *fakeProductRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) List(ctx context.Context, params *pagination.PaginationParams) ([]entity.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Product
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (r *fakeProductRepo) Update(ctx context.Context, product *entity.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = product
	return nil
}

func (r *fakeProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
	return nil
}
