package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/vendsur/caja-api/internal/domain/entity"
	"github.com/vendsur/caja-api/internal/domain/repository"
	"github.com/vendsur/caja-api/pkg/apperror"
)

// DocumentService is the read side for fiscal documents. All writes go
// through ReconciliationService.
type DocumentService struct {
	docRepo    repository.FiscalDocumentRepository
	ledgerRepo repository.LedgerRepository
}

// NewDocumentService creates a new document service
func NewDocumentService(docRepo repository.FiscalDocumentRepository, ledgerRepo repository.LedgerRepository) *DocumentService {
	return &DocumentService{docRepo: docRepo, ledgerRepo: ledgerRepo}
}

// GetByID returns a document with its lines
func (s *DocumentService) GetByID(ctx context.Context, id uuid.UUID) (*entity.FiscalDocument, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NewNotFoundError("Fiscal document")
	}
	return doc, nil
}

// GetByBuyOrder resolves a buy order through the ledger to its document
func (s *DocumentService) GetByBuyOrder(ctx context.Context, buyOrder string) (*entity.FiscalDocument, error) {
	entry, err := s.ledgerRepo.Get(ctx, buyOrder)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apperror.NewNotFoundError("Fiscal document")
	}
	doc, err := s.docRepo.GetByID(ctx, entry.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NewNotFoundError("Fiscal document")
	}
	return doc, nil
}

// List returns documents matching the filter, newest first
func (s *DocumentService) List(ctx context.Context, params *repository.DocumentFilterParams) ([]entity.FiscalDocument, int64, error) {
	return s.docRepo.List(ctx, params)
}
