package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vendsur/caja-api/internal/domain/entity"
	"github.com/vendsur/caja-api/internal/domain/enum"
	"github.com/vendsur/caja-api/pkg/pagination"
)

// DocumentFilterParams filters document listings
type DocumentFilterParams struct {
	Pagination *pagination.PaginationParams
	Status     *enum.DocumentStatus
	BuyOrder   string
}

// FiscalDocumentRepository persists fiscal documents. Creation happens
// through LedgerRepository.Reserve; this repository only reads documents
// and moves their status.
type FiscalDocumentRepository interface {
	// GetByID returns a document with its lines, or nil if absent
	GetByID(ctx context.Context, id uuid.UUID) (*entity.FiscalDocument, error)
	// GetByBuyOrder returns the document built for a buy order, or nil
	GetByBuyOrder(ctx context.Context, buyOrder string) (*entity.FiscalDocument, error)
	// List returns documents matching the filter, newest first
	List(ctx context.Context, params *DocumentFilterParams) ([]entity.FiscalDocument, int64, error)
	// MarkSubmitted records a submission attempt's tracking id.
	// An empty trackID means the submission outcome is unknown.
	MarkSubmitted(ctx context.Context, id uuid.UUID, trackID string) error
	// MarkAccepted finalizes the document with its authority folio
	MarkAccepted(ctx context.Context, id uuid.UUID, folio int64) error
	// MarkRejected records the authority's rejection reason
	MarkRejected(ctx context.Context, id uuid.UUID, reason string) error
	// MarkFailedPermanently retires a document after correction attempts
	// are exhausted
	MarkFailedPermanently(ctx context.Context, id uuid.UUID, reason string) error
	// ReplaceLines swaps a rejected document's content for a corrected
	// version and resets it to Draft, bumping the correction count
	ReplaceLines(ctx context.Context, id uuid.UUID, lines []entity.LineItem, subTotal, tax, total int64) error
	// ListSubmittedBefore returns documents sitting in Submitted since
	// before cutoff, for the background reconciler to poll
	ListSubmittedBefore(ctx context.Context, cutoff time.Time, limit int) ([]entity.FiscalDocument, error)
}
