package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vendsur/caja-api/internal/domain/entity"
	"github.com/vendsur/caja-api/internal/domain/enum"
	domainRepo "github.com/vendsur/caja-api/internal/domain/repository"
	"gorm.io/gorm"
)

type fiscalDocumentRepository struct {
	db *gorm.DB
}

// NewFiscalDocumentRepository creates a new fiscal document repository
func NewFiscalDocumentRepository(db *gorm.DB) domainRepo.FiscalDocumentRepository {
	return &fiscalDocumentRepository{db: db}
}

func (r *fiscalDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.FiscalDocument, error) {
	var doc entity.FiscalDocument
	err := r.db.WithContext(ctx).Preload("Lines").First(&doc, "id = ?", id).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *fiscalDocumentRepository) GetByBuyOrder(ctx context.Context, buyOrder string) (*entity.FiscalDocument, error) {
	var doc entity.FiscalDocument
	err := r.db.WithContext(ctx).Preload("Lines").
		Where("buy_order = ?", buyOrder).
		Order("created_at DESC").
		First(&doc).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *fiscalDocumentRepository) List(ctx context.Context, params *domainRepo.DocumentFilterParams) ([]entity.FiscalDocument, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.FiscalDocument{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.BuyOrder != "" {
		query = query.Where("buy_order = ?", params.BuyOrder)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []entity.FiscalDocument
	err := query.Preload("Lines").
		Order("created_at DESC").
		Offset(params.Pagination.Offset()).
		Limit(params.Pagination.PerPage).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *fiscalDocumentRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, trackID string) error {
	updates := map[string]interface{}{
		"status":   enum.DocumentStatusSubmitted,
		"track_id": trackID,
	}
	return r.db.WithContext(ctx).Model(&entity.FiscalDocument{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *fiscalDocumentRepository) MarkAccepted(ctx context.Context, id uuid.UUID, folio int64) error {
	// Guarded on status so a replay cannot overwrite an accepted folio
	return r.db.WithContext(ctx).Model(&entity.FiscalDocument{}).
		Where("id = ? AND status <> ?", id, enum.DocumentStatusAccepted).
		Updates(map[string]interface{}{
			"status": enum.DocumentStatusAccepted,
			"folio":  folio,
		}).Error
}

func (r *fiscalDocumentRepository) MarkRejected(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).Model(&entity.FiscalDocument{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        enum.DocumentStatusRejected,
			"reject_reason": reason,
		}).Error
}

func (r *fiscalDocumentRepository) MarkFailedPermanently(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).Model(&entity.FiscalDocument{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        enum.DocumentStatusFailedPermanently,
			"reject_reason": reason,
		}).Error
}

// ReplaceLines swaps a rejected document's content for the operator's
// corrected version and resets it to Draft for resubmission.
func (r *fiscalDocumentRepository) ReplaceLines(ctx context.Context, id uuid.UUID, lines []entity.LineItem, subTotal, tax, total int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&entity.LineItem{}).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].DocumentID = id
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		return tx.Model(&entity.FiscalDocument{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":           enum.DocumentStatusDraft,
				"sub_total":        subTotal,
				"tax":              tax,
				"total":            total,
				"reject_reason":    nil,
				"track_id":         nil,
				"correction_count": gorm.Expr("correction_count + 1"),
			}).Error
	})
}

func (r *fiscalDocumentRepository) ListSubmittedBefore(ctx context.Context, cutoff time.Time, limit int) ([]entity.FiscalDocument, error) {
	var docs []entity.FiscalDocument
	err := r.db.WithContext(ctx).Preload("Lines").
		Where("status = ? AND updated_at < ?", enum.DocumentStatusSubmitted, cutoff).
		Order("updated_at").
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}
