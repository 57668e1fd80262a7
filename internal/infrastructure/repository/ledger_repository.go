package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vendsur/caja-api/internal/domain/entity"
	domainRepo "github.com/vendsur/caja-api/internal/domain/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new document ledger repository
func NewLedgerRepository(db *gorm.DB) domainRepo.LedgerRepository {
	return &ledgerRepository{db: db}
}

// Reserve claims the buy order and persists the draft document in one
// database transaction. The INSERT ... ON CONFLICT DO NOTHING on the
// ledger's unique buy_order index is the compare-and-set; when it
// affects no row, a prior attempt already owns the buy order and the
// draft insert is skipped entirely, so a losing racer never leaves a
// dangling document behind.
func (r *ledgerRepository) Reserve(ctx context.Context, doc *entity.FiscalDocument) (*entity.FiscalDocument, bool, error) {
	var (
		winner *entity.FiscalDocument
		won    bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := &entity.LedgerEntry{
			BuyOrder:   doc.BuyOrder,
			DocumentID: doc.ID,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "buy_order"}},
			DoNothing: true,
		}).Create(entry)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			// Lost the race (or this is a replay): hand back the
			// previous winner's document.
			var existing entity.LedgerEntry
			if err := tx.Where("buy_order = ?", doc.BuyOrder).First(&existing).Error; err != nil {
				return err
			}
			var prior entity.FiscalDocument
			if err := tx.Preload("Lines").First(&prior, "id = ?", existing.DocumentID).Error; err != nil {
				return err
			}
			winner = &prior
			return nil
		}

		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		winner = doc
		won = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return winner, won, nil
}

func (r *ledgerRepository) Get(ctx context.Context, buyOrder string) (*entity.LedgerEntry, error) {
	var entry entity.LedgerEntry
	err := r.db.WithContext(ctx).Where("buy_order = ?", buyOrder).First(&entry).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *ledgerRepository) DeleteOlderThan(ctx context.Context, days int) error {
	cutoff := time.Now().AddDate(0, 0, -days)
	return r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&entity.LedgerEntry{}).Error
}
