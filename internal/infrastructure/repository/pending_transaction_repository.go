package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vendsur/caja-api/internal/domain/entity"
	domainRepo "github.com/vendsur/caja-api/internal/domain/repository"
	"gorm.io/gorm"
)

type pendingTransactionRepository struct {
	db *gorm.DB
}

// NewPendingTransactionRepository creates a new pending transaction repository
func NewPendingTransactionRepository(db *gorm.DB) domainRepo.PendingTransactionRepository {
	return &pendingTransactionRepository{db: db}
}

func (r *pendingTransactionRepository) Put(ctx context.Context, pending *entity.PendingTransaction) error {
	return r.db.WithContext(ctx).Create(pending).Error
}

func (r *pendingTransactionRepository) Get(ctx context.Context, token string) (*entity.PendingTransaction, error) {
	var pending entity.PendingTransaction
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("token = ? AND expires_at > ?", token, time.Now()).
		First(&pending).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pending, nil
}

// Consume is an atomic get-and-delete. The guarded DELETE is the arbiter:
// two concurrent calls for the same token both read the snapshot, but only
// the one whose DELETE affects a row wins; the loser sees not-found. The
// expires_at guard makes an expired snapshot look exactly like one that
// never existed.
func (r *pendingTransactionRepository) Consume(ctx context.Context, token string) (*entity.PendingTransaction, error) {
	var pending entity.PendingTransaction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lines must be read before the delete; the cascade wipes them
		// with the parent row.
		if err := tx.Preload("Lines").
			Where("token = ? AND expires_at > ?", token, time.Now()).
			First(&pending).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", pending.ID).
			Delete(&entity.PendingTransaction{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pending, nil
}

func (r *pendingTransactionRepository) DeleteExpired(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&entity.PendingTransaction{}).Error
}
