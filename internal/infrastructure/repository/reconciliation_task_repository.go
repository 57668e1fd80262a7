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

type reconciliationTaskRepository struct {
	db *gorm.DB
}

// NewReconciliationTaskRepository creates a new reconciliation task repository
func NewReconciliationTaskRepository(db *gorm.DB) domainRepo.ReconciliationTaskRepository {
	return &reconciliationTaskRepository{db: db}
}

func (r *reconciliationTaskRepository) Create(ctx context.Context, task *entity.ReconciliationTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *reconciliationTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.ReconciliationTask, error) {
	var task entity.ReconciliationTask
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *reconciliationTaskRepository) GetOpenByBuyOrder(ctx context.Context, buyOrder string, kind enum.TaskKind) (*entity.ReconciliationTask, error) {
	var task entity.ReconciliationTask
	err := r.db.WithContext(ctx).
		Where("buy_order = ? AND kind = ? AND status = ?", buyOrder, kind, enum.TaskStatusOpen).
		First(&task).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *reconciliationTaskRepository) List(ctx context.Context, params *domainRepo.TaskFilterParams) ([]entity.ReconciliationTask, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.ReconciliationTask{})

	if params.Kind != nil {
		query = query.Where("kind = ?", *params.Kind)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []entity.ReconciliationTask
	err := query.Order("status, created_at").
		Offset(params.Pagination.Offset()).
		Limit(params.Pagination.PerPage).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (r *reconciliationTaskRepository) ListOpenByKind(ctx context.Context, kind enum.TaskKind, limit int) ([]entity.ReconciliationTask, error) {
	var tasks []entity.ReconciliationTask
	err := r.db.WithContext(ctx).
		Where("kind = ? AND status = ?", kind, enum.TaskStatusOpen).
		Order("created_at").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *reconciliationTaskRepository) Resolve(ctx context.Context, id uuid.UUID, note string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&entity.ReconciliationTask{}).
		Where("id = ? AND status = ?", id, enum.TaskStatusOpen).
		Updates(map[string]interface{}{
			"status":        enum.TaskStatusResolved,
			"resolved_at":   now,
			"resolved_note": note,
		}).Error
}
