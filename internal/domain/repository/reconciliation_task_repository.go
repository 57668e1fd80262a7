package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/vendsur/caja-api/internal/domain/entity"
	"github.com/vendsur/caja-api/internal/domain/enum"
	"github.com/vendsur/caja-api/pkg/pagination"
)

// TaskFilterParams filters reconciliation queue listings
type TaskFilterParams struct {
	Pagination *pagination.PaginationParams
	Kind       *enum.TaskKind
	Status     *enum.TaskStatus
}

// ReconciliationTaskRepository stores the operator queue.
type ReconciliationTaskRepository interface {
	// Create opens a new task
	Create(ctx context.Context, task *entity.ReconciliationTask) error
	// GetByID returns a task, or nil if absent
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ReconciliationTask, error)
	// GetOpenByBuyOrder returns the open task of a kind for a buy order,
	// or nil — used to avoid duplicate queue entries
	GetOpenByBuyOrder(ctx context.Context, buyOrder string, kind enum.TaskKind) (*entity.ReconciliationTask, error)
	// List returns tasks matching the filter, oldest open first
	List(ctx context.Context, params *TaskFilterParams) ([]entity.ReconciliationTask, int64, error)
	// ListOpenByKind returns up to limit open tasks of a kind
	ListOpenByKind(ctx context.Context, kind enum.TaskKind, limit int) ([]entity.ReconciliationTask, error)
	// Resolve closes a task with an operator/worker note
	Resolve(ctx context.Context, id uuid.UUID, note string) error
}
