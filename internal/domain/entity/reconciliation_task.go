package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/vendsur/caja-api/internal/domain/enum"
	"gorm.io/gorm"
)

// ReconciliationTask is one entry on the operator queue. Ambiguous
// payments and rejected documents always land here — money-safety
// failures are surfaced, never silent.
type ReconciliationTask struct {
	ID       uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	Kind     enum.TaskKind   `gorm:"not null;index" json:"kind"`
	Status   enum.TaskStatus `gorm:"default:0;index" json:"status"`
	BuyOrder string          `gorm:"size:64;not null;index" json:"buy_order"`
	Amount   int64           `gorm:"not null" json:"amount"`
	Reason   string          `gorm:"type:text" json:"reason"`
	// Token is the gateway session token, kept so an ambiguous payment
	// can be resolved with a status query later.
	Token string `gorm:"size:255" json:"token,omitempty"`
	// SnapshotJSON retains the cart snapshot for ambiguous payments: the
	// pending transaction is already consumed by the time ambiguity is
	// detected, and the document builder will need the lines if the
	// payment turns out to have been captured.
	SnapshotJSON *string    `gorm:"type:text" json:"-"`
	DocumentID   *uuid.UUID `gorm:"type:uuid" json:"document_id,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	ResolvedNote *string    `gorm:"type:text" json:"resolved_note,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// BeforeCreate generates a UUID before creating a new task
func (t *ReconciliationTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the ReconciliationTask model
func (ReconciliationTask) TableName() string {
	return "reconciliation_tasks"
}

// IsOpen reports whether the task still needs operator or worker attention
func (t *ReconciliationTask) IsOpen() bool {
	return t.Status == enum.TaskStatusOpen
}
