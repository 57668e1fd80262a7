package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerEntry maps a payment's buy order to the one fiscal document that
// was ever built for it. The unique index on BuyOrder is the chokepoint
// that makes duplicate completePayment invocations safe: the insert is
// a compare-and-set, entries are never updated, and they are removed
// only by out-of-band operational cleanup.
type LedgerEntry struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	BuyOrder   string    `gorm:"size:64;uniqueIndex;not null" json:"buy_order"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null" json:"document_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// BeforeCreate generates a UUID before creating a new ledger entry
func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the LedgerEntry model
func (LedgerEntry) TableName() string {
	return "document_ledger"
}
