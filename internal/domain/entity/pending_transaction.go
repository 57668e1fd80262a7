package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PendingTransaction is the cart snapshot captured before the payer is
// redirected to the payment gateway. It is keyed by the gateway session
// token, consumed exactly once when the payer returns, and expires after
// a fixed TTL if the payer never comes back.
type PendingTransaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Token     string    `gorm:"size:255;uniqueIndex;not null" json:"token"`
	BuyOrder  string    `gorm:"size:64;uniqueIndex;not null" json:"buy_order"`
	SessionID string    `gorm:"size:64;not null" json:"session_id"`
	SubTotal  int64     `gorm:"not null" json:"sub_total"` // Whole pesos (CLP has no cents)
	Tax       int64     `gorm:"not null" json:"tax"`
	Total     int64     `gorm:"not null" json:"total"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`

	// Relationships
	Lines []CartLine `gorm:"foreignKey:PendingTransactionID;constraint:OnDelete:CASCADE" json:"lines"`
}

// BeforeCreate generates a UUID before creating a new pending transaction
func (p *PendingTransaction) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the PendingTransaction model
func (PendingTransaction) TableName() string {
	return "pending_transactions"
}

// IsExpired checks if the snapshot is past its TTL
func (p *PendingTransaction) IsExpired() bool {
	return time.Now().After(p.ExpiresAt)
}

// CartLine is one priced line of the cart snapshot. Lines are written
// once at checkout begin and never mutated.
type CartLine struct {
	ID                   uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	PendingTransactionID uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	ProductID            uuid.UUID `gorm:"type:uuid;not null" json:"product_id"`
	Description          string    `gorm:"size:255;not null" json:"description"`
	Quantity             int       `gorm:"not null" json:"quantity"`
	UnitPrice            int64     `gorm:"not null" json:"unit_price"` // Whole pesos
	CreatedAt            time.Time `json:"created_at"`
}

// BeforeCreate generates a UUID before creating a new cart line
func (l *CartLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the CartLine model
func (CartLine) TableName() string {
	return "cart_lines"
}
