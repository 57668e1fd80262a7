package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/vendsur/caja-api/internal/domain/enum"
	"gorm.io/gorm"
)

// TotalTolerance is the rounding slack, in pesos, allowed between a
// document's total and the sum of its line totals.
const TotalTolerance int64 = 1

// FiscalDocument is the legally required electronic receipt built from a
// committed payment. Once Submitted its content is append-only; only the
// status fields move.
type FiscalDocument struct {
	ID       uuid.UUID           `gorm:"type:uuid;primary_key" json:"id"`
	BuyOrder string              `gorm:"size:64;not null;index" json:"buy_order"`
	Status   enum.DocumentStatus `gorm:"default:0" json:"status"`
	// Folio is assigned by the tax authority once the document is accepted
	Folio   *int64  `json:"folio,omitempty"`
	TrackID *string `gorm:"size:128" json:"track_id,omitempty"`
	// RejectReason carries the authority's reason when Status is Rejected
	RejectReason      *string   `gorm:"type:text" json:"reject_reason,omitempty"`
	SubTotal          int64     `gorm:"not null" json:"sub_total"` // Whole pesos
	Tax               int64     `gorm:"not null" json:"tax"`
	Total             int64     `gorm:"not null" json:"total"`
	AuthorizationCode string    `gorm:"size:32" json:"authorization_code"`
	CardNumber        string    `gorm:"size:32" json:"card_number"` // Masked, last 4 digits only
	TransactionDate   time.Time `json:"transaction_date"`
	// CorrectionCount tracks operator resubmissions of a rejected document
	CorrectionCount int       `gorm:"not null;default:0" json:"correction_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Relationships
	Lines []LineItem `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
}

// BeforeCreate generates a UUID before creating a new fiscal document
func (d *FiscalDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the FiscalDocument model
func (FiscalDocument) TableName() string {
	return "fiscal_documents"
}

// CheckTotals verifies total == subtotal + tax == sum of line totals
// within the rounding tolerance.
func (d *FiscalDocument) CheckTotals() bool {
	var lineSum int64
	for _, l := range d.Lines {
		lineSum += l.Total
	}
	if diff := d.Total - (d.SubTotal + d.Tax); diff > TotalTolerance || diff < -TotalTolerance {
		return false
	}
	if diff := d.Total - lineSum; diff > TotalTolerance || diff < -TotalTolerance {
		return false
	}
	return true
}

// LineItem is one line of a fiscal document, priced with its own tax.
// Created once at build time, never mutated afterwards.
type LineItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	DocumentID  uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null" json:"product_id"`
	Description string    `gorm:"size:255;not null" json:"description"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	UnitPrice   int64     `gorm:"not null" json:"unit_price"` // Whole pesos
	Tax         int64     `gorm:"not null" json:"tax"`
	Total       int64     `gorm:"not null" json:"total"` // Net + tax for this line
	CreatedAt   time.Time `json:"created_at"`
}

// BeforeCreate generates a UUID before creating a new line item
func (l *LineItem) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the LineItem model
func (LineItem) TableName() string {
	return "line_items"
}
