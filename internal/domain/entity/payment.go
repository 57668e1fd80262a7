package entity

import (
	"time"

	"github.com/vendsur/caja-api/internal/domain/enum"
)

// AuthorizedPayment is the normalized result of a payment gateway commit.
// It is NOT a database entity — it is a value object produced at the
// adapter boundary and consumed by the reconciliation pipeline. Immutable
// once received; BuyOrder is the join key to everything downstream.
type AuthorizedPayment struct {
	BuyOrder          string             `json:"buy_order"`
	SessionID         string             `json:"session_id"`
	Amount            int64              `json:"amount"` // Whole pesos
	Status            enum.PaymentStatus `json:"status"`
	AuthorizationCode string             `json:"authorization_code"`
	CardNumber        string             `json:"card_number"` // Masked by the gateway
	TransactionDate   time.Time          `json:"transaction_date"`
}

// Authorized reports whether the payment was definitively captured.
func (p *AuthorizedPayment) Authorized() bool {
	return p.Status == enum.PaymentStatusAuthorized
}
