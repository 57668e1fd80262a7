package repository

import (
	"context"

	"github.com/vendsur/caja-api/internal/domain/entity"
)

// LedgerRepository enforces at-most-one fiscal document per buy order.
type LedgerRepository interface {
	// Reserve atomically claims the buy order for doc and persists the
	// draft document (with its lines) in the same transaction. If the
	// buy order is already claimed, nothing is written and the previous
	// winner's document is returned with won == false. Two invocations
	// racing on the same buy order therefore produce exactly one
	// persisted document.
	Reserve(ctx context.Context, doc *entity.FiscalDocument) (winner *entity.FiscalDocument, won bool, err error)
	// Get returns the ledger entry for a buy order, or nil if absent
	Get(ctx context.Context, buyOrder string) (*entity.LedgerEntry, error)
	// DeleteOlderThan removes entries for long-final transactions
	// (out-of-band operational cleanup only).
	DeleteOlderThan(ctx context.Context, days int) error
}
