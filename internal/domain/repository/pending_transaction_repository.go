package repository

import (
	"context"

	"github.com/vendsur/caja-api/internal/domain/entity"
)

// PendingTransactionRepository stores cart snapshots across the payment
// redirect round-trip.
type PendingTransactionRepository interface {
	// Put stores a new snapshot keyed by its gateway session token
	Put(ctx context.Context, pending *entity.PendingTransaction) error
	// Get returns the snapshot for a token, or nil if missing/expired.
	// An expired snapshot is indistinguishable from one that never existed.
	Get(ctx context.Context, token string) (*entity.PendingTransaction, error)
	// Consume atomically deletes and returns the snapshot for a token.
	// Returns nil if the token is unknown, already consumed, or expired.
	Consume(ctx context.Context, token string) (*entity.PendingTransaction, error)
	// DeleteExpired removes snapshots past their TTL (for cleanup)
	DeleteExpired(ctx context.Context) error
}
