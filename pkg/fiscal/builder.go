// Package fiscal builds fiscal documents from cart snapshots and
// committed payments. The builder is pure and deterministic: the same
// (snapshot, payment) pair always yields identical totals, which is what
// makes re-deriving a document during a retry safe without asking any
// external system again.
package fiscal

import (
	"fmt"

	"github.com/vendsur/caja-api/internal/domain/entity"
	"github.com/vendsur/caja-api/internal/domain/enum"
	"github.com/vendsur/caja-api/pkg/apperror"
)

// Builder computes line totals and tax for a document. The tax policy is
// configuration, not per-call logic.
type Builder struct {
	taxRateBP int64 // Basis points, 1900 = 19%
}

// NewBuilder creates a builder with the given proportional tax rate in
// basis points.
func NewBuilder(taxRateBP int64) *Builder {
	return &Builder{taxRateBP: taxRateBP}
}

// LineTax returns the tax for a net line total, rounded half up.
func (b *Builder) LineTax(lineNet int64) int64 {
	return (lineNet*b.taxRateBP + 5000) / 10000
}

// Totals prices a set of cart lines: net subtotal, tax, and grand total.
func (b *Builder) Totals(lines []entity.CartLine) (subTotal, tax, total int64) {
	for _, l := range lines {
		net := l.UnitPrice * int64(l.Quantity)
		subTotal += net
		tax += b.LineTax(net)
	}
	total = subTotal + tax
	return subTotal, tax, total
}

// Build derives a Draft fiscal document from a consumed cart snapshot and
// a committed payment. No I/O. The payment amount must match the priced
// cart; a mismatch means the snapshot and the charge disagree, which is a
// bug upstream, never something to retry.
func (b *Builder) Build(snapshot *entity.PendingTransaction, payment *entity.AuthorizedPayment) (*entity.FiscalDocument, error) {
	if len(snapshot.Lines) == 0 {
		return nil, apperror.ErrDocumentBuild
	}
	if payment.Status != enum.PaymentStatusAuthorized {
		return nil, apperror.ErrDocumentBuild
	}

	subTotal, tax, total := b.Totals(snapshot.Lines)
	if payment.Amount != total {
		return nil, apperror.NewAppError(apperror.ErrDocumentBuild.Code,
			fmt.Sprintf("payment amount %d does not match cart total %d for %s", payment.Amount, total, payment.BuyOrder))
	}

	lines := make([]entity.LineItem, 0, len(snapshot.Lines))
	for _, l := range snapshot.Lines {
		net := l.UnitPrice * int64(l.Quantity)
		lineTax := b.LineTax(net)
		lines = append(lines, entity.LineItem{
			ProductID:   l.ProductID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Tax:         lineTax,
			Total:       net + lineTax,
		})
	}

	doc := &entity.FiscalDocument{
		BuyOrder:          payment.BuyOrder,
		Status:            enum.DocumentStatusDraft,
		SubTotal:          subTotal,
		Tax:               tax,
		Total:             total,
		AuthorizationCode: payment.AuthorizationCode,
		CardNumber:        payment.CardNumber,
		TransactionDate:   payment.TransactionDate,
		Lines:             lines,
	}

	if !doc.CheckTotals() {
		return nil, apperror.ErrDocumentBuild
	}
	return doc, nil
}
