// Package gateway declares the capability interfaces for the two external
// systems the reconciliation pipeline talks to. Adapters parse whatever
// the wire actually carries into these normalized shapes; nothing past
// this boundary branches on loosely-typed data.
package gateway

import (
	"context"

	"github.com/vendsur/caja-api/internal/domain/entity"
)

// AuthorizeRequest starts a payment attempt for a priced cart.
type AuthorizeRequest struct {
	BuyOrder  string
	SessionID string
	Amount    int64
}

// PaymentSession is what the payer needs to go pay: the gateway token
// and the URL to redirect the browser to.
type PaymentSession struct {
	Token       string
	RedirectURL string
}

// PaymentGateway adapts the external card payment API.
type PaymentGateway interface {
	// Authorize begins a payment attempt. The side effect is external
	// (the payer is redirected); it is never retried internally — each
	// call is a new attempt.
	Authorize(ctx context.Context, req AuthorizeRequest) (*PaymentSession, error)
	// Commit finalizes a payment after the payer returns. Committing a
	// token the gateway already settled must yield the same normalized
	// result, not a second charge. A transport failure whose outcome is
	// unknown returns apperror.ErrPaymentAmbiguous — callers must query,
	// never blindly retry.
	Commit(ctx context.Context, token string) (*entity.AuthorizedPayment, error)
	// Status queries the settled outcome of an attempt without side
	// effects. Used to resolve ambiguous commits.
	Status(ctx context.Context, token string) (*entity.AuthorizedPayment, error)
}

// SubmissionState is the authority's verdict on a submitted document.
type SubmissionState int

const (
	SubmissionPending SubmissionState = iota
	SubmissionAccepted
	SubmissionRejected
)

// SubmissionStatus is the normalized result of a status query.
type SubmissionStatus struct {
	State  SubmissionState
	Folio  int64  // Assigned by the authority, valid when Accepted
	Reason string // Populated when Rejected
}

// TaxAuthority adapts the external fiscal document submission API.
type TaxAuthority interface {
	// Submit sends a built document and returns a tracking id. Failures
	// are classified: apperror.ErrTaxSubmissionTransient may be retried
	// later; a rejection is permanent until the content is corrected.
	Submit(ctx context.Context, doc *entity.FiscalDocument) (trackID string, err error)
	// QueryStatus reports the verdict for a previous submission
	QueryStatus(ctx context.Context, trackID string) (*SubmissionStatus, error)
}
