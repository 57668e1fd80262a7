package enum

// PaymentStatus is the normalized outcome of a payment commit. It is a
// string because it is never persisted on its own row; it travels inside
// the AuthorizedPayment value object and reconciliation task payloads.
type PaymentStatus string

const (
	PaymentStatusAuthorized PaymentStatus = "AUTHORIZED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusAmbiguous  PaymentStatus = "AMBIGUOUS"
)
