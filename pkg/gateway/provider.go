// Package gateway adapts the external payment processor: retrieving the
// authoritative state of a payment, verifying it against business rules, and
// authenticating the processor's webhook deliveries.
package gateway

import "context"

// Payment intent statuses as reported by the provider. StatusSucceeded is the
// only terminal-success value; anything else fails verification with the
// actual status as the reason.
const (
	StatusSucceeded = "succeeded"
	StatusCanceled  = "canceled"
)

// MethodCard is the payment instrument deposits are expected to use.
const MethodCard = "card"

// PaymentIntent is the provider's authoritative record of a payment. Amount
// is in minor units (cents).
type PaymentIntent struct {
	ID                 string            `json:"id"`
	Status             string            `json:"status"`
	Amount             int64             `json:"amount"`
	Currency           string            `json:"currency"`
	PaymentMethodTypes []string          `json:"payment_method_types"`
	Metadata           map[string]string `json:"metadata"`
}

// MetadataUserKey is the metadata field the checkout flow embeds the owner id
// under; ownership verification reads it back.
const MetadataUserKey = "user_id"

// CheckoutMethod selects how the buyer pays.
type CheckoutMethod string

const (
	CheckoutHosted CheckoutMethod = "hosted"
	CheckoutQR     CheckoutMethod = "qr"
)

// CheckoutParams describes a deposit checkout to create.
type CheckoutParams struct {
	AmountMinor int64          `json:"amount"`
	Currency    string         `json:"currency"`
	UserID      string         `json:"user_id"`
	Method      CheckoutMethod `json:"method"`
}

// CheckoutSession is the provider's handle for an initiated payment: either a
// hosted-checkout redirect URL or a QR payment reference, plus the payment
// intent the webhook and polling flows will reference.
type CheckoutSession struct {
	ID         string `json:"id"`
	URL        string `json:"url,omitempty"`
	QRCode     string `json:"qr_code,omitempty"`
	PaymentRef string `json:"payment_intent"`
}

// Provider is the client surface of the external payment processor.
type Provider interface {
	// RetrievePaymentIntent fetches the authoritative state of a payment.
	RetrievePaymentIntent(ctx context.Context, ref string) (*PaymentIntent, error)

	// CreateCheckoutSession opens a new checkout for a deposit.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
}
