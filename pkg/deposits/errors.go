package deposits

import "github.com/shopspring/decimal"

// VerificationError reports a payment the provider would not stand behind:
// wrong status, wrong owner, wrong method, unknown reference, or an amount
// outside the deposit policy bounds. Code carries the specific check that
// rejected it.
type VerificationError struct {
	Code   string
	Reason string
}

func (e *VerificationError) Error() string {
	return e.Reason
}

// AmountMismatchError reports a disagreement between the caller-claimed
// amount and the provider-verified amount beyond tolerance. It is distinct
// from VerificationError because retrying without correcting the claim can
// never succeed.
type AmountMismatchError struct {
	Claimed decimal.Decimal
	Reason  string
}

func (e *AmountMismatchError) Error() string {
	return e.Reason
}
