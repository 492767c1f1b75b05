package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the header the provider signs webhook deliveries with,
// in the form "t=<unix>,v1=<hex hmac>".
const SignatureHeader = "Webhook-Signature"

// signatureTolerance bounds how stale a signed timestamp may be, limiting
// replay of captured deliveries.
const signatureTolerance = 5 * time.Minute

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Webhook event types delivered by the provider.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventPaymentCanceled  = "payment_intent.canceled"
)

// WebhookEvent is a provider delivery reporting a payment state transition.
type WebhookEvent struct {
	ID     string        `json:"id"`
	Type   string        `json:"type"`
	Intent PaymentIntent `json:"data"`
}

// VerifySignature checks the HMAC-SHA256 signature over "<t>.<payload>" and
// rejects timestamps outside the tolerance window. The payload must not be
// trusted before this check passes.
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	var timestamp int64
	var signature string

	for _, part := range strings.Split(header, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch name {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: malformed timestamp", ErrInvalidSignature)
			}
			timestamp = ts
		case "v1":
			signature = value
		}
	}

	if timestamp == 0 || signature == "" {
		return fmt.Errorf("%w: missing timestamp or signature", ErrInvalidSignature)
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// ParseEvent verifies a webhook delivery's signature and decodes its payload.
func ParseEvent(payload []byte, header, secret string, now time.Time) (*WebhookEvent, error) {
	if err := VerifySignature(payload, header, secret, now); err != nil {
		return nil, err
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("webhook event missing id or type")
	}
	return &event, nil
}

// SignPayload produces the signature header value for a payload. Used by
// tests and local tooling to fabricate valid deliveries.
func SignPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
