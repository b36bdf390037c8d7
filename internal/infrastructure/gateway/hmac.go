package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/harborline/storefront/internal/domain/payment"
)

// HMACGateway verifies webhook payloads signed with HMAC-SHA256 over the raw
// body, hex-encoded, using a shared secret.
type HMACGateway struct {
	secret []byte
}

func NewHMACGateway(secret string) *HMACGateway {
	return &HMACGateway{secret: []byte(secret)}
}

type eventPayload struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	PayerEmail string `json:"payer_email"`
}

func (g *HMACGateway) ParseEvent(body []byte, signature string) (*payment.Event, error) {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return nil, payment.ErrBadSignature
	}

	mac := hmac.New(sha256.New, g.secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), want) {
		return nil, payment.ErrBadSignature
	}

	var p eventPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrMalformedEvent, err)
	}
	if p.ID == "" || p.Type == "" {
		return nil, fmt.Errorf("%w: id and type are required", payment.ErrMalformedEvent)
	}

	return &payment.Event{
		ExternalID: p.ID,
		Type:       p.Type,
		Amount:     p.Amount,
		Currency:   p.Currency,
		PayerEmail: p.PayerEmail,
		Raw:        body,
	}, nil
}

// Sign computes the signature the gateway would attach to body. Exposed for
// tests and local tooling that need to emit verifiable events.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
