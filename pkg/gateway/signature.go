package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Signer computes and checks the callback signature
// hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("gateway signing secret is required")
	}
	return &Signer{secret: []byte(secret)}, nil
}

func (s *Signer) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. Hex case is ignored.
func (s *Signer) Verify(orderID, paymentID, signature string) bool {
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hmac.Equal(provided, mac.Sum(nil))
}
