package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Headers sent with every delivery
const (
	HeaderSignature = "X-Chamada-Signature"
	HeaderEvent     = "X-Chamada-Event"
	HeaderDelivery  = "X-Chamada-Delivery"
)

// Sign returns the HMAC-SHA256 of payload as "sha256=<hex>".
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign in constant time.
func Verify(secret string, payload []byte, signature string) bool {
	expectedSignature := Sign(secret, payload)
	return hmac.Equal([]byte(signature), []byte(expectedSignature))
}
