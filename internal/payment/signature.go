package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signature returns the hex-encoded HMAC-SHA256 of "<orderID>|<paymentID>",
// the gateway's callback signing scheme.
func Signature(orderID, paymentID string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time.
func VerifySignature(orderID, paymentID, supplied string, secret []byte) bool {
	expected := Signature(orderID, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(supplied))
}
