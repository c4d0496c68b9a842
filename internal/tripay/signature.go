package tripay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Signature computes the create-transaction signature:
// HMAC-SHA256 over merchantCode+merchantRef+amount keyed with the
// merchant private key, hex encoded.
func Signature(privateKey, merchantCode, merchantRef string, amount int64) string {
	mac := hmac.New(sha256.New, []byte(privateKey))
	mac.Write([]byte(merchantCode + merchantRef + strconv.FormatInt(amount, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallback checks a callback's X-Callback-Signature header
// against HMAC-SHA256 of the raw request body. Constant-time compare.
func VerifyCallback(privateKey string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(privateKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
