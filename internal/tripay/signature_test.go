package tripay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestSignatureConcatenationOrder(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("T0001INV5556750000"))
	want := hex.EncodeToString(mac.Sum(nil))

	if got := Signature("secret", "T0001", "INV55567", 50000); got != want {
		t.Fatalf("Signature() = %q, want hmac over merchantCode+merchantRef+amount = %q", got, want)
	}
}

func TestVerifyCallback(t *testing.T) {
	body := []byte(`{"reference":"T0001REF1","merchant_ref":"ORDER-1","status":"PAID"}`)
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	if !VerifyCallback("secret", body, sig) {
		t.Error("VerifyCallback() = false for a valid signature")
	}
	if VerifyCallback("secret", append([]byte("x"), body...), sig) {
		t.Error("VerifyCallback() = true for a tampered body")
	}
	if VerifyCallback("other-secret", body, sig) {
		t.Error("VerifyCallback() = true under the wrong key")
	}
	if VerifyCallback("secret", body, "") {
		t.Error("VerifyCallback() = true for an empty signature")
	}
}
