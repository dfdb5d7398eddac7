// Package signature signs and verifies webhook payloads with HMAC-SHA256.
//
// The signed bytes are the canonical JSON encoding of the payload. Go's
// encoding/json emits map keys in sorted order and struct fields in
// declaration order, so signer and verifier produce byte-identical input as
// long as both marshal the same shape.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Sign returns the hex-encoded HMAC-SHA256 of the payload's canonical JSON
// under the given secret. A payload that cannot be marshaled signs the empty
// string, which keeps the result deterministic instead of erroring.
func Sign(secret string, payload any) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonical(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares in constant time.
func Verify(secret string, payload any, signatureHex string) bool {
	expected, err := hex.DecodeString(Sign(secret, payload))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

func canonical(payload any) []byte {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}
