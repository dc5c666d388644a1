package utils

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// SumSHA256 returns the SHA-256 checksum of the provided data.
func SumSHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// HexSHA256 returns the hex-encoded SHA-256 of the parts joined by NUL bytes.
func HexSHA256(parts ...[]byte) string {
	sum := SumSHA256(bytes.Join(parts, []byte{0}))
	return hex.EncodeToString(sum[:])
}

// CanonicalJSON re-encodes raw JSON so that semantically equal payloads
// produce identical bytes (object keys sorted, insignificant space removed).
func CanonicalJSON(raw []byte) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("null"), nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
