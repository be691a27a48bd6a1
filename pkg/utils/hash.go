package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CalculateStringSHA256 computes the SHA-256 hash of a string.
func CalculateStringSHA256(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// CalculateJSONSHA256 hashes the JSON encoding of v.
// Map keys are encoded in sorted order, so equal values hash equally.
func CalculateJSONSHA256(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", WrapErrorf(ErrParsing, "JSON encoding for fingerprint (%v)", err)
	}
	return CalculateStringSHA256(string(data)), nil
}
