package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint hashes the parts with a separator so ("ab","c") and ("a","bc") differ.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
