package ec25519

import (
	"crypto/hmac"
	"crypto/sha256"
)

// HashBytes is the size of SHA-256 digests, HMAC tags and derived session
// secrets.
const HashBytes = sha256.Size

// SHA256 hashes the concatenation of the given parts.
func SHA256(parts ...[]byte) [HashBytes]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [HashBytes]byte
	h.Sum(out[:0])
	return out
}

// HMACSHA256 computes an HMAC-SHA-256 tag over the concatenation of the given
// parts.
func HMACSHA256(key [HashBytes]byte, parts ...[]byte) [HashBytes]byte {
	mac := hmac.New(sha256.New, key[:])
	for _, p := range parts {
		mac.Write(p)
	}
	var out [HashBytes]byte
	mac.Sum(out[:0])
	return out
}

// HMACSHA256Verify checks a tag in constant time.
func HMACSHA256Verify(tag [HashBytes]byte, key [HashBytes]byte, parts ...[]byte) bool {
	expected := HMACSHA256(key, parts...)
	return hmac.Equal(tag[:], expected[:])
}
