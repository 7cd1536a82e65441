package canonical

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytes returns the lowercase hex SHA-256 digest of content.
// Unlike request-body hashing, content is never truncated and the empty
// input hashes to the SHA-256 of zero bytes.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashString is a convenience wrapper around HashBytes.
func HashString(content string) string {
	return HashBytes([]byte(content))
}

// Hash returns the SHA-256 digest of the canonical serialization of v.
func Hash(v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}
