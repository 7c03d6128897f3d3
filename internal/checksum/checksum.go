// Package checksum derives short content versions used for optimistic concurrency.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Version returns the first 16 hex characters of the SHA-256 digest of content.
// It is stable for equal content and used as a block ETag.
func Version(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:8])
}
