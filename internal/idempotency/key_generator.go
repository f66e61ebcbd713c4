package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateKey hashes parts into a fixed-length key, so long callback payloads
// never end up verbatim in Redis key names.
func GenerateKey(parts ...any) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v|", part)
	}

	return hex.EncodeToString(h.Sum(nil))
}
