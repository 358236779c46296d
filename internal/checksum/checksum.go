// Package checksum computes content digests of stored dossier text. The
// digest doubles as the HTTP entity tag for optimistic concurrency.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Quote formats sum as a strong ETag header value.
func Quote(sum string) string {
	return `"` + sum + `"`
}

// ParseETag extracts the digest from an If-Match or ETag header value. A
// weak prefix and surrounding quotes are dropped; "*" and an empty header
// yield "", meaning no precondition.
func ParseETag(header string) string {
	v := strings.TrimSpace(header)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	if v == "*" {
		return ""
	}
	return v
}

// Matches reports whether the If-Match header value is satisfied by the
// digest of data.
func Matches(header string, data []byte) bool {
	want := ParseETag(header)
	return want == "" || want == Sum(data)
}
