// Package fingerprint computes stable content hashes used for change
// detection and embedding-cache keys. Hashes are taken over normalized
// text so that cosmetic differences (line endings, Unicode composition,
// runs of blank lines) do not invalidate cached work.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/folio-labs/folio/internal/textproc"
)

// Content returns the lowercase hex SHA-256 of the normalized form of text.
// Two texts that differ only in line endings, Unicode normalization form,
// or excess blank lines produce the same fingerprint.
func Content(text string) string {
	sum := sha256.Sum256([]byte(textproc.Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Raw returns the lowercase hex SHA-256 of text exactly as given,
// with no normalization. Used where byte-identity matters.
func Raw(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Equal reports whether two texts share the same content fingerprint.
func Equal(a, b string) bool {
	return Content(a) == Content(b)
}
