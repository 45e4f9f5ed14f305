// Package checksum computes content digests for documents and corpus snapshots.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Combine folds a set of per-document digests into one snapshot version.
// The result does not depend on the order of sums.
func Combine(sums []string) string {
	sorted := make([]string, len(sums))
	copy(sorted, sums)
	sort.Strings(sorted)

	h := sha256.New()
	for _, s := range sorted {
		h.Write([]byte(s))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
