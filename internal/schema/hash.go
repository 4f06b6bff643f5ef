package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Hash returns a deterministic digest of a declaration set. Tables are
// ordered by name so that splitting declarations across files does not
// change the result; each contributes its intent and fingerprint.
func Hash(tables []Table) string {
	sorted := make([]Table, len(tables))
	copy(sorted, tables)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	for _, t := range sorted {
		h.Write([]byte(t.Intent.Normalize()))
		h.Write([]byte{0})
		h.Write([]byte(Fingerprint(t)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
