// Package feedback implements the FeedbackStore (spec §4.12): an
// append-only durable record of decisions plus a derived, TTL-cached
// aggregate of historical approval rates.
package feedback

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/steveyegge/catalogmatch/internal/types"
)

// ConceptHash computes the 16-hex digest salting the intent's salient
// fields (spec §4.12): identical intents must produce identical hashes
// regardless of field ordering.
func ConceptHash(f types.ConceptHashFields) string {
	fields := []string{f.DataNeed, f.TargetEntity, f.TargetProduct, f.TargetSegment, f.Granularity}
	nonEmpty := make([]string, 0, len(fields))
	for _, v := range fields {
		if v != "" {
			nonEmpty = append(nonEmpty, v)
		}
	}
	sort.Strings(nonEmpty)

	sum := sha256.Sum256([]byte(strings.Join(nonEmpty, "|")))
	return strings.ToLower(hex.EncodeToString(sum[:])[:16])
}
