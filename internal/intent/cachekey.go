package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/steveyegge/catalogmatch/internal/types"
)

// stopwords is the fixed Portuguese stopword set removed before hashing
// (spec §4.1 step (c)).
var stopwords = map[string]struct{}{
	"a": {}, "o": {}, "os": {}, "as": {}, "de": {}, "do": {}, "da": {},
	"dos": {}, "das": {}, "e": {}, "em": {}, "um": {}, "uma": {}, "para": {},
	"com": {}, "no": {}, "na": {}, "nos": {}, "nas": {}, "que": {}, "se": {},
	"por": {}, "como": {}, "tem": {}, "ter": {}, "onde": {},
}

var nonLetterSpace = regexp.MustCompile(`[^\p{L}\s]`)

// CacheKey builds the deterministic cache key for a (rawQuery,
// variableName, context) triple per spec §4.1: lowercase, strip
// non-letter/space characters, remove stopwords, de-duplicate and sort
// the remaining tokens, append sorted context key:value pairs, hash with
// SHA-256 and take the first 32 hex characters.
func CacheKey(rawQuery, variableName string, ctx types.RequestContext) string {
	text := strings.ToLower(rawQuery + " " + variableName)
	text = nonLetterSpace.ReplaceAllString(text, " ")

	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range strings.Fields(text) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	ctxMap := ctx.AsMap()
	ctxKeys := make([]string, 0, len(ctxMap))
	for k := range ctxMap {
		ctxKeys = append(ctxKeys, k)
	}
	sort.Strings(ctxKeys)

	var b strings.Builder
	b.WriteString(strings.Join(tokens, " "))
	for _, k := range ctxKeys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString(":")
		b.WriteString(ctxMap[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:32]
}
