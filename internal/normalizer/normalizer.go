// Package normalizer applies idempotent cleanup to an inbound lead
// document: whitespace collapsing on every string leaf, plus role-specific
// rules for fields that are known to carry an email address or a phone
// number.
package normalizer

import (
	"strings"
	"unicode"

	"github.com/Priya8975/leadgateway/internal/document"
)

// Config names which object keys, at any depth, carry an email or a phone
// number so the normalizer can apply the role-specific rule to them.
// Matching is case-insensitive on the key name.
type Config struct {
	EmailKeys []string
	PhoneKeys []string
}

// Normalizer walks a document and produces a cleaned copy. normalize(d) is
// idempotent: running it twice yields the same result as running it once.
type Normalizer struct {
	emailKeys map[string]struct{}
	phoneKeys map[string]struct{}
}

func New(cfg Config) *Normalizer {
	n := &Normalizer{
		emailKeys: toSet(cfg.EmailKeys),
		phoneKeys: toSet(cfg.PhoneKeys),
	}
	return n
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return set
}

// Normalize returns a cleaned copy of doc. The input is never mutated.
func (n *Normalizer) Normalize(doc document.Value) document.Value {
	return n.walk(doc, "")
}

// walk recurses through the tree. key is the object key the current node
// was found under (empty for the root and for array elements), used to
// decide whether a string leaf plays the email/phone role.
func (n *Normalizer) walk(v document.Value, key string) document.Value {
	switch v.Kind {
	case document.KindString:
		return document.String(n.normalizeString(v.Str, key))
	case document.KindArray:
		items := make([]document.Value, len(v.Arr))
		for i, e := range v.Arr {
			items[i] = n.walk(e, "")
		}
		return document.Array(items)
	case document.KindObject:
		out := make(map[string]document.Value, len(v.Obj))
		for k, e := range v.Obj {
			out[k] = n.walk(e, k)
		}
		return document.Object(out)
	default:
		return v
	}
}

func (n *Normalizer) normalizeString(s string, key string) string {
	cleaned := collapseWhitespace(strings.TrimSpace(s))

	lowerKey := strings.ToLower(key)
	if _, ok := n.emailKeys[lowerKey]; ok {
		return strings.ToLower(cleaned)
	}
	if _, ok := n.phoneKeys[lowerKey]; ok {
		return digitsOnly(cleaned)
	}
	return cleaned
}

// collapseWhitespace reduces any run of whitespace to a single space.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inRun {
				b.WriteRune(' ')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteRune(r)
	}
	return b.String()
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
