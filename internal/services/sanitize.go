package services

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Payload is a decoded JSON object before it is bound to a typed request.
type Payload map[string]any

var strictPolicy = bluemonday.StrictPolicy()

// Sanitize strips markup from every string in p, descending into nested
// objects and arrays. Non-string scalars pass through unchanged.
func Sanitize(p Payload) Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return SanitizeString(val)
	case map[string]any:
		return map[string]any(Sanitize(Payload(val)))
	case Payload:
		return Sanitize(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

// maxSanitizePasses bounds the strip/unescape loop for nested entity encodings.
const maxSanitizePasses = 4

// SanitizeString removes all HTML from s and trims surrounding whitespace.
// The result is plain text: entities the policy emits are decoded again, and
// markup that only appears after decoding is stripped on the next pass.
func SanitizeString(s string) string {
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(strictPolicy.Sanitize(s))
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}
