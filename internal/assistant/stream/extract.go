package stream

import (
	"encoding/json"
	"strings"
)

// ExtractField returns the best-effort decoded value of one string field from
// a possibly incomplete JSON object serialization. The buffer may be any
// prefix of the eventual document, including one cut mid-token or mid-escape.
//
// The second return value is false while the field is not yet visible in the
// buffer. Once it is visible, the returned value grows monotonically as the
// buffer grows: for prefixes P1 of P2, ExtractField(P1) is a prefix of
// ExtractField(P2), which is what allows the value to be displayed while it
// is still arriving.
func ExtractField(buffer, field string) (string, bool) {
	// Fast path: the buffer already parses as a complete document.
	var doc map[string]any
	if err := json.Unmarshal([]byte(buffer), &doc); err == nil {
		if v, ok := doc[field].(string); ok {
			return v, true
		}
		return "", false
	}

	// Incremental path: locate `"field"` followed by a colon and an opening
	// quote, then decode escapes by hand up to the end of the buffer.
	start, ok := findFieldValue(buffer, field)
	if !ok {
		return "", false
	}

	var b strings.Builder
	escaped := false
	for i := start; i < len(buffer); i++ {
		c := buffer[i]
		if escaped {
			switch c {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			default:
				// Unknown escape: keep it literally rather than failing.
				b.WriteByte('\\')
				b.WriteByte(c)
			}
			escaped = false
			continue
		}
		switch c {
		case '\\':
			// A buffer ending on this backslash must not decode a phantom
			// escape; the character is withheld until its successor arrives.
			escaped = true
		case '"':
			// Unescaped closing quote: the value is syntactically complete.
			return b.String(), true
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), true
}

// findFieldValue returns the index just past the opening quote of the field's
// string value, or false when the buffer does not yet reach that far. An
// occurrence of the quoted field name that is not followed by a colon and an
// opening quote (for example another field whose value is that literal string)
// is skipped, and the scan continues. Only a buffer that ends before the
// occurrence can be classified is reported absent.
func findFieldValue(buffer, field string) (int, bool) {
	key := `"` + field + `"`
	for off := 0; ; {
		idx := strings.Index(buffer[off:], key)
		if idx < 0 {
			return 0, false
		}
		next := off + idx + len(key)

		i := skipSpace(buffer, next)
		if i >= len(buffer) {
			return 0, false
		}
		if buffer[i] != ':' {
			off = next
			continue
		}
		i = skipSpace(buffer, i+1)
		if i >= len(buffer) {
			return 0, false
		}
		if buffer[i] != '"' {
			off = next
			continue
		}
		return i + 1, true
	}
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}
