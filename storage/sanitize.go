package storage

import (
	"strings"
	"unicode/utf8"
)

// SanitizeString replaces NUL characters and invalid UTF-8 sequences with
// '?'. Postgres rejects both in TEXT and JSONB values.
func SanitizeString(s string) string {
	if utf8.ValidString(s) && !strings.ContainsRune(s, 0) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == 0 || (r == utf8.RuneError && size == 1) {
			b.WriteByte('?')
		} else {
			b.WriteString(s[:size])
		}
		s = s[size:]
	}
	return b.String()
}

// SanitizeValue sanitizes every string of a decoded JSON value, including
// object keys.
func SanitizeValue(v interface{}) interface{} {
	switch v := v.(type) {
	case string:
		return SanitizeString(v)
	case []interface{}:
		for i := range v {
			v[i] = SanitizeValue(v[i])
		}
		return v
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[SanitizeString(k)] = SanitizeValue(val)
		}
		return out
	default:
		return v
	}
}
