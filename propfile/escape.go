package propfile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

// Style selects how values are escaped on output.
type Style int

const (
	// StyleUnicode writes every non-ASCII character as \uXXXX, the form
	// Confluence and Jira load regardless of file encoding.
	StyleUnicode Style = iota
	// StyleRaw writes UTF-8 text as-is.
	StyleRaw
)

var keyEscaper = strings.NewReplacer(`\`, `\\`, `=`, `\=`, `:`, `\:`)

// EscapeKey escapes backslashes and the key/value separators.
func EscapeKey(key string) string {
	return keyEscaper.Replace(key)
}

// EscapeValue escapes a value for a .properties line. Backslashes and
// newlines are always escaped; StyleUnicode also escapes non-ASCII text,
// using surrogate pairs outside the Basic Multilingual Plane.
func EscapeValue(value string, style Style) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r > 127 && style == StyleUnicode:
			writeUnicodeEscape(&b, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func writeUnicodeEscape(b *strings.Builder, r rune) {
	if r > 0xFFFF {
		r1, r2 := utf16.EncodeRune(r)
		fmt.Fprintf(b, `\u%04X\u%04X`, r1, r2)
		return
	}
	fmt.Fprintf(b, `\u%04X`, r)
}

// UnescapeValue reverses .properties escaping: \uXXXX (including surrogate
// pairs), \n, \t, \r, \f and backslash-escaped literals. An unknown escape
// yields the escaped character, a malformed \u sequence is kept verbatim.
func UnescapeValue(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			r, n := decodeUnicodeEscape(s[i-1:])
			if n == 0 {
				b.WriteString(`\u`)
				continue
			}
			b.WriteRune(r)
			i += n - 2
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// decodeUnicodeEscape decodes a \uXXXX sequence at the start of s, joining
// a following low surrogate. It returns the rune and the bytes consumed, or
// 0 when s does not start with a valid escape.
func decodeUnicodeEscape(s string) (rune, int) {
	r, ok := hex4(s)
	if !ok {
		return 0, 0
	}
	if utf16.IsSurrogate(r) {
		if r2, ok := hex4(s[6:]); ok {
			if pair := utf16.DecodeRune(r, r2); pair != unicode.ReplacementChar {
				return pair, 12
			}
		}
	}
	return r, 6
}

func hex4(s string) (rune, bool) {
	if len(s) < 6 || s[0] != '\\' || s[1] != 'u' {
		return 0, false
	}
	v, err := strconv.ParseUint(s[2:6], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}

// ---------------------------------------------------------------------------
// Unicode converter
// ---------------------------------------------------------------------------

var unicodeEscape = regexp.MustCompile(`\\u[0-9a-fA-F]{4}(?:\\u[0-9a-fA-F]{4})?`)

// EscapeUnicode replaces every non-ASCII character with \uXXXX and leaves
// everything else untouched.
func EscapeUnicode(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r > 127 {
			writeUnicodeEscape(&b, r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UnescapeUnicode replaces \uXXXX sequences with the characters they encode
// and leaves all other backslashes alone.
func UnescapeUnicode(text string) string {
	return unicodeEscape.ReplaceAllStringFunc(text, func(m string) string {
		r, n := decodeUnicodeEscape(m)
		if n == len(m) {
			return string(r)
		}
		// Two escapes that are not a surrogate pair.
		r2, _ := decodeUnicodeEscape(m[n:])
		return string(r) + string(r2)
	})
}

// Verify reports whether escaped decodes back to original.
func Verify(original, escaped string) bool {
	return UnescapeValue(escaped) == original
}
