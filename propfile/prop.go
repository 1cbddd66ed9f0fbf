// Package propfile reads and writes Java .properties resource files.
//
// Format: key=value (or key:value) pairs, one logical line each. Lines
// starting with '#' or '!' are comments and are kept verbatim, as are blank
// lines. A line ending in an odd number of backslashes continues on the next
// line, whose leading whitespace is dropped. Keys and values are stored
// unescaped; escaping happens on output according to a Style.
//
// The File type keeps the original line order so that a parsed file can be
// written back with its comments in place.
package propfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ---------------------------------------------------------------------------
// File model
// ---------------------------------------------------------------------------

// lineKind classifies each line in the file.
type lineKind int

const (
	lineBlank   lineKind = iota // blank / whitespace-only line
	lineComment                 // comment line (starts with # or !)
	lineEntry                   // key=value pair
)

// line is a single logical line in the properties file.
type line struct {
	kind  lineKind
	raw   string // original text (comment/blank)
	key   string // only for lineEntry, unescaped
	value string // only for lineEntry, unescaped
}

// File represents a parsed .properties file.
type File struct {
	// lines stores all lines in document order.
	lines []line
	// index maps key → index in lines for fast lookup.
	index map[string]int
}

// New returns an empty file.
func New() *File {
	return &File{index: make(map[string]int)}
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses a .properties file from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses .properties content. Both UTF-8 text and \uXXXX escapes are
// accepted.
func Parse(data []byte) (*File, error) {
	f := New()

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")
	rawLines := strings.Split(text, "\n")

	// Drop trailing empty element from a file that ends with \n.
	if len(rawLines) > 0 && rawLines[len(rawLines)-1] == "" {
		rawLines = rawLines[:len(rawLines)-1]
	}

	for i := 0; i < len(rawLines); i++ {
		raw := rawLines[i]
		trimmed := strings.TrimLeft(raw, " \t\f")

		switch {
		case trimmed == "":
			f.lines = append(f.lines, line{kind: lineBlank, raw: raw})
			continue
		case trimmed[0] == '#' || trimmed[0] == '!':
			f.lines = append(f.lines, line{kind: lineComment, raw: raw})
			continue
		}

		logical := trimmed
		for continues(logical) && i+1 < len(rawLines) {
			i++
			logical = logical[:len(logical)-1] + strings.TrimLeft(rawLines[i], " \t\f")
		}
		if continues(logical) {
			logical = logical[:len(logical)-1]
		}

		k, v := splitKeyValue(logical)
		f.put(UnescapeValue(k), UnescapeValue(v))
	}
	return f, nil
}

// continues reports whether s ends in an odd number of backslashes.
func continues(s string) bool {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// splitKeyValue splits a logical line at the first unescaped '=' or ':'.
// Without one, the first unescaped whitespace separates key and value.
// Leading whitespace of the value is dropped.
func splitKeyValue(s string) (key, value string) {
	ws := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '=', ':':
			return strings.TrimRight(s[:i], " \t\f"), strings.TrimLeft(s[i+1:], " \t\f")
		case ' ', '\t', '\f':
			if ws < 0 {
				ws = i
			}
		}
	}
	if ws >= 0 {
		return s[:ws], strings.TrimLeft(s[ws:], " \t\f")
	}
	return s, ""
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Keys returns all keys in document order.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.index))
	for _, ln := range f.lines {
		if ln.kind == lineEntry {
			keys = append(keys, ln.key)
		}
	}
	return keys
}

// Len returns the number of entries.
func (f *File) Len() int { return len(f.index) }

// Get returns the value for key and whether it was found.
func (f *File) Get(key string) (string, bool) {
	if idx, ok := f.index[key]; ok {
		return f.lines[idx].value, true
	}
	return "", false
}

// Set sets the value of key, appending a new entry when it does not exist.
// A duplicate key keeps its first position.
func (f *File) Set(key, value string) {
	f.put(key, value)
}

func (f *File) put(key, value string) {
	if idx, ok := f.index[key]; ok {
		f.lines[idx].value = value
		return
	}
	f.index[key] = len(f.lines)
	f.lines = append(f.lines, line{kind: lineEntry, key: key, value: value})
}

// AddComment appends a "# text" comment line.
func (f *File) AddComment(text string) {
	f.lines = append(f.lines, line{kind: lineComment, raw: "# " + text})
}

// AddBlank appends an empty line.
func (f *File) AddBlank() {
	f.lines = append(f.lines, line{kind: lineBlank})
}

// Values returns a map of key → value.
func (f *File) Values() map[string]string {
	m := make(map[string]string, len(f.index))
	for _, ln := range f.lines {
		if ln.kind == lineEntry {
			m[ln.key] = ln.value
		}
	}
	return m
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Marshal serialises the file. Keys are always escaped; values follow style.
func (f *File) Marshal(style Style) []byte {
	var buf bytes.Buffer
	for _, ln := range f.lines {
		switch ln.kind {
		case lineBlank:
		case lineComment:
			buf.WriteString(ln.raw)
		case lineEntry:
			buf.WriteString(EscapeKey(ln.key))
			buf.WriteByte('=')
			buf.WriteString(EscapeValue(ln.value, style))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// WriteFile serialises and writes to path, creating parent directories
// with 0755 permissions.
func (f *File) WriteFile(path string, style Style) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, f.Marshal(style), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
