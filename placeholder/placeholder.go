// Package placeholder masks {…} placeholders as inert XML markers so that
// a machine translation backend cannot translate, reorder or drop them.
//
// A placeholder such as {0} or {page.count} becomes <ph id="page_count"/>.
// Markup already present in the text is left alone; the backend is asked to
// pass tags through when NeedsTagHandling reports true.
package placeholder

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	placeholderPattern = regexp.MustCompile(`\{([^}]+)\}`)
	markupPattern      = regexp.MustCompile(`<[^>]+>`)
	idReplacer         = strings.NewReplacer(" ", "_", ".", "_")
)

// Tag is the element name used for markers; backends are told to ignore it.
const Tag = "ph"

// Entry maps one marker back to the literal it replaced.
type Entry struct {
	Marker   string
	Original string
}

// Map holds marker → original pairs in encounter order. Repeated
// placeholders share one entry.
type Map []Entry

// Len returns the number of distinct markers.
func (m Map) Len() int { return len(m) }

func (m Map) markerFor(original string) (string, bool) {
	for _, e := range m {
		if e.Original == original {
			return e.Marker, true
		}
	}
	return "", false
}

func (m Map) taken(marker string) bool {
	for _, e := range m {
		if e.Marker == marker {
			return true
		}
	}
	return false
}

func marker(id string) string {
	return fmt.Sprintf(`<%s id="%s"/>`, Tag, id)
}

// Mask replaces every {…} group with its marker. Distinct placeholders whose
// ids sanitize to the same value ({a.b} and {a_b}) get numbered ids, a_b_2
// and so on, so Unmask restores each one.
func Mask(text string) (string, Map) {
	var m Map
	masked := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		if mk, ok := m.markerFor(match); ok {
			return mk
		}
		id := idReplacer.Replace(match[1 : len(match)-1])
		mk := marker(id)
		for n := 2; m.taken(mk); n++ {
			mk = marker(fmt.Sprintf("%s_%d", id, n))
		}
		m = append(m, Entry{Marker: mk, Original: match})
		return mk
	})
	return masked, m
}

// Unmask substitutes every marker in text with its original literal.
func Unmask(text string, m Map) string {
	for _, e := range m {
		text = strings.ReplaceAll(text, e.Marker, e.Original)
	}
	return text
}

// HasPlaceholders reports whether text contains a {…} group.
func HasPlaceholders(text string) bool {
	return placeholderPattern.MatchString(text)
}

// HasMarkup reports whether text contains something that looks like a tag.
func HasMarkup(text string) bool {
	return markupPattern.MatchString(text)
}

// NeedsTagHandling reports whether text must be sent in the backend's
// tag-preserving mode.
func NeedsTagHandling(text string) bool {
	return HasPlaceholders(text) || HasMarkup(text)
}
