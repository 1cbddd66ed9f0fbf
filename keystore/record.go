package keystore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status is the translation state of a single key.
type Status string

const (
	StatusPending    Status = "pending"
	StatusTranslated Status = "translated"
	StatusError      Status = "error"
)

// ParseStatus validates a stored status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusTranslated, StatusError:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

// Retryable reports whether records in this status are picked up by
// ListPending.
func (s Status) Retryable() bool {
	switch s {
	case StatusPending, StatusError:
		return true
	case StatusTranslated:
		return false
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Record
// ---------------------------------------------------------------------------

// Method values written to translation_method.
const (
	MethodImported = "imported"
	errorPrefix    = "error: "
	maxReasonLen   = 100
)

// Record is one translation key of a group.
type Record struct {
	Key          string
	OriginalText string
	// TranslatedText is NULL unless Status is translated.
	TranslatedText    sql.NullString
	Status            Status
	TranslationMethod string
	PluginKey         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Metadata          string
}

// Translation returns the translated text, or "" when there is none.
func (r *Record) Translation() string {
	return r.TranslatedText.String
}

var recordColumns = []string{
	"key", "original_text", "translated_text", "status",
	"translation_method", "plugin_key", "created_at", "updated_at", "metadata",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var rec Record
	var status, created, updated string
	var method, plugin, meta sql.NullString
	if err := sc.Scan(&rec.Key, &rec.OriginalText, &rec.TranslatedText, &status,
		&method, &plugin, &created, &updated, &meta); err != nil {
		return nil, err
	}
	st, err := ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", rec.Key, err)
	}
	rec.Status = st
	rec.TranslationMethod = method.String
	rec.PluginKey = plugin.String
	rec.Metadata = meta.String
	rec.CreatedAt = parseTimestamp(created)
	rec.UpdatedAt = parseTimestamp(updated)
	return &rec, nil
}

// ---------------------------------------------------------------------------
// Upsert outcome
// ---------------------------------------------------------------------------

// Outcome reports what UpsertSource did with a key.
type Outcome int

const (
	// Inserted means the key was new.
	Inserted Outcome = iota
	// Updated means the key existed without a translation and its source
	// text was refreshed.
	Updated
	// Protected means the key already had a translation and was left alone.
	Protected
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Protected:
		return "protected"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// ImportCounts tallies upsert outcomes over a batch of keys.
type ImportCounts struct {
	Inserted  int
	Updated   int
	Protected int
	// Skipped counts blank translations ignored by ImportTranslated.
	Skipped int
}

// Add records one outcome.
func (c *ImportCounts) Add(o Outcome) {
	switch o {
	case Inserted:
		c.Inserted++
	case Updated:
		c.Updated++
	case Protected:
		c.Protected++
	}
}

// Total returns the number of keys processed.
func (c ImportCounts) Total() int {
	return c.Inserted + c.Updated + c.Protected + c.Skipped
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats summarises a group's progress. Pending counts both pending and
// error records, i.e. everything a run would still attempt.
type Stats struct {
	Total      int
	Translated int
	Pending    int
	Error      int
	Percentage float64
}

func newStats(total, translated, pending, errs int) Stats {
	st := Stats{Total: total, Translated: translated, Pending: pending, Error: errs}
	if total > 0 {
		st.Percentage = float64(translated) / float64(total) * 100
	}
	return st
}

// ---------------------------------------------------------------------------
// Plugin key
// ---------------------------------------------------------------------------

// vendorPrefix marks keys whose plugin key spans four segments.
var vendorPrefix = []string{"net", "seibertmedia"}

// PluginKey derives a best-effort plugin key from a dotted translation key:
// four segments for vendor-namespaced keys, otherwise three. Keys with fewer
// than three segments have none.
func PluginKey(key string) string {
	parts := strings.Split(key, ".")
	if len(parts) >= 4 && parts[0] == vendorPrefix[0] && parts[1] == vendorPrefix[1] {
		return strings.Join(parts[:4], ".")
	}
	if len(parts) >= 3 {
		return strings.Join(parts[:3], ".")
	}
	return ""
}

// failureMethod builds the translation_method value for a failed attempt.
func failureMethod(reason string) string {
	r := []rune(reason)
	if len(r) > maxReasonLen {
		r = r[:maxReasonLen]
	}
	return errorPrefix + string(r)
}
