// Package ingest loads source texts and existing translations from files
// into the key store.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minios-linux/plugloc/keystore"
	"github.com/minios-linux/plugloc/langmeta"
	"github.com/minios-linux/plugloc/propfile"
)

// ErrEmpty is returned when a file holds no usable keys.
var ErrEmpty = errors.New("no translation keys found")

// Store is the part of the key store the importers write to.
type Store interface {
	ImportSource(ctx context.Context, group string, info keystore.GroupInfo, entries map[string]string) (keystore.ImportCounts, error)
	ImportTranslated(ctx context.Context, group string, translations map[string]string) (keystore.ImportCounts, error)
}

// Format is a source file layout.
type Format int

const (
	// FormatAuto picks the format from the file extension.
	FormatAuto Format = iota
	FormatJSON
	FormatProperties
)

func detectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".properties") {
		return FormatProperties
	}
	return FormatJSON
}

// ---------------------------------------------------------------------------
// Readers
// ---------------------------------------------------------------------------

// ReadJSON reads a JSON object of key to text. A document shaped like
// {"locale": ..., "translation": {...}} is unwrapped. Non-string values are
// counted in skipped.
func ReadJSON(path string) (entries map[string]string, skipped int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	if inner, ok := raw["translation"]; ok {
		var wrapped map[string]json.RawMessage
		if json.Unmarshal(inner, &wrapped) == nil {
			raw = wrapped
		}
	}

	entries = make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			skipped++
			continue
		}
		entries[k] = s
	}
	return entries, skipped, nil
}

// ReadProperties reads a .properties file into a key map.
func ReadProperties(path string) (map[string]string, error) {
	f, err := propfile.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return f.Values(), nil
}

func read(path string, format Format) (map[string]string, int, error) {
	if format == FormatAuto {
		format = detectFormat(path)
	}
	if format == FormatProperties {
		m, err := ReadProperties(path)
		return m, 0, err
	}
	return ReadJSON(path)
}

// ---------------------------------------------------------------------------
// Import
// ---------------------------------------------------------------------------

// SourceResult reports a source import.
type SourceResult struct {
	Path    string
	Read    int
	Skipped int
	Counts  keystore.ImportCounts
	// Entries holds the imported key map.
	Entries map[string]string
}

// ImportSource reads path and upserts its keys as source texts of group.
// Keys that already have a translation are left untouched.
func ImportSource(ctx context.Context, st Store, group string, info keystore.GroupInfo, path string, format Format) (*SourceResult, error) {
	entries, skipped, err := read(path, format)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	counts, err := st.ImportSource(ctx, group, info, entries)
	if err != nil {
		return nil, fmt.Errorf("importing %s into %s: %w", path, group, err)
	}
	return &SourceResult{Path: path, Read: len(entries), Skipped: skipped, Counts: counts, Entries: entries}, nil
}

// ImportEntries upserts an in-memory key map, as returned by a fetch.
func ImportEntries(ctx context.Context, st Store, group string, info keystore.GroupInfo, entries map[string]string) (keystore.ImportCounts, error) {
	if len(entries) == 0 {
		return keystore.ImportCounts{}, ErrEmpty
	}
	return st.ImportSource(ctx, group, info, entries)
}

// TranslationResult reports a translation import.
type TranslationResult struct {
	Path string
	// Kept counts values written in the target script.
	Kept int
	// Skipped counts values rejected as untranslated or non-string.
	Skipped int
	Counts  keystore.ImportCounts
}

// ImportTranslations reads existing translations from path and stores the
// values that are written in locale's script. Values still in English are
// skipped so the keys stay pending.
func ImportTranslations(ctx context.Context, st Store, group, locale, path string, format Format) (*TranslationResult, error) {
	entries, skipped, err := read(path, format)
	if err != nil {
		return nil, err
	}
	res := &TranslationResult{Path: path, Skipped: skipped}
	kept := make(map[string]string, len(entries))
	for k, v := range entries {
		if langmeta.ContainsTargetScript(v, locale) {
			kept[k] = v
			continue
		}
		res.Skipped++
	}
	res.Kept = len(kept)
	if len(kept) == 0 {
		return res, nil
	}
	res.Counts, err = st.ImportTranslated(ctx, group, kept)
	if err != nil {
		return nil, fmt.Errorf("importing translations from %s into %s: %w", path, group, err)
	}
	return res, nil
}
