// Package export writes translated records of a group as Java .properties
// resource files, either as one file or split into numbered chunks, and
// converts .properties files to JSON.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/minios-linux/plugloc/keystore"
	"github.com/minios-linux/plugloc/langmeta"
	"github.com/minios-linux/plugloc/propfile"
)

// DefaultChunkSize is the number of keys per chunk file.
const DefaultChunkSize = 500

// DefaultDir is the root of export output.
const DefaultDir = "output"

// ErrNothingToExport is returned when a group has no translated records.
var ErrNothingToExport = errors.New("no translated keys to export")

// Source provides the translated records of a group ordered by key.
type Source interface {
	ListTranslated(ctx context.Context, group string) ([]*keystore.Record, error)
}

// Options controls an export.
type Options struct {
	// Locale is the target locale written to headers and file names.
	Locale string
	// Raw writes UTF-8 values instead of \uXXXX escapes.
	Raw bool
	// Now stamps the "Generated" header.
	Now func() time.Time
}

func (o Options) style() propfile.Style {
	if o.Raw {
		return propfile.StyleRaw
	}
	return propfile.StyleUnicode
}

func (o Options) locale() string {
	if o.Locale != "" {
		return langmeta.Canonicalize(o.Locale)
	}
	return langmeta.DefaultLocale
}

func (o Options) generated() string {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	return now().Format(time.UnixDate)
}

// VerifyFailure is a value whose escaped form does not decode back to the
// stored translation.
type VerifyFailure struct {
	Key      string
	Original string
	Escaped  string
}

// Result describes one written file.
type Result struct {
	Path     string
	Keys     int
	Verified int
	Failures []VerifyFailure
}

// OK reports whether every value passed verification.
func (r *Result) OK() bool { return len(r.Failures) == 0 }

// DefaultPath returns output/<group>/<group>_<locale>.properties.
func DefaultPath(group, locale string) string {
	return filepath.Join(DefaultDir, group, fmt.Sprintf("%s_%s.properties", group, locale))
}

// ---------------------------------------------------------------------------
// Single file
// ---------------------------------------------------------------------------

// WriteFile exports all translated keys of group to path.
func WriteFile(ctx context.Context, src Source, group, path string, opts Options) (*Result, error) {
	recs, err := src.ListTranslated(ctx, group)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s: %w", group, ErrNothingToExport)
	}

	f := propfile.New()
	f.AddComment("Generated translation properties file")
	f.AddComment("Group: " + group)
	f.AddComment(fmt.Sprintf("Total keys: %d", len(recs)))
	f.AddComment("Generated: " + opts.generated())
	f.AddBlank()

	res := &Result{Path: path, Keys: len(recs)}
	fill(f, recs, opts, res)
	if err := f.WriteFile(path, opts.style()); err != nil {
		return nil, err
	}
	return res, nil
}

func fill(f *propfile.File, recs []*keystore.Record, opts Options, res *Result) {
	style := opts.style()
	for _, rec := range recs {
		value := rec.Translation()
		f.Set(rec.Key, value)
		if style != propfile.StyleUnicode {
			continue
		}
		escaped := propfile.EscapeValue(value, style)
		res.Verified++
		if !propfile.Verify(value, escaped) {
			res.Failures = append(res.Failures, VerifyFailure{
				Key:      rec.Key,
				Original: truncate(value, 100),
				Escaped:  truncate(escaped, 100),
			})
		}
	}
}

// ---------------------------------------------------------------------------
// Chunks
// ---------------------------------------------------------------------------

// ChunkOptions controls a chunked export.
type ChunkOptions struct {
	Options
	// Prefix names the files; defaults to the group key with '-' as '_'.
	Prefix string
	// Size is the number of keys per file.
	Size int
}

// ChunkPrefix returns the default file prefix for a group.
func ChunkPrefix(group string) string {
	return strings.ReplaceAll(group, "-", "_")
}

// WriteChunks exports the translated keys of group to dir as
// prefix_N_locale.properties files of at most Size keys each.
func WriteChunks(ctx context.Context, src Source, group, dir string, opts ChunkOptions) ([]*Result, error) {
	recs, err := src.ListTranslated(ctx, group)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s: %w", group, ErrNothingToExport)
	}
	size := opts.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = ChunkPrefix(group)
	}
	locale := opts.locale()

	total := len(recs)
	chunks := (total + size - 1) / size
	results := make([]*Result, 0, chunks)
	for n := 1; n <= chunks; n++ {
		start := (n - 1) * size
		end := min(start+size, total)
		part := recs[start:end]

		f := propfile.New()
		f.AddComment("Generated translation properties file")
		f.AddComment("Group: " + group)
		f.AddComment(fmt.Sprintf("Chunk: %d of %d", n, chunks))
		f.AddComment(fmt.Sprintf("Keys in this chunk: %d (range: %d-%d of %d)", len(part), start+1, end, total))
		f.AddComment("Locale: " + locale)
		f.AddComment("Generated: " + opts.generated())
		f.AddBlank()

		path := filepath.Join(dir, fmt.Sprintf("%s_%d_%s.properties", prefix, n, locale))
		res := &Result{Path: path, Keys: len(part)}
		fill(f, part, opts.Options, res)
		if err := f.WriteFile(path, opts.style()); err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
