package keystore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "translations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Groups
// ---------------------------------------------------------------------------

func TestTableName(t *testing.T) {
	tests := []struct {
		group string
		want  string
	}{
		{"linchpin-suite", "linchpin_suite"},
		{"comala.workflow", "comala_workflow"},
		{"bigpicture", "bigpicture"},
	}
	for _, tc := range tests {
		got, err := TableName(tc.group)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.group)
	}

	for _, bad := range []string{"", "a b", "x;drop", "-lead", `q"uote`} {
		_, err := TableName(bad)
		assert.ErrorIs(t, err, ErrInvalidGroup, bad)
	}
}

func TestDefaultDisplayName(t *testing.T) {
	assert.Equal(t, "Linchpin Suite", DefaultDisplayName("linchpin-suite"))
	assert.Equal(t, "Comala Workflow", DefaultDisplayName("comala_workflow"))
}

func TestEnsureGroupAndListGroups(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.EnsureGroup(ctx, "zeta-tools", GroupInfo{})
	require.NoError(t, err)
	table, err := s.EnsureGroup(ctx, "acme-suite", GroupInfo{DisplayName: "ACME Suite", Description: "all acme plugins"})
	require.NoError(t, err)
	assert.Equal(t, "acme_suite", table)

	// Implicit re-registration keeps explicit metadata.
	_, err = s.UpsertSource(ctx, "acme-suite", "a.b.c", "Hello")
	require.NoError(t, err)

	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "acme-suite", groups[0].Key)
	assert.Equal(t, "ACME Suite", groups[0].DisplayName)
	assert.Equal(t, "all acme plugins", groups[0].Description)
	assert.Equal(t, "Zeta Tools", groups[1].DisplayName)

	g, err := s.GetGroup(ctx, "acme-suite")
	require.NoError(t, err)
	assert.Equal(t, "acme_suite", g.TableName)

	_, err = s.GetGroup(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// ---------------------------------------------------------------------------
// UpsertSource
// ---------------------------------------------------------------------------

func TestUpsertSource_Outcomes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	out, err := s.UpsertSource(ctx, "acme-suite", "net.seibertmedia.confluence.linchpin.title", "Title")
	require.NoError(t, err)
	assert.Equal(t, Inserted, out)

	out, err = s.UpsertSource(ctx, "acme-suite", "net.seibertmedia.confluence.linchpin.title", "New title")
	require.NoError(t, err)
	assert.Equal(t, Updated, out)

	rec, err := s.Get(ctx, "acme-suite", "net.seibertmedia.confluence.linchpin.title")
	require.NoError(t, err)
	assert.Equal(t, "New title", rec.OriginalText)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, "net.seibertmedia.confluence.linchpin", rec.PluginKey)
	assert.False(t, rec.TranslatedText.Valid)
}

func TestUpsertSource_ProtectsTranslation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertSource(ctx, "acme-suite", "a.b.title", "Hello")
	require.NoError(t, err)
	require.NoError(t, s.RecordSuccess(ctx, "acme-suite", "a.b.title", "Привет", "deepl"))

	out, err := s.UpsertSource(ctx, "acme-suite", "a.b.title", "Hello again")
	require.NoError(t, err)
	assert.Equal(t, Protected, out)

	rec, err := s.Get(ctx, "acme-suite", "a.b.title")
	require.NoError(t, err)
	assert.Equal(t, StatusTranslated, rec.Status)
	assert.Equal(t, "Привет", rec.Translation())
}

func TestUpsertSource_ReopensBlankTranslation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertSource(ctx, "g", "a.b.c", "")
	require.NoError(t, err)
	require.NoError(t, s.RecordSuccess(ctx, "g", "a.b.c", "", "deepl"))

	// Still blank: nothing to retranslate.
	out, err := s.UpsertSource(ctx, "g", "a.b.c", "  ")
	require.NoError(t, err)
	assert.Equal(t, Updated, out)
	rec, err := s.Get(ctx, "g", "a.b.c")
	require.NoError(t, err)
	assert.Equal(t, StatusTranslated, rec.Status)

	out, err = s.UpsertSource(ctx, "g", "a.b.c", "Hello")
	require.NoError(t, err)
	assert.Equal(t, Updated, out)

	rec, err = s.Get(ctx, "g", "a.b.c")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, "Hello", rec.OriginalText)
	assert.False(t, rec.TranslatedText.Valid)
	assert.Empty(t, rec.TranslationMethod)

	pending, err := s.ListPending(ctx, "g")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a.b.c", pending[0].Key)
}

func TestImportSource_Counts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.ImportSource(ctx, "acme-suite", GroupInfo{}, map[string]string{
		"a.b.one":   "One",
		"a.b.two":   "Two",
		"a.b.three": "Three",
	})
	require.NoError(t, err)
	require.NoError(t, s.RecordSuccess(ctx, "acme-suite", "a.b.one", "Один", "deepl"))

	counts, err := s.ImportSource(ctx, "acme-suite", GroupInfo{}, map[string]string{
		"a.b.one":  "One!",
		"a.b.two":  "Two!",
		"a.b.four": "Four",
	})
	require.NoError(t, err)
	assert.Equal(t, ImportCounts{Inserted: 1, Updated: 1, Protected: 1}, counts)
	assert.Equal(t, 3, counts.Total())
}

func TestGroupKeysSharingTableNameStaySeparate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertSource(ctx, "acme-suite", "a.b.title", "Hello")
	require.NoError(t, err)

	pending, err := s.ListPending(ctx, "acme_suite")
	require.NoError(t, err)
	assert.Empty(t, pending)

	st, err := s.Stats(ctx, "acme_suite")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Total)

	_, err = s.Get(ctx, "acme_suite", "a.b.title")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.RecordSuccess(ctx, "acme_suite", "a.b.title", "Привет", "deepl"), ErrNotFound)
	assert.ErrorIs(t, s.RecordFailure(ctx, "acme_suite", "a.b.title", "boom"), ErrNotFound)

	// Registering the second spelling would reuse the same table.
	_, err = s.UpsertSource(ctx, "acme_suite", "a.b.title", "Hi")
	require.Error(t, err)

	rec, err := s.Get(ctx, "acme-suite", "a.b.title")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, "Hello", rec.OriginalText)
}

// ---------------------------------------------------------------------------
// Driver writes
// ---------------------------------------------------------------------------

func TestRecordFailure_ClearsTranslation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertSource(ctx, "g", "k", "text")
	require.NoError(t, err)
	require.NoError(t, s.RecordSuccess(ctx, "g", "k", "текст", "deepl"))

	reason := strings.Repeat("x", 250)
	require.NoError(t, s.RecordFailure(ctx, "g", "k", reason))

	rec, err := s.Get(ctx, "g", "k")
	require.NoError(t, err)
	assert.Equal(t, StatusError, rec.Status)
	assert.False(t, rec.TranslatedText.Valid)
	assert.Equal(t, "error: "+strings.Repeat("x", 100), rec.TranslationMethod)
}

func TestRecordSuccess_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	_, err := s.UpsertSource(ctx, "g", "k", "World")
	require.NoError(t, err)
	require.NoError(t, s.RecordSuccess(ctx, "g", "k", "Мир", "google"))
	first, err := s.Get(ctx, "g", "k")
	require.NoError(t, err)

	require.NoError(t, s.RecordSuccess(ctx, "g", "k", "Мир", "google"))
	second, err := s.Get(ctx, "g", "k")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	st, err := s.Stats(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)
}

func TestRecordSuccess_UnknownKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.EnsureGroup(ctx, "g", GroupInfo{})
	require.NoError(t, err)

	err = s.RecordSuccess(ctx, "g", "missing", "x", "deepl")
	assert.ErrorIs(t, err, ErrNotFound)
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func TestListPending_OrderAndStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"c", "a", "d", "b"} {
		_, err := s.UpsertSource(ctx, "g", k, strings.ToUpper(k))
		require.NoError(t, err)
	}
	require.NoError(t, s.RecordSuccess(ctx, "g", "a", "А", "deepl"))
	require.NoError(t, s.RecordFailure(ctx, "g", "c", "boom"))

	pending, err := s.ListPending(ctx, "g")
	require.NoError(t, err)

	var keys []string
	for _, r := range pending {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"b", "c", "d"}, keys)
	assert.Equal(t, StatusError, pending[1].Status)
}

func TestListPending_UnknownGroup(t *testing.T) {
	s := openTestStore(t)
	pending, err := s.ListPending(context.Background(), "never-imported")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestListTranslated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"b", "a", "c"} {
		_, err := s.UpsertSource(ctx, "g", k, k)
		require.NoError(t, err)
	}
	require.NoError(t, s.RecordSuccess(ctx, "g", "c", "в", "deepl"))
	require.NoError(t, s.RecordSuccess(ctx, "g", "a", "а", "deepl"))

	recs, err := s.ListTranslated(ctx, "g")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].Key)
	assert.Equal(t, "c", recs[1].Key)
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)

	for _, k := range []string{"a", "b", "c", "d"} {
		_, err := s.UpsertSource(ctx, "g", k, k)
		require.NoError(t, err)
	}
	require.NoError(t, s.RecordSuccess(ctx, "g", "a", "1", "deepl"))
	require.NoError(t, s.RecordFailure(ctx, "g", "b", "rate limit"))

	st, err = s.Stats(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 1, st.Translated)
	assert.Equal(t, 3, st.Pending)
	assert.Equal(t, 1, st.Error)
	assert.InDelta(t, 25.0, st.Percentage, 1e-9)
}

func TestStats_RejectsUnknownStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertSource(ctx, "g", "k", "text")
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE "g" SET status = 'done' WHERE key = 'k'`)
	require.NoError(t, err)

	_, err = s.Stats(ctx, "g")
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = s.Get(ctx, "g", "k")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestImportTranslated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertSource(ctx, "g", "a.b.c", "Save")
	require.NoError(t, err)

	counts, err := s.ImportTranslated(ctx, "g", map[string]string{
		"a.b.c": "Сохранить",
		"x.y.z": "Отмена",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Updated)
	assert.Equal(t, 1, counts.Inserted)

	rec, err := s.Get(ctx, "g", "x.y.z")
	require.NoError(t, err)
	assert.Equal(t, "", rec.OriginalText)
	assert.Equal(t, StatusTranslated, rec.Status)
	assert.Equal(t, MethodImported, rec.TranslationMethod)
}

func TestImportTranslated_SkipsBlankValues(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertSource(ctx, "g", "a.b.c", "Save")
	require.NoError(t, err)
	require.NoError(t, s.RecordSuccess(ctx, "g", "a.b.c", "Сохранить", "deepl"))

	counts, err := s.ImportTranslated(ctx, "g", map[string]string{
		"a.b.c": "",
		"x.y.z": " ",
	})
	require.NoError(t, err)
	assert.Equal(t, ImportCounts{Skipped: 2}, counts)

	rec, err := s.Get(ctx, "g", "a.b.c")
	require.NoError(t, err)
	assert.Equal(t, StatusTranslated, rec.Status)
	assert.Equal(t, "Сохранить", rec.Translation())
	assert.Equal(t, "deepl", rec.TranslationMethod)

	_, err = s.Get(ctx, "g", "x.y.z")
	assert.ErrorIs(t, err, ErrNotFound)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestPluginKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"net.seibertmedia.confluence.linchpin.menu.title", "net.seibertmedia.confluence.linchpin"},
		{"com.comalatech.workflow.label", "com.comalatech.workflow"},
		{"a.b", ""},
		{"plain", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, PluginKey(tc.key), tc.key)
	}
}

func TestParseStatus(t *testing.T) {
	for _, v := range []string{"pending", "translated", "error"} {
		st, err := ParseStatus(v)
		require.NoError(t, err)
		assert.Equal(t, Status(v), st)
	}
	_, err := ParseStatus("")
	assert.ErrorIs(t, err, ErrUnknownStatus)
	assert.True(t, StatusError.Retryable())
	assert.False(t, StatusTranslated.Retryable())
}
