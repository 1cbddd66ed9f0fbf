package keystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ---------------------------------------------------------------------------
// Group registry
// ---------------------------------------------------------------------------

const registryTable = "group_registry"

// Group is a registered translation group.
type Group struct {
	Key         string
	TableName   string
	DisplayName string
	Description string
	CreatedAt   time.Time
	Metadata    string
}

// GroupInfo carries optional display metadata used when registering a group.
// Empty fields keep whatever the registry already holds.
type GroupInfo struct {
	DisplayName string
	Description string
	Metadata    string
}

var groupKeyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// TableName maps a group key to its table name ("linchpin-suite" ->
// "linchpin_suite").
func TableName(group string) (string, error) {
	if !groupKeyPattern.MatchString(group) {
		return "", fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	}
	r := strings.NewReplacer("-", "_", ".", "_")
	return r.Replace(group), nil
}

// DefaultDisplayName derives a display name from a group key
// ("linchpin-suite" -> "Linchpin Suite").
func DefaultDisplayName(group string) string {
	r := strings.NewReplacer("-", " ", "_", " ")
	return cases.Title(language.English).String(r.Replace(group))
}

// quoteIdent quotes a validated table name for use in SQL text.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

// EnsureGroup creates the group's table and indexes if missing and upserts
// its registry row. It returns the table name.
func (s *Store) EnsureGroup(ctx context.Context, group string, info GroupInfo) (string, error) {
	table, err := TableName(group)
	if err != nil {
		return "", err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		return s.ensureGroup(ctx, tx, group, table, info)
	})
	return table, err
}

func (s *Store) ensureGroup(ctx context.Context, r runner, group, table string, info GroupInfo) error {
	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			original_text TEXT NOT NULL,
			translated_text TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			translation_method TEXT,
			plugin_key TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			metadata TEXT
		)`, quoteIdent(table)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(status)`, quoteIdent("idx_"+table+"_status"), quoteIdent(table)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(plugin_key)`, quoteIdent("idx_"+table+"_plugin"), quoteIdent(table)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(updated_at)`, quoteIdent("idx_"+table+"_updated"), quoteIdent(table)),
	}
	for _, stmt := range ddl {
		if _, err := r.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating table for group %s: %w", group, err)
		}
	}

	displayName := info.DisplayName
	if displayName == "" {
		displayName = DefaultDisplayName(group)
	}

	// Explicit metadata overwrites the registry row; implicit registration
	// only fills in a missing one.
	suffix := "ON CONFLICT(group_key) DO NOTHING"
	if info.DisplayName != "" || info.Description != "" || info.Metadata != "" {
		suffix = `ON CONFLICT(group_key) DO UPDATE SET
			display_name = excluded.display_name,
			description = COALESCE(excluded.description, description),
			metadata = COALESCE(excluded.metadata, metadata)`
	}

	ins := s.sq.Insert(registryTable).
		Columns("group_key", "table_name", "display_name", "description", "created_at", "metadata").
		Values(group, table, displayName, nullString(info.Description), s.timestamp(), nullString(info.Metadata)).
		Suffix(suffix)
	if _, err := exec(ctx, r, ins); err != nil {
		return fmt.Errorf("registering group %s: %w", group, err)
	}
	return nil
}

// ListGroups returns every registered group ordered by display name.
func (s *Store) ListGroups(ctx context.Context) ([]Group, error) {
	b := s.sq.Select("group_key", "table_name", "display_name", "description", "created_at", "metadata").
		From(registryTable).
		OrderBy("display_name", "group_key")
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		var desc, meta sql.NullString
		var created string
		if err := rows.Scan(&g.Key, &g.TableName, &g.DisplayName, &desc, &created, &meta); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		g.Description = desc.String
		g.Metadata = meta.String
		g.CreatedAt = parseTimestamp(created)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GetGroup returns the registry row of a group.
func (s *Store) GetGroup(ctx context.Context, group string) (*Group, error) {
	b := s.sq.Select("group_key", "table_name", "display_name", "description", "created_at", "metadata").
		From(registryTable).
		Where(sq.Eq{"group_key": group})
	row, err := queryRow(ctx, s.db, b)
	if err != nil {
		return nil, err
	}
	var g Group
	var desc, meta sql.NullString
	var created string
	if err := row.Scan(&g.Key, &g.TableName, &g.DisplayName, &desc, &created, &meta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group %s: %w", group, ErrNotFound)
		}
		return nil, fmt.Errorf("reading group %s: %w", group, err)
	}
	g.Description = desc.String
	g.Metadata = meta.String
	g.CreatedAt = parseTimestamp(created)
	return &g, nil
}

// groupTable resolves a group key to its table through the registry. ok is
// false for a group that was never registered; keys that only map to the
// same table name as a registered group do not match it.
func (s *Store) groupTable(ctx context.Context, r runner, group string) (table string, ok bool, err error) {
	if _, err := TableName(group); err != nil {
		return "", false, err
	}
	b := s.sq.Select("table_name").From(registryTable).Where(sq.Eq{"group_key": group})
	row, err := queryRow(ctx, r, b)
	if err != nil {
		return "", false, err
	}
	if err := row.Scan(&table); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolving group %s: %w", group, err)
	}
	return table, true, nil
}

// mustGroupTable is groupTable with ErrNotFound for unregistered groups.
func (s *Store) mustGroupTable(ctx context.Context, r runner, group string) (string, error) {
	table, ok, err := s.groupTable(ctx, r, group)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("group %s: %w", group, ErrNotFound)
	}
	return table, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
