package keystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// ---------------------------------------------------------------------------
// Source ingestion
// ---------------------------------------------------------------------------

// UpsertSource stores the source text of a key, creating the group on first
// use. Keys that already carry a translation are never modified.
func (s *Store) UpsertSource(ctx context.Context, group, key, originalText string) (Outcome, error) {
	table, err := TableName(group)
	if err != nil {
		return 0, err
	}
	var out Outcome
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureGroup(ctx, tx, group, table, GroupInfo{}); err != nil {
			return err
		}
		out, err = s.upsertSource(ctx, tx, table, key, originalText)
		return err
	})
	return out, err
}

// ImportSource upserts a whole key map in one transaction, registering the
// group with info. Keys are applied in sorted order.
func (s *Store) ImportSource(ctx context.Context, group string, info GroupInfo, entries map[string]string) (ImportCounts, error) {
	var counts ImportCounts
	table, err := TableName(group)
	if err != nil {
		return counts, err
	}
	keys := sortedKeys(entries)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureGroup(ctx, tx, group, table, info); err != nil {
			return err
		}
		for _, key := range keys {
			out, err := s.upsertSource(ctx, tx, table, key, entries[key])
			if err != nil {
				return err
			}
			counts.Add(out)
		}
		return nil
	})
	if err != nil {
		return ImportCounts{}, err
	}
	return counts, nil
}

func (s *Store) upsertSource(ctx context.Context, r runner, table, key, originalText string) (Outcome, error) {
	sel := s.sq.Select("translated_text", "status").From(quoteIdent(table)).Where(sq.Eq{"key": key})
	row, err := queryRow(ctx, r, sel)
	if err != nil {
		return 0, err
	}

	now := s.timestamp()
	pluginKey := nullString(PluginKey(key))

	var existing sql.NullString
	var status string
	switch err := row.Scan(&existing, &status); {
	case errors.Is(err, sql.ErrNoRows):
		ins := s.sq.Insert(quoteIdent(table)).
			Columns("key", "original_text", "plugin_key", "status", "created_at", "updated_at").
			Values(key, originalText, pluginKey, string(StatusPending), now, now)
		if _, err := exec(ctx, r, ins); err != nil {
			return 0, fmt.Errorf("inserting %s: %w", key, err)
		}
		return Inserted, nil
	case err != nil:
		return 0, fmt.Errorf("reading %s: %w", key, err)
	}

	if existing.Valid && strings.TrimSpace(existing.String) != "" {
		return Protected, nil
	}

	st, err := ParseStatus(status)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", key, err)
	}

	upd := s.sq.Update(quoteIdent(table)).
		Set("original_text", originalText).
		Set("plugin_key", sq.Expr("COALESCE(?, plugin_key)", pluginKey)).
		Set("updated_at", now).
		Where(sq.Eq{"key": key})
	// A blank source is stored as translated with a blank value; once real
	// text arrives the key has to be translated again.
	if st == StatusTranslated && strings.TrimSpace(originalText) != "" {
		upd = upd.
			Set("status", string(StatusPending)).
			Set("translated_text", nil).
			Set("translation_method", nil)
	}
	if _, err := exec(ctx, r, upd); err != nil {
		return 0, fmt.Errorf("updating %s: %w", key, err)
	}
	return Updated, nil
}

// ImportTranslated stores existing translations (status translated, method
// "imported"). Missing keys are inserted with an empty source text. Protected
// is never set: an explicit translation import is allowed to replace values.
// Blank values are counted as Skipped and never touch the record.
func (s *Store) ImportTranslated(ctx context.Context, group string, translations map[string]string) (ImportCounts, error) {
	var counts ImportCounts
	table, err := TableName(group)
	if err != nil {
		return counts, err
	}
	keys := sortedKeys(translations)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureGroup(ctx, tx, group, table, GroupInfo{}); err != nil {
			return err
		}
		now := s.timestamp()
		for _, key := range keys {
			value := translations[key]
			if strings.TrimSpace(value) == "" {
				counts.Skipped++
				continue
			}
			upd := s.sq.Update(quoteIdent(table)).
				Set("translated_text", value).
				Set("translation_method", MethodImported).
				Set("status", string(StatusTranslated)).
				Set("updated_at", now).
				Where(sq.Eq{"key": key})
			res, err := exec(ctx, tx, upd)
			if err != nil {
				return fmt.Errorf("updating %s: %w", key, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				counts.Updated++
				continue
			}
			ins := s.sq.Insert(quoteIdent(table)).
				Columns("key", "original_text", "translated_text", "translation_method", "status", "created_at", "updated_at").
				Values(key, "", value, MethodImported, string(StatusTranslated), now, now)
			if _, err := exec(ctx, tx, ins); err != nil {
				return fmt.Errorf("inserting %s: %w", key, err)
			}
			counts.Inserted++
		}
		return nil
	})
	if err != nil {
		return ImportCounts{}, err
	}
	return counts, nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// ListPending returns pending and error records ordered by key. An
// unregistered group has nothing pending.
func (s *Store) ListPending(ctx context.Context, group string) ([]*Record, error) {
	return s.list(ctx, group, sq.Eq{"status": []string{string(StatusPending), string(StatusError)}})
}

// ListTranslated returns translated records ordered by key. This is the
// read-only query used by exports.
func (s *Store) ListTranslated(ctx context.Context, group string) ([]*Record, error) {
	return s.list(ctx, group, sq.And{
		sq.Eq{"status": string(StatusTranslated)},
		sq.NotEq{"translated_text": nil},
	})
}

func (s *Store) list(ctx context.Context, group string, where sq.Sqlizer) ([]*Record, error) {
	table, ok, err := s.groupTable(ctx, s.db, group)
	if err != nil || !ok {
		return nil, err
	}

	b := s.sq.Select(recordColumns...).From(quoteIdent(table)).Where(where).OrderBy("key")
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", group, err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns a single record.
func (s *Store) Get(ctx context.Context, group, key string) (*Record, error) {
	table, err := s.mustGroupTable(ctx, s.db, group)
	if err != nil {
		return nil, err
	}
	b := s.sq.Select(recordColumns...).From(quoteIdent(table)).Where(sq.Eq{"key": key})
	row, err := queryRow(ctx, s.db, b)
	if err != nil {
		return nil, err
	}
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", group, key, ErrNotFound)
		}
		return nil, err
	}
	return rec, nil
}

// Stats computes progress counters for a group. Unregistered groups report
// zeros.
func (s *Store) Stats(ctx context.Context, group string) (Stats, error) {
	table, ok, err := s.groupTable(ctx, s.db, group)
	if err != nil || !ok {
		return Stats{}, err
	}

	b := s.sq.Select("status", "COUNT(*)").From(quoteIdent(table)).GroupBy("status")
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return Stats{}, fmt.Errorf("stats for %s: %w", group, err)
	}
	defer rows.Close()

	var total, translated, pending, errs int
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, err
		}
		st, err := ParseStatus(status)
		if err != nil {
			return Stats{}, fmt.Errorf("group %s: %w", group, err)
		}
		total += n
		switch st {
		case StatusTranslated:
			translated += n
		case StatusPending:
			pending += n
		case StatusError:
			pending += n
			errs += n
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}
	return newStats(total, translated, pending, errs), nil
}

// ---------------------------------------------------------------------------
// Driver writes
// ---------------------------------------------------------------------------

// RecordSuccess marks a key translated. Replaying the same call is harmless.
func (s *Store) RecordSuccess(ctx context.Context, group, key, translatedText, method string) error {
	table, err := s.mustGroupTable(ctx, s.db, group)
	if err != nil {
		return err
	}
	upd := s.sq.Update(quoteIdent(table)).
		Set("translated_text", translatedText).
		Set("translation_method", method).
		Set("status", string(StatusTranslated)).
		Set("updated_at", s.timestamp()).
		Where(sq.Eq{"key": key})
	return s.updateOne(ctx, group, key, upd)
}

// RecordFailure marks a key failed and clears any translation so the key is
// retried on the next run.
func (s *Store) RecordFailure(ctx context.Context, group, key, reason string) error {
	table, err := s.mustGroupTable(ctx, s.db, group)
	if err != nil {
		return err
	}
	upd := s.sq.Update(quoteIdent(table)).
		Set("translated_text", nil).
		Set("translation_method", failureMethod(reason)).
		Set("status", string(StatusError)).
		Set("updated_at", s.timestamp()).
		Where(sq.Eq{"key": key})
	return s.updateOne(ctx, group, key, upd)
}

func (s *Store) updateOne(ctx context.Context, group, key string, upd sq.UpdateBuilder) error {
	res, err := exec(ctx, s.db, upd)
	if err != nil {
		return fmt.Errorf("updating %s/%s: %w", group, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", group, key, ErrNotFound)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
