package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// TabAttributeKey is the change-notification key reported when any tab's
// attribute name changes.
func TabAttributeKey(name string) string {
	return "tabAttribute." + name
}

// SetTabValue stores v as attribute name of a tab.
func (s *Store) SetTabValue(ctx context.Context, tabID int, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode tab %d %s: %w", tabID, name, err)
	}
	if err := s.write(ctx, func(tx *sql.Tx, rev int64) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tab_attributes (tab_id, name, value) VALUES (?, ?, ?)
			 ON CONFLICT(tab_id, name) DO UPDATE SET value = excluded.value`,
			tabID, name, string(data)); err != nil {
			return err
		}
		return touch(ctx, tx, TabAttributeKey(name), rev)
	}); err != nil {
		return fmt.Errorf("set tab %d %s: %w", tabID, name, err)
	}
	return s.Poll(ctx)
}

// TabValue decodes attribute name of a tab into v. It reports false if unset.
func (s *Store) TabValue(ctx context.Context, tabID int, name string, v any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM tab_attributes WHERE tab_id = ? AND name = ?", tabID, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get tab %d %s: %w", tabID, name, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode tab %d %s: %w", tabID, name, err)
	}
	return true, nil
}

// TabValues returns attribute name for every tab that has it.
func (s *Store) TabValues(ctx context.Context, name string) (map[int]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT tab_id, value FROM tab_attributes WHERE name = ?", name)
	if err != nil {
		return nil, fmt.Errorf("query tab %s: %w", name, err)
	}
	defer rows.Close()

	out := make(map[int]json.RawMessage)
	for rows.Next() {
		var id int
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan tab %s: %w", name, err)
		}
		out[id] = json.RawMessage(raw)
	}
	return out, rows.Err()
}

// RemoveTabValue unsets attribute name of a tab.
func (s *Store) RemoveTabValue(ctx context.Context, tabID int, name string) error {
	if err := s.write(ctx, func(tx *sql.Tx, rev int64) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM tab_attributes WHERE tab_id = ? AND name = ?", tabID, name)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		return touch(ctx, tx, TabAttributeKey(name), rev)
	}); err != nil {
		return fmt.Errorf("remove tab %d %s: %w", tabID, name, err)
	}
	return s.Poll(ctx)
}

// RemoveTab drops every attribute of a closed tab.
func (s *Store) RemoveTab(ctx context.Context, tabID int) error {
	if err := s.write(ctx, func(tx *sql.Tx, rev int64) error {
		rows, err := tx.QueryContext(ctx, "SELECT name FROM tab_attributes WHERE tab_id = ?", tabID)
		if err != nil {
			return err
		}
		var names []string
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return err
			}
			names = append(names, name)
		}
		rows.Close()
		if len(names) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM tab_attributes WHERE tab_id = ?", tabID); err != nil {
			return err
		}
		for _, name := range names {
			if err := touch(ctx, tx, TabAttributeKey(name), rev); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("remove tab %d: %w", tabID, err)
	}
	return s.Poll(ctx)
}

// touch records a revision for key without storing a value.
func touch(ctx context.Context, tx *sql.Tx, key string, rev int64) error {
	return tombstone(ctx, tx, key, rev)
}
