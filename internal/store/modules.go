package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ModuleName returns the stored operator-assigned name for a module, or ""
// when none is recorded.
func (s *Store) ModuleName(ctx context.Context, nid, mal string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM modules WHERE nid = ? AND mal = ?", nid, mal).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup module name %s/%s: %w", nid, mal, err)
	}
	return name, nil
}

// SetModuleName upserts the operator-assigned name for a module.
func (s *Store) SetModuleName(ctx context.Context, nid, mal, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO modules (nid, mal, name) VALUES (?, ?, ?)
         ON CONFLICT(nid, mal) DO UPDATE SET name = excluded.name`,
		nid, mal, name)
	if err != nil {
		return fmt.Errorf("store module name %s/%s: %w", nid, mal, err)
	}
	return nil
}

// ForgetModule removes the stored name for a module.
func (s *Store) ForgetModule(ctx context.Context, nid, mal string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM modules WHERE nid = ? AND mal = ?", nid, mal); err != nil {
		return fmt.Errorf("forget module %s/%s: %w", nid, mal, err)
	}
	return nil
}
