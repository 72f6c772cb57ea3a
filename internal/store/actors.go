package store

import (
	"context"
	"fmt"
)

// ActorRecord is a stored actor configuration document.
type ActorRecord struct {
	ID     int64
	Config string
}

// LoadActors returns all stored actor configs ordered by id.
func (s *Store) LoadActors(ctx context.Context) ([]ActorRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, config FROM actors ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("load actors: %w", err)
	}
	defer rows.Close()

	var records []ActorRecord
	for rows.Next() {
		var rec ActorRecord
		if err := rows.Scan(&rec.ID, &rec.Config); err != nil {
			return nil, fmt.Errorf("scan actor row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actor rows: %w", err)
	}
	return records, nil
}

// SaveActor inserts a new actor config and returns its id, or updates the
// existing row when id is positive.
func (s *Store) SaveActor(ctx context.Context, id int64, configJSON string) (int64, error) {
	if id > 0 {
		if _, err := s.db.ExecContext(ctx, "UPDATE actors SET config = ? WHERE id = ?", configJSON, id); err != nil {
			return 0, fmt.Errorf("update actor %d: %w", id, err)
		}
		return id, nil
	}
	res, err := s.db.ExecContext(ctx, "INSERT INTO actors (config) VALUES (?)", configJSON)
	if err != nil {
		return 0, fmt.Errorf("insert actor: %w", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return newID, nil
}

// DeleteActor removes a stored actor config.
func (s *Store) DeleteActor(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM actors WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete actor %d: %w", id, err)
	}
	return nil
}
