package store

import (
	"context"
	"fmt"
	"time"
)

// Reading is one logged sensor value.
type Reading struct {
	ID       int64
	Sensor   string
	Value    string
	LoggedAt time.Time
}

// AppendReading records a sensor value keyed by its box key (nid/mal).
func (s *Store) AppendReading(ctx context.Context, sensor, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sens_data (sensor, value, logged_at) VALUES (?, ?, ?)",
		sensor, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append reading for %s: %w", sensor, err)
	}
	return nil
}

// RecentReadings returns up to limit readings for a sensor, newest first.
func (s *Store) RecentReadings(ctx context.Context, sensor string, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, sensor, value, logged_at FROM sens_data WHERE sensor = ? ORDER BY id DESC LIMIT ?",
		sensor, limit)
	if err != nil {
		return nil, fmt.Errorf("query readings for %s: %w", sensor, err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var r Reading
		var ts string
		if err := rows.Scan(&r.ID, &r.Sensor, &r.Value, &ts); err != nil {
			return nil, fmt.Errorf("scan reading row: %w", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339Nano, ts); parseErr == nil {
			r.LoggedAt = parsed
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reading rows: %w", err)
	}
	return readings, nil
}
