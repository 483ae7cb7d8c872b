package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/structpricer/internal/database/repositories"
)

// FixingRepository handles historical fixing persistence. It doubles
// as the calibration history provider and feeds the fixing resolver.
type FixingRepository struct {
	*repositories.BaseRepository
}

// NewFixingRepository creates a new fixing repository.
func NewFixingRepository(db *sql.DB, log zerolog.Logger) *FixingRepository {
	return &FixingRepository{
		BaseRepository: repositories.NewBase(db, log.With().Str("repo", "fixings").Logger()),
	}
}

// Upsert records one fixing observation.
func (r *FixingRepository) Upsert(name string, date time.Time, value float64) error {
	query := `
		INSERT INTO fixings (name, date, value) VALUES (?, ?, ?)
		ON CONFLICT(name, date) DO UPDATE SET value = excluded.value
	`
	if _, err := r.DB().Exec(query, name, date.Format("2006-01-02"), value); err != nil {
		return fmt.Errorf("failed to upsert fixing %s: %w", name, err)
	}
	return nil
}

// Series returns the most recent limit fixings for name, oldest
// first.
func (r *FixingRepository) Series(name string, limit int) ([]float64, error) {
	query := `
		SELECT value FROM (
			SELECT date, value FROM fixings WHERE name = ? ORDER BY date DESC LIMIT ?
		) ORDER BY date ASC
	`
	rows, err := r.DB().Query(query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fixing series %s: %w", name, err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan fixing: %w", err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no fixings for %s", name)
	}
	return out, rows.Err()
}

// Latest returns the most recent fixing for name.
func (r *FixingRepository) Latest(name string) (float64, bool) {
	var v float64
	err := r.DB().QueryRow(
		`SELECT value FROM fixings WHERE name = ? ORDER BY date DESC LIMIT 1`, name,
	).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false
	}
	if err != nil {
		return 0, false
	}
	return v, true
}

// Names returns the distinct fixing names in the store.
func (r *FixingRepository) Names() ([]string, error) {
	rows, err := r.DB().Query(`SELECT DISTINCT name FROM fixings ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fixing names: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan fixing name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
