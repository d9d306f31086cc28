package data

import (
	"database/sql"
	"fmt"
)

// HistStore persists histograms, category totals, and 2-D point graphs.
// Category names play the role of output subdirectories.
type HistStore struct {
	db *sql.DB
}

// NewHistStore wraps an initialized hist store connection.
func NewHistStore(db *sql.DB) *HistStore {
	return &HistStore{db: db}
}

// SaveCategory records the total entry count for a category.
func (s *HistStore) SaveCategory(name string, total int64) error {
	_, err := s.db.Exec(`INSERT INTO category (name, total) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET total = excluded.total`, name, total)
	if err != nil {
		return fmt.Errorf("failed to save category %s: %w", name, err)
	}
	return nil
}

// Category returns the stored total for a category.
func (s *HistStore) Category(name string) (int64, error) {
	var total int64
	if err := s.db.QueryRow("SELECT total FROM category WHERE name = ?", name).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to load category %s: %w", name, err)
	}
	return total, nil
}

// SaveHistogram stores one fixed-range histogram under a category.
func (s *HistStore) SaveHistogram(category, name, title string, bins int, min, max float64, contents []float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin histogram save: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO histogram (category, name, title, bins, min, max)
		VALUES (?, ?, ?, ?, ?, ?)`, category, name, title, bins, min, max)
	if err != nil {
		return fmt.Errorf("failed to save histogram %s/%s: %w", category, name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get histogram id: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO histogram_bin (hist_id, bin, content) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare bin insert: %w", err)
	}
	for i, c := range contents {
		if _, err := stmt.Exec(id, i, c); err != nil {
			return fmt.Errorf("failed to save bin %d of %s/%s: %w", i, category, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit histogram %s/%s: %w", category, name, err)
	}
	return nil
}

// SaveGraph stores one point sequence under a category.
func (s *HistStore) SaveGraph(category, name string, xs, ys []float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("graph %s/%s has %d x values for %d y values", category, name, len(xs), len(ys))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin graph save: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("INSERT INTO graph (category, name) VALUES (?, ?)", category, name)
	if err != nil {
		return fmt.Errorf("failed to save graph %s/%s: %w", category, name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get graph id: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO graph_point (graph_id, idx, x, y) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare point insert: %w", err)
	}
	for i := range xs {
		if _, err := stmt.Exec(id, i, xs[i], ys[i]); err != nil {
			return fmt.Errorf("failed to save point %d of %s/%s: %w", i, category, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit graph %s/%s: %w", category, name, err)
	}
	return nil
}

// LoadGraph reads a stored point sequence back, in point order.
func (s *HistStore) LoadGraph(category, name string) (xs, ys []float64, err error) {
	var id int64
	err = s.db.QueryRow("SELECT id FROM graph WHERE category = ? AND name = ?", category, name).Scan(&id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find graph %s/%s: %w", category, name, err)
	}

	rows, err := s.db.Query("SELECT x, y FROM graph_point WHERE graph_id = ? ORDER BY idx", id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load graph %s/%s: %w", category, name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var x, y float64
		if err := rows.Scan(&x, &y); err != nil {
			return nil, nil, fmt.Errorf("failed to scan point of %s/%s: %w", category, name, err)
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read points of %s/%s: %w", category, name, err)
	}
	return xs, ys, nil
}
