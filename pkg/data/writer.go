package data

import (
	"database/sql"
	"errors"
	"fmt"
)

// DiscrRecord holds the derived discriminant values for one jet under one
// selection threshold. TCHE/TCHP carry the -1e10 sentinel when fewer than
// 2/3 tracks were selected; the sentinel is part of the output schema.
type DiscrRecord struct {
	CutIndex   int
	NSelTracks int
	IP         float64
	TCHE       float64
	TCHP       float64
}

// JetRecord is one output row of the discriminant dataset: copied jet
// kinematics, written once per jet, plus one DiscrRecord per threshold
// whose selected-track list was non-empty.
type JetRecord struct {
	GenPt   float64
	Pt      float64
	NTracks int
	Eta     float64
	Phi     float64
	Flavour float64
	Discr   []DiscrRecord
}

// DiscrWriter appends jet records to a discriminant store. It is a single
// writer for a single pass: all rows land in one transaction, visible only
// after Commit.
type DiscrWriter struct {
	tx        *sql.Tx
	jetStmt   *sql.Stmt
	discrStmt *sql.Stmt
	done      bool
}

// NewDiscrWriter starts the write transaction on an initialized
// discriminant store.
func NewDiscrWriter(db *sql.DB) (*DiscrWriter, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin write transaction: %w", err)
	}

	jetStmt, err := tx.Prepare(`INSERT INTO jet (genpt, pt, ntracks, eta, phi, flavour)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to prepare jet insert: %w", err)
	}
	discrStmt, err := tx.Prepare(`INSERT INTO jet_discr (jet_id, cut_index, nseltracks, ip, tche, tchp)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to prepare discriminant insert: %w", err)
	}

	return &DiscrWriter{tx: tx, jetStmt: jetStmt, discrStmt: discrStmt}, nil
}

// Write appends one jet record. The record must carry at least one
// discriminant entry.
func (w *DiscrWriter) Write(rec *JetRecord) error {
	if w.done {
		return errors.New("writer already closed")
	}
	if len(rec.Discr) == 0 {
		return errors.New("jet record has no discriminant entries")
	}

	res, err := w.jetStmt.Exec(rec.GenPt, rec.Pt, rec.NTracks, rec.Eta, rec.Phi, rec.Flavour)
	if err != nil {
		return fmt.Errorf("failed to insert jet: %w", err)
	}
	jetID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get jet id: %w", err)
	}

	for _, d := range rec.Discr {
		if _, err := w.discrStmt.Exec(jetID, d.CutIndex, d.NSelTracks, d.IP, d.TCHE, d.TCHP); err != nil {
			return fmt.Errorf("failed to insert discriminant for jet %d: %w", jetID, err)
		}
	}
	return nil
}

// Commit makes the whole dataset visible.
func (w *DiscrWriter) Commit() error {
	if w.done {
		return errors.New("writer already closed")
	}
	w.done = true
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit discriminant dataset: %w", err)
	}
	return nil
}

// Close rolls the transaction back unless Commit was called. Safe to defer
// on every path.
func (w *DiscrWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to roll back discriminant dataset: %w", err)
	}
	return nil
}
