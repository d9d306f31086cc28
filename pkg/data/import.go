package data

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const importLogBatch = 1000

// jetRecord and trackRecord mirror one line of the JSONL import format.
type jetRecord struct {
	GenPt      float64 `json:"genpt"`
	Pt         float64 `json:"pt"`
	Eta        float64 `json:"eta"`
	Phi        float64 `json:"phi"`
	Flavour    float64 `json:"flavour"`
	FirstTrack int     `json:"first_track"`
	LastTrack  int     `json:"last_track"`
}

type trackRecord struct {
	IPsig  float64 `json:"ipsig"`
	IP     float64 `json:"ip"`
	Pt     float64 `json:"pt"`
	Eta    float64 `json:"eta"`
	Dxy    float64 `json:"dxy"`
	Dz     float64 `json:"dz"`
	Chi2   float64 `json:"chi2"`
	NHits  float64 `json:"nhits"`
	Length float64 `json:"length"`
	Dist   float64 `json:"dist"`
}

type eventRecord struct {
	Jets   []jetRecord   `json:"jets"`
	Tracks []trackRecord `json:"tracks"`
}

// ImportSummary reports what one import call loaded.
type ImportSummary struct {
	File   string `json:"file"`
	Events int64  `json:"events"`
	Jets   int64  `json:"jets"`
	Tracks int64  `json:"tracks"`
}

// ImportEvents loads one JSON Lines event file (optionally .gz compressed)
// into an event store. Every record becomes one event row; track index
// ranges are validated against the record's track list.
func ImportEvents(db *sql.DB, path string) (*ImportSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	var nextID int64
	if err := db.QueryRow("SELECT COALESCE(MAX(id), 0) FROM event").Scan(&nextID); err != nil {
		return nil, fmt.Errorf("failed to read last event id: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback()

	eventStmt, err := tx.Prepare("INSERT INTO event (id) VALUES (?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare event insert: %w", err)
	}
	jetStmt, err := tx.Prepare(`INSERT INTO jet
		(event_id, jet_idx, genpt, pt, eta, phi, flavour, first_track, last_track)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare jet insert: %w", err)
	}
	trackStmt, err := tx.Prepare(`INSERT INTO track
		(event_id, track_idx, ipsig, ip, pt, eta, dxy, dz, chi2, nhits, length, dist)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare track insert: %w", err)
	}

	sum := &ImportSummary{File: path}
	dec := json.NewDecoder(r)
	for {
		var rec eventRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode event %d in %s: %w", sum.Events+1, path, err)
		}

		nextID++
		if _, err := eventStmt.Exec(nextID); err != nil {
			return nil, fmt.Errorf("failed to insert event %d: %w", nextID, err)
		}

		for i, j := range rec.Jets {
			if j.FirstTrack < 0 || j.LastTrack > len(rec.Tracks) || j.FirstTrack > j.LastTrack {
				return nil, fmt.Errorf("event %d jet %d has track range [%d, %d) outside %d tracks",
					nextID, i, j.FirstTrack, j.LastTrack, len(rec.Tracks))
			}
			if _, err := jetStmt.Exec(nextID, i, j.GenPt, j.Pt, j.Eta, j.Phi, j.Flavour,
				j.FirstTrack, j.LastTrack); err != nil {
				return nil, fmt.Errorf("failed to insert jet %d of event %d: %w", i, nextID, err)
			}
		}
		for i, t := range rec.Tracks {
			if _, err := trackStmt.Exec(nextID, i, t.IPsig, t.IP, t.Pt, t.Eta, t.Dxy, t.Dz,
				t.Chi2, t.NHits, t.Length, t.Dist); err != nil {
				return nil, fmt.Errorf("failed to insert track %d of event %d: %w", i, nextID, err)
			}
		}

		sum.Events++
		sum.Jets += int64(len(rec.Jets))
		sum.Tracks += int64(len(rec.Tracks))
		if sum.Events%importLogBatch == 0 {
			slog.Info("importing events", "file", path, "events", sum.Events)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import of %s: %w", path, err)
	}
	return sum, nil
}
