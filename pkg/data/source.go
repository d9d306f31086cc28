package data

import (
	"database/sql"
	"fmt"
)

// Jet is one jet of an event row, with its track index range [FirstTrack,
// LastTrack) into the row's track list.
type Jet struct {
	GenPt      float64
	Pt         float64
	Eta        float64
	Phi        float64
	Flavour    float64
	FirstTrack int
	LastTrack  int
}

// NTracks is the number of tracks in the jet's index range.
func (j *Jet) NTracks() int {
	n := j.LastTrack - j.FirstTrack
	if n < 0 {
		return 0
	}
	return n
}

// Track is one reconstructed track of an event row.
type Track struct {
	IPsig  float64
	IP     float64
	Pt     float64
	Eta    float64
	Dxy    float64
	Dz     float64
	Chi2   float64
	NHits  float64
	Length float64
	Dist   float64
}

// Row is one event: a read-only view of its jets and flattened tracks for
// the duration of a pass.
type Row struct {
	EventID int64
	Jets    []Jet
	Tracks  []Track
}

// TrackEnv builds the named-field environment for evaluating a per-track
// cut expression. Field names are the on-disk schema contract.
func (r *Row) TrackEnv(trackN int) (map[string]any, bool) {
	if trackN < 0 || trackN >= len(r.Tracks) {
		return nil, false
	}
	t := &r.Tracks[trackN]
	return map[string]any{
		"Track_IPsig":   t.IPsig,
		"Track_IP":      t.IP,
		"Track_pt":      t.Pt,
		"Track_eta":     t.Eta,
		"Track_dxy":     t.Dxy,
		"Track_dz":      t.Dz,
		"Track_chi2":    t.Chi2,
		"Track_nHitAll": t.NHits,
		"Track_length":  t.Length,
		"Track_dist":    t.Dist,
	}, true
}

// Chain is a read-only, sequentially merged view over one or more event
// store files, addressable by global row number.
type Chain struct {
	paths  []string
	dbs    []*sql.DB
	counts []int64
	total  int64
}

// OpenChain opens the given event store files. Every file must exist; a
// missing file is a configuration error.
func OpenChain(paths ...string) (*Chain, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one input file required")
	}

	c := &Chain{paths: paths}
	for _, p := range paths {
		db, err := OpenExisting(p)
		if err != nil {
			c.Close()
			return nil, err
		}
		var n int64
		if err := db.QueryRow("SELECT COUNT(*) FROM event").Scan(&n); err != nil {
			db.Close()
			c.Close()
			return nil, fmt.Errorf("failed to count events in %s: %w", p, err)
		}
		c.dbs = append(c.dbs, db)
		c.counts = append(c.counts, n)
		c.total += n
	}
	return c, nil
}

// Events is the total number of event rows across the chain.
func (c *Chain) Events() int64 {
	return c.total
}

// Row loads the event at global row number n (0-based, file order).
func (c *Chain) Row(n int64) (*Row, error) {
	if n < 0 || n >= c.total {
		return nil, fmt.Errorf("row %d out of range (chain has %d events)", n, c.total)
	}

	fileIdx := 0
	local := n
	for local >= c.counts[fileIdx] {
		local -= c.counts[fileIdx]
		fileIdx++
	}
	db := c.dbs[fileIdx]

	var id int64
	err := db.QueryRow("SELECT id FROM event ORDER BY id LIMIT 1 OFFSET ?", local).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to locate event %d in %s: %w", local, c.paths[fileIdx], err)
	}

	row := &Row{EventID: id}

	jets, err := db.Query(`SELECT genpt, pt, eta, phi, flavour, first_track, last_track
		FROM jet WHERE event_id = ? ORDER BY jet_idx`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query jets for event %d: %w", id, err)
	}
	defer jets.Close()
	for jets.Next() {
		var j Jet
		if err := jets.Scan(&j.GenPt, &j.Pt, &j.Eta, &j.Phi, &j.Flavour, &j.FirstTrack, &j.LastTrack); err != nil {
			return nil, fmt.Errorf("failed to scan jet for event %d: %w", id, err)
		}
		row.Jets = append(row.Jets, j)
	}
	if err := jets.Err(); err != nil {
		return nil, fmt.Errorf("failed to read jets for event %d: %w", id, err)
	}

	tracks, err := db.Query(`SELECT ipsig, ip, pt, eta, dxy, dz, chi2, nhits, length, dist
		FROM track WHERE event_id = ? ORDER BY track_idx`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks for event %d: %w", id, err)
	}
	defer tracks.Close()
	for tracks.Next() {
		var t Track
		if err := tracks.Scan(&t.IPsig, &t.IP, &t.Pt, &t.Eta, &t.Dxy, &t.Dz, &t.Chi2, &t.NHits, &t.Length, &t.Dist); err != nil {
			return nil, fmt.Errorf("failed to scan track for event %d: %w", id, err)
		}
		row.Tracks = append(row.Tracks, t)
	}
	if err := tracks.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tracks for event %d: %w", id, err)
	}

	return row, nil
}

// Close releases all underlying store connections.
func (c *Chain) Close() error {
	var first error
	for _, db := range c.dbs {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
