package data

import (
	"database/sql"
	"fmt"
)

// DiscrChain is a sequentially merged read view over one or more
// discriminant store files. Each logical row is one (jet, threshold) pair:
// the jet's copied kinematics joined with one discriminant entry.
type DiscrChain struct {
	paths []string
	dbs   []*sql.DB
}

// OpenDiscrChain opens the given discriminant store files. Every file must
// exist.
func OpenDiscrChain(paths ...string) (*DiscrChain, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one input file required")
	}

	c := &DiscrChain{paths: paths}
	for _, p := range paths {
		db, err := OpenExisting(p)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.dbs = append(c.dbs, db)
	}
	return c, nil
}

// ForEach streams every (jet, threshold) row in file order, handing each
// to fn as a named-field environment for cut and variable expressions.
func (c *DiscrChain) ForEach(fn func(env map[string]any) error) error {
	for i, db := range c.dbs {
		if err := c.forEachFile(db, c.paths[i], fn); err != nil {
			return err
		}
	}
	return nil
}

func (c *DiscrChain) forEachFile(db *sql.DB, path string, fn func(env map[string]any) error) error {
	rows, err := db.Query(`SELECT j.genpt, j.pt, j.ntracks, j.eta, j.phi, j.flavour,
			d.cut_index, d.nseltracks, d.ip, d.tche, d.tchp
		FROM jet j JOIN jet_discr d ON d.jet_id = j.id
		ORDER BY j.id, d.cut_index`)
	if err != nil {
		return fmt.Errorf("failed to query discriminants in %s: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var genpt, pt, eta, phi, flavour, ip, tche, tchp float64
		var ntracks, cutIndex, nseltracks int
		if err := rows.Scan(&genpt, &pt, &ntracks, &eta, &phi, &flavour,
			&cutIndex, &nseltracks, &ip, &tche, &tchp); err != nil {
			return fmt.Errorf("failed to scan discriminant row in %s: %w", path, err)
		}
		env := map[string]any{
			"Jet_genpt":      genpt,
			"Jet_pt":         pt,
			"Jet_ntracks":    float64(ntracks),
			"Jet_eta":        eta,
			"Jet_phi":        phi,
			"Jet_flavour":    flavour,
			"cut_index":      float64(cutIndex),
			"Jet_nseltracks": float64(nseltracks),
			"Jet_Ip":         ip,
			"TCHE":           tche,
			"TCHP":           tchp,
		}
		if err := fn(env); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read discriminant rows in %s: %w", path, err)
	}
	return nil
}

// Close releases all underlying store connections.
func (c *DiscrChain) Close() error {
	var first error
	for _, db := range c.dbs {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
