package analysis

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/hepworks/tcount/pkg/data"
)

const (
	// Jets below this generated pt are counted as pileup regardless of
	// flavor.
	puGenPtMin = 8.0

	// Sentinel stored for the 2nd/3rd significance when fewer tracks are
	// selected. Part of the output schema; downstream consumers match it
	// literally.
	ipSentinel = -1e10

	progressEvery = 1000
)

// Source supplies event rows by number. Implemented by data.Chain.
type Source interface {
	Events() int64
	Row(n int64) (*data.Row, error)
}

// JetWriter appends discriminant records. Implemented by data.DiscrWriter.
type JetWriter interface {
	Write(rec *data.JetRecord) error
}

// CategoryCounts counts tracks per jet flavor category.
type CategoryCounts struct {
	B     int64 `json:"b"`
	C     int64 `json:"c"`
	Light int64 `json:"light"`
	PU    int64 `json:"pu"`
}

func (c *CategoryCounts) count(j *data.Jet) {
	if j.GenPt < puGenPtMin {
		c.PU++
		return
	}
	f := math.Abs(j.Flavour)
	switch {
	case f == 5:
		c.B++
	case f == 4:
		c.C++
	case f < 4 || j.Flavour == 21:
		c.Light++
	}
}

// CategoryEff is one selected/total pair of the efficiency report.
// Efficiency is nil when the category had no tracks at all: the ratio is
// undefined, not zero.
type CategoryEff struct {
	Selected   int64    `json:"selected"`
	Total      int64    `json:"total"`
	Efficiency *float64 `json:"efficiency,omitempty"`
}

func newCategoryEff(sel, total int64) CategoryEff {
	e := CategoryEff{Selected: sel, Total: total}
	if total > 0 {
		v := float64(sel) / float64(total)
		e.Efficiency = &v
	}
	return e
}

// ThresholdReport is the per-category track efficiency under one selection
// threshold. Cut is nil in cuts-only mode.
type ThresholdReport struct {
	Cut   *float64    `json:"cut,omitempty"`
	B     CategoryEff `json:"b"`
	C     CategoryEff `json:"c"`
	Light CategoryEff `json:"light"`
	PU    CategoryEff `json:"pu"`
}

// Report is the result of one aggregation pass.
type Report struct {
	Events     int64             `json:"events"`
	Jets       int64             `json:"jets"`
	Thresholds []ThresholdReport `json:"thresholds"`
}

// Aggregator runs the discriminant-building pass: iterate events, jets,
// and tracks, select tracks per threshold, keep per-category counters, and
// emit one jet record per jet with at least one non-empty threshold.
type Aggregator struct {
	src Source
	sel *TrackSelector
	w   JetWriter
}

// NewAggregator wires a pass over src, selecting with sel and writing
// through w.
func NewAggregator(src Source, sel *TrackSelector, w JetWriter) *Aggregator {
	return &Aggregator{src: src, sel: sel, w: w}
}

type trackSig struct {
	index int
	sig   float64
}

// sortBySignificance orders selected tracks by decreasing significance.
// Ties keep ascending track index so reruns are byte-identical.
func sortBySignificance(tracks []trackSig) {
	sort.Slice(tracks, func(i, j int) bool {
		if tracks[i].sig != tracks[j].sig {
			return tracks[i].sig > tracks[j].sig
		}
		return tracks[i].index < tracks[j].index
	})
}

// Run executes the full pass and returns the efficiency report.
func (a *Aggregator) Run() (*Report, error) {
	nCuts := a.sel.NCuts()
	nEvents := a.src.Events()
	slog.Info("starting aggregation pass", "events", nEvents, "thresholds", nCuts)

	var total CategoryCounts
	selected := make([]CategoryCounts, nCuts)
	var jetsWritten int64

	selTracks := make([][]trackSig, nCuts)

	for n := int64(0); n < nEvents; n++ {
		row, err := a.src.Row(n)
		if err != nil {
			return nil, err
		}
		if (n+1)%progressEvery == 0 {
			slog.Info("processing events", "event", n+1, "of", nEvents)
		}

		for jetIdx := range row.Jets {
			jet := &row.Jets[jetIdx]
			for i := range selTracks {
				selTracks[i] = selTracks[i][:0]
			}

			for t := jet.FirstTrack; t < jet.LastTrack; t++ {
				// Classified exactly once per track, selected or not.
				total.count(jet)

				keep, err := a.sel.Select(row, t)
				if err != nil {
					return nil, fmt.Errorf("event %d jet %d: %w", row.EventID, jetIdx, err)
				}
				for i, k := range keep {
					if k {
						selected[i].count(jet)
						selTracks[i] = append(selTracks[i], trackSig{index: t, sig: row.Tracks[t].IPsig})
					}
				}
			}

			rec := buildJetRecord(jet, selTracks)
			if rec == nil {
				continue
			}
			if err := a.w.Write(rec); err != nil {
				return nil, err
			}
			jetsWritten++
		}
	}

	rep := &Report{Events: nEvents, Jets: jetsWritten}
	for i := 0; i < nCuts; i++ {
		rep.Thresholds = append(rep.Thresholds, ThresholdReport{
			Cut:   a.sel.CutValue(i),
			B:     newCategoryEff(selected[i].B, total.B),
			C:     newCategoryEff(selected[i].C, total.C),
			Light: newCategoryEff(selected[i].Light, total.Light),
			PU:    newCategoryEff(selected[i].PU, total.PU),
		})
	}
	slog.Info("aggregation pass done", "events", nEvents, "jets", jetsWritten)
	return rep, nil
}

// buildJetRecord derives the discriminant entries for one jet. Returns nil
// when no threshold selected any track; such jets produce no output row.
func buildJetRecord(jet *data.Jet, selTracks [][]trackSig) *data.JetRecord {
	var rec *data.JetRecord
	for i, sel := range selTracks {
		if len(sel) == 0 {
			continue
		}
		if rec == nil {
			rec = &data.JetRecord{
				GenPt:   jet.GenPt,
				Pt:      jet.Pt,
				NTracks: jet.NTracks(),
				Eta:     jet.Eta,
				Phi:     jet.Phi,
				Flavour: jet.Flavour,
			}
		}

		sortBySignificance(sel)
		d := data.DiscrRecord{
			CutIndex:   i,
			NSelTracks: len(sel),
			IP:         sel[0].sig,
			TCHE:       ipSentinel,
			TCHP:       ipSentinel,
		}
		if len(sel) > 1 {
			d.TCHE = sel[1].sig
		}
		if len(sel) > 2 {
			d.TCHP = sel[2].sig
		}
		rec.Discr = append(rec.Discr, d)
	}
	return rec
}
