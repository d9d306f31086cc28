// Package analysis holds the selection, aggregation, and curve derivation
// pipeline: per-track selection under multiple thresholds, the event→jet→
// track discriminant pass, histogram filling, efficiency-vs-cut curves,
// and ROC construction.
package analysis

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/hepworks/tcount/pkg/config"
	"github.com/hepworks/tcount/pkg/data"
	"github.com/hepworks/tcount/pkg/mva"
)

// CutSelector accepts or rejects a track with a compiled cut expression
// over the track's named fields.
type CutSelector struct {
	src  string
	prog *vm.Program
}

// NewCutSelector compiles a track cut expression, e.g.
// "Track_pt > 1 && abs(Track_dz) < 0.3".
func NewCutSelector(src string) (*CutSelector, error) {
	prog, err := expr.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("failed to compile track cut %q: %w", src, err)
	}
	return &CutSelector{src: src, prog: prog}, nil
}

// String returns the source expression.
func (s *CutSelector) String() string {
	return s.src
}

// Accept evaluates the cut for track trackN of the row. The environment is
// rebuilt per track so vector fields are read at the right index.
func (s *CutSelector) Accept(row *data.Row, trackN int) (bool, error) {
	env, ok := row.TrackEnv(trackN)
	if !ok {
		return false, fmt.Errorf("track %d out of range for event %d", trackN, row.EventID)
	}
	out, err := expr.Run(s.prog, env)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate track cut %q: %w", s.src, err)
	}
	return truthy(s.src, out)
}

// truthy maps a cut result to a decision: booleans directly, numbers as
// non-zero.
func truthy(src string, out any) (bool, error) {
	switch v := out.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cut %q evaluated to %T, want bool or number", src, out)
	}
}

// MVASelector scores tracks with a trained classifier and compares the
// score against every configured cut value. Input variables are held as an
// ordered list; the model's variable order is authoritative.
type MVASelector struct {
	name  string
	model *mva.Model
	vars  []mvaVar
	cuts  []float64
	vals  []float64
}

type mvaVar struct {
	name string
	prog *vm.Program
}

// NewMVASelector loads the classifier model and compiles its input
// variable expressions. A missing model file fails here, before any event
// is processed. When cfg.Vars is set it must match the model's variable
// list exactly, order included.
func NewMVASelector(cfg *config.Classifier) (*MVASelector, error) {
	m, err := mva.Load(cfg.Path)
	if err != nil {
		return nil, err
	}
	if m.Name != cfg.Name {
		return nil, fmt.Errorf("model file %s holds model %q, config names %q", cfg.Path, m.Name, cfg.Name)
	}
	if len(cfg.Vars) > 0 {
		if len(cfg.Vars) != len(m.Variables) {
			return nil, fmt.Errorf("classifier %s config lists %d vars, model has %d", cfg.Name, len(cfg.Vars), len(m.Variables))
		}
		for i, v := range cfg.Vars {
			if v != m.Variables[i] {
				return nil, fmt.Errorf("classifier %s var %d is %q in config, %q in model", cfg.Name, i, v, m.Variables[i])
			}
		}
	}

	s := &MVASelector{
		name:  cfg.Name,
		model: m,
		cuts:  cfg.Cuts,
		vals:  make([]float64, len(m.Variables)),
	}
	for _, v := range m.Variables {
		prog, err := expr.Compile(v)
		if err != nil {
			return nil, fmt.Errorf("failed to compile classifier variable %q: %w", v, err)
		}
		s.vars = append(s.vars, mvaVar{name: v, prog: prog})
	}
	return s, nil
}

// Cuts returns the configured score thresholds.
func (s *MVASelector) Cuts() []float64 {
	return s.cuts
}

// Score re-evaluates every input variable for the given track, in model
// order, and returns the classifier response.
func (s *MVASelector) Score(row *data.Row, trackN int) (float64, error) {
	env, ok := row.TrackEnv(trackN)
	if !ok {
		return 0, fmt.Errorf("track %d out of range for event %d", trackN, row.EventID)
	}
	for i, v := range s.vars {
		out, err := expr.Run(v.prog, env)
		if err != nil {
			return 0, fmt.Errorf("failed to evaluate classifier variable %q: %w", v.name, err)
		}
		f, err := numeric(v.name, out)
		if err != nil {
			return 0, err
		}
		s.vals[i] = f
	}
	return s.model.Score(s.vals)
}

// Evaluate returns one accept decision per configured cut value.
func (s *MVASelector) Evaluate(row *data.Row, trackN int) ([]bool, error) {
	score, err := s.Score(row, trackN)
	if err != nil {
		return nil, err
	}
	keep := make([]bool, len(s.cuts))
	for i, c := range s.cuts {
		keep[i] = score > c
	}
	return keep, nil
}

func numeric(name string, out any) (float64, error) {
	switch v := out.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("variable %q evaluated to %T, want number", name, out)
	}
}

// TrackSelector combines an optional cut selector and an optional
// classifier selector into per-threshold accept decisions. With no
// classifier there is a single implicit threshold.
type TrackSelector struct {
	cut   *CutSelector
	mva   *MVASelector
	nCuts int
}

// NewTrackSelector builds the combined selector. Both arguments may be
// nil, in which case every track is accepted.
func NewTrackSelector(cut *CutSelector, m *MVASelector) *TrackSelector {
	n := 1
	if m != nil {
		n = len(m.Cuts())
	}
	return &TrackSelector{cut: cut, mva: m, nCuts: n}
}

// NCuts is the number of simultaneous selection thresholds.
func (s *TrackSelector) NCuts() int {
	return s.nCuts
}

// CutValue returns the classifier threshold for index i, or nil in
// cuts-only mode where no score threshold exists.
func (s *TrackSelector) CutValue(i int) *float64 {
	if s.mva == nil {
		return nil
	}
	v := s.mva.Cuts()[i]
	return &v
}

// Select returns one accept decision per threshold for the given track.
// The rectangular cut is evaluated once and ANDed into every threshold;
// the classifier score is computed once and compared per threshold. When
// the cut already rejects, the classifier is skipped: no threshold can
// still accept, so the outcome is identical.
func (s *TrackSelector) Select(row *data.Row, trackN int) ([]bool, error) {
	keep := make([]bool, s.nCuts)
	for i := range keep {
		keep[i] = true
	}

	if s.cut != nil {
		ok, err := s.cut.Accept(row, trackN)
		if err != nil {
			return nil, err
		}
		if !ok {
			for i := range keep {
				keep[i] = false
			}
			return keep, nil
		}
	}

	if s.mva != nil {
		mvaKeep, err := s.mva.Evaluate(row, trackN)
		if err != nil {
			return nil, err
		}
		for i := range keep {
			keep[i] = keep[i] && mvaKeep[i]
		}
	}
	return keep, nil
}
