package analysis

import (
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/hepworks/tcount/pkg/config"
)

// Histogram is a fixed-bin-count, fixed-range 1-D histogram. Values
// outside [Min, Max) are dropped on fill; there is no under/overflow
// accumulation.
type Histogram struct {
	Name     string
	Title    string
	Bins     int
	Min, Max float64
	contents []float64
}

// NewHistogram builds an empty histogram. Bins must be >= 2.
func NewHistogram(name, title string, bins int, min, max float64) *Histogram {
	return &Histogram{
		Name:     name,
		Title:    title,
		Bins:     bins,
		Min:      min,
		Max:      max,
		contents: make([]float64, bins),
	}
}

// Fill adds one entry. Out-of-range values are silently dropped.
func (h *Histogram) Fill(v float64) {
	if v < h.Min || v >= h.Max {
		return
	}
	bin := int((v - h.Min) / h.binWidth())
	if bin >= h.Bins {
		bin = h.Bins - 1
	}
	h.contents[bin]++
}

func (h *Histogram) binWidth() float64 {
	return (h.Max - h.Min) / float64(h.Bins)
}

// BinLowEdge returns the lower edge of bin i (0-based).
func (h *Histogram) BinLowEdge(i int) float64 {
	return h.Min + float64(i)*h.binWidth()
}

// BinContent returns the content of bin i (0-based).
func (h *Histogram) BinContent(i int) float64 {
	return h.contents[i]
}

// Integral is the sum over all bins.
func (h *Histogram) Integral() float64 {
	var s float64
	for _, c := range h.contents {
		s += c
	}
	return s
}

// Contents returns the bin contents, one value per bin.
func (h *Histogram) Contents() []float64 {
	return h.contents
}

// Graph is an ordered 2-D point sequence.
type Graph struct {
	X []float64
	Y []float64
}

// Len is the point count.
func (g *Graph) Len() int {
	return len(g.X)
}

// EffVsCutCurve derives the efficiency-vs-cut curve from a histogram: for
// each cut value (bin lower edge) the fraction of entries at or above it,
// a right-tail survival sum. The curve deliberately stops one bin short of
// the histogram, so it always has Bins-1 points; downstream ROC pairing
// relies on that exact length.
//
// Efficiencies are normalized by the histogram's own integral, or by total
// when non-zero. A total smaller than the integral is suspicious but
// trusted: it is logged and used anyway.
func EffVsCutCurve(h *Histogram, total float64) *Graph {
	n := h.Bins - 1
	xs := make([]float64, n)
	ys := make([]float64, n)

	integral := h.Integral()
	run := integral
	xs[0] = h.BinLowEdge(0)
	ys[0] = run
	for k := 1; k < n; k++ {
		xs[k] = h.BinLowEdge(k)
		run -= h.BinContent(k - 1)
		ys[k] = run
	}

	norm := integral
	if total != 0 {
		if total < integral {
			slog.Warn("efficiency curve total is smaller than the histogram integral",
				"histogram", h.Name, "total", total, "integral", integral)
		}
		norm = total
	}
	for k := range ys {
		ys[k] /= norm
	}
	return &Graph{X: xs, Y: ys}
}

// RowSource streams named-field environments, one per input row.
// Implemented by data.DiscrChain.
type RowSource interface {
	ForEach(fn func(env map[string]any) error) error
}

// CategoryCut is a compiled jet category predicate.
type CategoryCut struct {
	Name string
	src  string
	prog *vm.Program
}

// NewCategoryCut compiles a category predicate, e.g.
// "abs(Jet_flavour) == 5 && Jet_genpt >= 8".
func NewCategoryCut(name, src string) (*CategoryCut, error) {
	prog, err := expr.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("failed to compile category cut %q: %w", src, err)
	}
	return &CategoryCut{Name: name, src: src, prog: prog}, nil
}

// Accept evaluates the predicate against one row environment.
func (c *CategoryCut) Accept(env map[string]any) (bool, error) {
	out, err := expr.Run(c.prog, env)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate category cut %q: %w", c.src, err)
	}
	return truthy(c.src, out)
}

// HistBuilder fills one histogram per (category, variable descriptor) and
// keeps per-category entry totals.
type HistBuilder struct {
	cats   []*CategoryCut
	descs  []config.Histogram
	progs  []*vm.Program
	hists  map[string]map[string]*Histogram
	totals map[string]int64
}

// NewHistBuilder compiles the category cuts and variable expressions and
// allocates the histogram grid.
func NewHistBuilder(cats []config.CategoryCut, descs []config.Histogram) (*HistBuilder, error) {
	b := &HistBuilder{
		descs:  descs,
		hists:  make(map[string]map[string]*Histogram),
		totals: make(map[string]int64),
	}

	for _, c := range cats {
		cut, err := NewCategoryCut(c.Name, c.Cut)
		if err != nil {
			return nil, err
		}
		b.cats = append(b.cats, cut)
		b.hists[c.Name] = make(map[string]*Histogram)
		for _, d := range descs {
			b.hists[c.Name][d.Name] = NewHistogram(d.Name, d.Title, d.Bins, d.Min, d.Max)
		}
	}

	for _, d := range descs {
		prog, err := expr.Compile(d.Var)
		if err != nil {
			return nil, fmt.Errorf("failed to compile histogram variable %q: %w", d.Var, err)
		}
		b.progs = append(b.progs, prog)
	}
	return b, nil
}

// Fill processes one input row: every matching category gets its total
// bumped and its histograms filled with the in-range variable values.
func (b *HistBuilder) Fill(env map[string]any) error {
	for _, cat := range b.cats {
		ok, err := cat.Accept(env)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		b.totals[cat.Name]++

		for i, d := range b.descs {
			out, err := expr.Run(b.progs[i], env)
			if err != nil {
				return fmt.Errorf("failed to evaluate histogram variable %q: %w", d.Var, err)
			}
			v, err := numeric(d.Var, out)
			if err != nil {
				return err
			}
			b.hists[cat.Name][d.Name].Fill(v)
		}
	}
	return nil
}

// Run streams every row of src through Fill.
func (b *HistBuilder) Run(src RowSource) error {
	return src.ForEach(b.Fill)
}

// Categories returns the category names in configuration order.
func (b *HistBuilder) Categories() []string {
	names := make([]string, 0, len(b.cats))
	for _, c := range b.cats {
		names = append(names, c.Name)
	}
	return names
}

// Total returns the entry count for a category.
func (b *HistBuilder) Total(category string) int64 {
	return b.totals[category]
}

// Histogram returns the filled histogram for a (category, name) pair.
func (b *HistBuilder) Histogram(category, name string) *Histogram {
	return b.hists[category][name]
}

// Curves derives the efficiency-vs-cut curve for every descriptor flagged
// discreff, per category, normalized by the category total.
func (b *HistBuilder) Curves(category string) map[string]*Graph {
	curves := make(map[string]*Graph)
	for _, d := range b.descs {
		if !d.DiscrEff {
			continue
		}
		h := b.hists[category][d.Name]
		curves[d.Name] = EffVsCutCurve(h, float64(b.totals[category]))
	}
	return curves
}
