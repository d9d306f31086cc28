package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hepworks/tcount/pkg/analysis"
	"github.com/hepworks/tcount/pkg/config"
	"github.com/hepworks/tcount/pkg/data"
)

var (
	histInputFlag = &cli.StringSliceFlag{
		Name:     "input",
		Aliases:  []string{"i"},
		Usage:    "Discriminant store file (can be specified multiple times, read as one chain)",
		Required: true,
	}

	histOutputFlag = &cli.StringFlag{
		Name:     "output",
		Aliases:  []string{"o"},
		Usage:    "Histogram store file to create",
		Required: true,
	}

	analysisConfigFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "YAML analysis config (histogram and category descriptors)",
		Required: true,
	}

	histCmd = &cli.Command{
		Name:      "hist",
		Aliases:   []string{"h"},
		Usage:     "Fill per-category histograms and derive efficiency-vs-cut curves",
		UsageText: `tcount hist -i jets.db -o hists.db --config analysis.yaml`,
		Action:    cmdHist,
		Flags: []cli.Flag{
			histInputFlag,
			histOutputFlag,
			analysisConfigFlag,
		},
	}
)

// HistResult is the hist command output.
type HistResult struct {
	Inputs     []string         `json:"inputs"`
	Output     string           `json:"output"`
	Totals     map[string]int64 `json:"totals"`
	Histograms int              `json:"histograms"`
	Curves     int              `json:"curves"`
	Duration   string           `json:"duration"`
}

func cmdHist(c *cli.Context) error {
	start := time.Now()
	inputs := c.StringSlice(histInputFlag.Name)
	output := c.String(histOutputFlag.Name)

	cfg, err := config.ReadAnalysis(c.String(analysisConfigFlag.Name))
	if err != nil {
		return err
	}

	builder, err := analysis.NewHistBuilder(cfg.Categories, cfg.Histograms)
	if err != nil {
		return err
	}

	chain, err := data.OpenDiscrChain(inputs...)
	if err != nil {
		return err
	}
	defer chain.Close()

	// 1. fill
	if err := builder.Run(chain); err != nil {
		return err
	}

	// 2. persist histograms, totals, and flagged efficiency curves
	if err := data.Init(output, data.SchemaHist); err != nil {
		return err
	}
	db, err := data.Open(output)
	if err != nil {
		return err
	}
	defer db.Close()
	store := data.NewHistStore(db)

	res := &HistResult{Inputs: inputs, Output: output, Totals: make(map[string]int64)}
	for _, cat := range builder.Categories() {
		total := builder.Total(cat)
		res.Totals[cat] = total
		slog.Info("category filled", "category", cat, "total", total)
		if err := store.SaveCategory(cat, total); err != nil {
			return err
		}

		for _, h := range cfg.Histograms {
			hist := builder.Histogram(cat, h.Name)
			if err := store.SaveHistogram(cat, h.Name, hist.Title, hist.Bins, hist.Min, hist.Max, hist.Contents()); err != nil {
				return err
			}
			res.Histograms++
		}

		for name, g := range builder.Curves(cat) {
			if err := store.SaveGraph(cat, name+"_graph", g.X, g.Y); err != nil {
				return err
			}
			res.Curves++
		}
	}

	res.Duration = fmt.Sprintf("%v", time.Since(start))
	return encode(res)
}
