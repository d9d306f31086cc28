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
	buildInputFlag = &cli.StringSliceFlag{
		Name:     "input",
		Aliases:  []string{"i"},
		Usage:    "Event store file (can be specified multiple times, read as one chain)",
		Required: true,
	}

	buildOutputFlag = &cli.StringFlag{
		Name:     "output",
		Aliases:  []string{"o"},
		Usage:    "Discriminant store file to create",
		Required: true,
	}

	trackCutFlag = &cli.StringFlag{
		Name:  "cut",
		Usage: "Track selection cut expression, e.g. \"Track_pt > 1 && abs(Track_dz) < 0.3\"",
	}

	selectionConfigFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML selection config (track cut and/or classifier descriptor)",
	}

	buildCmd = &cli.Command{
		Name:    "build",
		Aliases: []string{"b"},
		Usage:   "Build the per-jet discriminant dataset from event stores",
		UsageText: `tcount build -i events.db -o jets.db --cut "Track_pt > 1"
   tcount build -i run1.db -i run2.db -o jets.db --config selection.yaml`,
		Action: cmdBuild,
		Flags: []cli.Flag{
			buildInputFlag,
			buildOutputFlag,
			trackCutFlag,
			selectionConfigFlag,
		},
	}
)

// BuildResult is the build command output: the efficiency report plus run
// metadata.
type BuildResult struct {
	Inputs   []string         `json:"inputs"`
	Output   string           `json:"output"`
	Report   *analysis.Report `json:"report"`
	Duration string           `json:"duration"`
}

func cmdBuild(c *cli.Context) error {
	start := time.Now()
	inputs := c.StringSlice(buildInputFlag.Name)
	output := c.String(buildOutputFlag.Name)

	// 1. resolve the selection configuration
	sel := &config.Selection{TrackCut: c.String(trackCutFlag.Name)}
	if path := c.String(selectionConfigFlag.Name); path != "" {
		cfg, err := config.ReadSelection(path)
		if err != nil {
			return err
		}
		if sel.TrackCut == "" {
			sel.TrackCut = cfg.TrackCut
		}
		sel.Classifier = cfg.Classifier
	}

	// 2. compile selectors; a missing model file fails here, before any
	// event is read
	var cutSel *analysis.CutSelector
	if sel.TrackCut != "" {
		var err error
		cutSel, err = analysis.NewCutSelector(sel.TrackCut)
		if err != nil {
			return err
		}
		slog.Info("using rectangular track cut", "cut", sel.TrackCut)
	}
	var mvaSel *analysis.MVASelector
	if sel.Classifier != nil {
		var err error
		mvaSel, err = analysis.NewMVASelector(sel.Classifier)
		if err != nil {
			return err
		}
		slog.Info("using classifier track selector",
			"name", sel.Classifier.Name, "cuts", sel.Classifier.Cuts)
	}
	selector := analysis.NewTrackSelector(cutSel, mvaSel)

	// 3. open input chain and output store
	chain, err := data.OpenChain(inputs...)
	if err != nil {
		return err
	}
	defer chain.Close()

	if err := data.Init(output, data.SchemaDiscr); err != nil {
		return err
	}
	db, err := data.Open(output)
	if err != nil {
		return err
	}
	defer db.Close()

	w, err := data.NewDiscrWriter(db)
	if err != nil {
		return err
	}
	defer w.Close()

	// 4. run the pass
	report, err := analysis.NewAggregator(chain, selector, w).Run()
	if err != nil {
		return err
	}
	if err := w.Commit(); err != nil {
		return err
	}

	res := &BuildResult{
		Inputs:   inputs,
		Output:   output,
		Report:   report,
		Duration: fmt.Sprintf("%v", time.Since(start)),
	}
	return encode(res)
}
