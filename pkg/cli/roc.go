package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hepworks/tcount/pkg/analysis"
	"github.com/hepworks/tcount/pkg/data"
)

var (
	rocInputFlag = &cli.StringFlag{
		Name:     "input",
		Aliases:  []string{"i"},
		Usage:    "Histogram store with efficiency-vs-cut curves",
		Required: true,
	}

	rocOutputFlag = &cli.StringFlag{
		Name:     "output",
		Aliases:  []string{"o"},
		Usage:    "ROC store file to create",
		Required: true,
	}

	signalFlag = &cli.StringFlag{
		Name:     "signal",
		Usage:    "Signal category name",
		Required: true,
	}

	backgroundFlag = &cli.StringSliceFlag{
		Name:     "background",
		Usage:    "Background category name (can be specified multiple times)",
		Required: true,
	}

	discriminantFlag = &cli.StringSliceFlag{
		Name:     "discriminant",
		Aliases:  []string{"d"},
		Usage:    "Discriminant name with a stored efficiency curve (can be specified multiple times)",
		Required: true,
	}

	rocCmd = &cli.Command{
		Name:      "roc",
		Usage:     "Pair signal and background efficiency curves into ROC curves",
		UsageText: `tcount roc -i hists.db -o rocs.db --signal b --background light --background pu -d tche -d tchp`,
		Action:    cmdROC,
		Flags: []cli.Flag{
			rocInputFlag,
			rocOutputFlag,
			signalFlag,
			backgroundFlag,
			discriminantFlag,
		},
	}
)

// ROCResult is the roc command output.
type ROCResult struct {
	Input    string   `json:"input"`
	Output   string   `json:"output"`
	Signal   string   `json:"signal"`
	Curves   []string `json:"curves"`
	Duration string   `json:"duration"`
}

func cmdROC(c *cli.Context) error {
	start := time.Now()
	input := c.String(rocInputFlag.Name)
	output := c.String(rocOutputFlag.Name)
	signal := c.String(signalFlag.Name)
	backgrounds := c.StringSlice(backgroundFlag.Name)
	discriminants := c.StringSlice(discriminantFlag.Name)

	inDB, err := data.OpenExisting(input)
	if err != nil {
		return err
	}
	defer inDB.Close()
	in := data.NewHistStore(inDB)

	if err := data.Init(output, data.SchemaHist); err != nil {
		return err
	}
	outDB, err := data.Open(output)
	if err != nil {
		return err
	}
	defer outDB.Close()
	out := data.NewHistStore(outDB)

	res := &ROCResult{Input: input, Output: output, Signal: signal}
	for _, bkg := range backgrounds {
		category := signal + "_vs_" + bkg
		for _, d := range discriminants {
			graph := d + "_graph"

			sx, sy, err := in.LoadGraph(signal, graph)
			if err != nil {
				return err
			}
			bx, by, err := in.LoadGraph(bkg, graph)
			if err != nil {
				return err
			}

			roc, err := analysis.ROCFromCurves(&analysis.Graph{X: sx, Y: sy}, &analysis.Graph{X: bx, Y: by})
			if err != nil {
				return fmt.Errorf("%s %s: %w", category, d, err)
			}

			if err := out.SaveGraph(category, d, roc.X, roc.Y); err != nil {
				return err
			}
			slog.Info("roc curve written", "category", category, "discriminant", d, "points", roc.Len())
			res.Curves = append(res.Curves, category+"/"+d)
		}
	}

	res.Duration = fmt.Sprintf("%v", time.Since(start))
	return encode(res)
}
