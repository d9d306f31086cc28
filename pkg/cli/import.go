package cli

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hepworks/tcount/pkg/data"
)

var (
	importFileFlag = &cli.StringSliceFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "JSON Lines event file, optionally gzip-compressed (can be specified multiple times)",
		Required: true,
	}

	importOutputFlag = &cli.StringFlag{
		Name:     "output",
		Aliases:  []string{"o"},
		Usage:    "Event store file to create or append to",
		Required: true,
	}

	importCmd = &cli.Command{
		Name:      "import",
		Aliases:   []string{"i"},
		Usage:     "Import raw event records into an event store",
		UsageText: `tcount import -f run1.jsonl -f run2.jsonl.gz -o events.db`,
		Action:    cmdImport,
		Flags: []cli.Flag{
			importFileFlag,
			importOutputFlag,
		},
	}
)

// ImportResult is the import command output.
type ImportResult struct {
	Output   string                `json:"output"`
	Files    []*data.ImportSummary `json:"files"`
	Events   int64                 `json:"events"`
	Duration string                `json:"duration"`
}

func cmdImport(c *cli.Context) error {
	start := time.Now()
	files := c.StringSlice(importFileFlag.Name)
	output := c.String(importOutputFlag.Name)

	if err := data.Init(output, data.SchemaEvents); err != nil {
		return err
	}
	db, err := data.Open(output)
	if err != nil {
		return err
	}
	defer db.Close()

	res := &ImportResult{Output: output}
	for _, f := range files {
		sum, err := data.ImportEvents(db, f)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", f, err)
		}
		res.Files = append(res.Files, sum)
		res.Events += sum.Events
	}

	res.Duration = fmt.Sprintf("%v", time.Since(start))
	return encode(res)
}
