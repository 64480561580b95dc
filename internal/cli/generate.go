package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	lodio "github.com/matzehuels/geolod/pkg/io"
	"github.com/matzehuels/geolod/pkg/lod"
	"github.com/matzehuels/geolod/pkg/pipeline"
)

// generateOptions holds the generate command flags.
type generateOptions struct {
	outputDir string
	combined  string
	workers   int
	noCache   bool
	refresh   bool
	toStore   bool
}

// generateCommand creates the generate command for building the pyramid.
func (c *CLI) generateCommand() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate <kecamatan.geojson>",
		Short: "Build the kabupaten and provinsi levels from a kecamatan layer",
		Long: `Build the boundary pyramid from a kecamatan GeoJSON file.

Kecamatan are merged into kabupaten and kabupaten into provinsi. Each level is
simplified for its zoom range and written to the output directory. Levels are
cached by input content and level policy, so re-running with an unchanged
configuration only rebuilds what changed.`,
		Example: `  # Build with the default policy
  geolod generate kecamatan_bnpb.geojson

  # Write all levels to one extra file and load them into MongoDB
  geolod generate kecamatan_bnpb.geojson --combined indonesia.geojson --store`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			applyGenerateFlags(cmd, cfg, opts)
			return c.runGenerate(cmd.Context(), args[0], cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "output directory (overrides [output] dir)")
	cmd.Flags().StringVar(&opts.combined, "combined", "", "also write every level to this file in the output directory")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "parallel group merges (default: one per CPU)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the level cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "rebuild every level and refresh the cache")
	cmd.Flags().BoolVar(&opts.toStore, "store", false, "replace the MongoDB boundary collection with the result")

	return cmd
}

// applyGenerateFlags overrides config values with flags the user set.
func applyGenerateFlags(cmd *cobra.Command, cfg *pipeline.Config, opts generateOptions) {
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.Output.Dir = opts.outputDir
	}
	if flags.Changed("combined") {
		cfg.Output.Combined = opts.combined
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
}

// runGenerate builds the pyramid and prints a summary.
func (c *CLI) runGenerate(ctx context.Context, input string, cfg *pipeline.Config, opts generateOptions) error {
	runner, err := c.newRunner(ctx, cfg, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Reading "+input)
	spinner.Start()

	prog := newProgress(loggerFromContext(ctx))
	res, err := runner.Execute(ctx, pipeline.Options{
		Input:    input,
		Config:   cfg,
		Refresh:  opts.refresh,
		Logger:   loggerFromContext(ctx),
		Reporter: spinnerReporter{spinner: spinner},
	})
	spinner.Stop()
	if err != nil {
		return err
	}
	prog.done("Built pyramid")

	printResult(res)

	if opts.toStore {
		if err := c.storeLayers(ctx, cfg, res.Pyramid.Layers()); err != nil {
			return err
		}
	} else if len(res.Outputs) > 0 {
		printNewline()
		printNextStep("Load into MongoDB", importCommandLine(res.Outputs))
	}
	return nil
}

// importCommandLine returns the import command for the level files that were
// written, finest level first.
func importCommandLine(outputs map[lod.AdminLevel]*lodio.ExportResult) string {
	args := []string{"geolod", "import"}
	for _, level := range lod.Levels {
		if out := outputs[level]; out != nil {
			args = append(args, out.Path)
		}
	}
	return strings.Join(args, " ")
}

// printResult prints the per-level summary of a run.
func printResult(res *pipeline.Result) {
	printNewline()
	printSuccess("Read %d kecamatan (%s, %d points)",
		res.Stats.InputFeatures, humanize.Bytes(uint64(res.Stats.InputBytes)), res.Stats.InputPoints)
	if n := len(res.Import.Rejected); n > 0 {
		printWarning("%d input features rejected (run with -v for details)", n)
	}

	for _, s := range res.Pyramid.Stages {
		switch s.Status {
		case lod.StatusComplete:
			printSuccess("%s", s.Level)
		case lod.StatusPartial:
			printWarning("%s: %d failures", s.Level, len(s.Failures))
		default:
			printError("%s: %s", s.Level, s.Status)
		}
		if s.Usable() {
			points := 0
			if out := res.Outputs[s.Level]; out != nil {
				points = out.Points
			}
			printStats(s.Layer.Len(), points, res.CacheInfo.LevelHits[s.Level])
		}
		for code, n := range s.FailuresByCode() {
			printDetail("%s × %d", code, n)
		}
	}

	if len(res.Outputs) > 0 {
		printNewline()
		printTable(levelHeaders, levelRows(res))
		for _, l := range lod.Levels {
			if out := res.Outputs[l]; out != nil {
				printFile(out.Path)
			}
		}
		if res.Combined != nil {
			printFile(res.Combined.Path)
		}
	}

	if prov := res.Pyramid.Stage(lod.Provinsi); prov != nil && prov.Usable() {
		printNewline()
		printTable([]string{"Provinsi", "Parts"}, partRows(pipeline.PartCounts(prov.Layer)))
	}
}

var levelHeaders = []string{"Level", "Zoom", "Features", "Size", "Points", "Points/feature", "Reduction"}

// levelRows lists size and point reduction of every written level against
// the input layer.
func levelRows(res *pipeline.Result) [][]string {
	var rows [][]string
	for _, s := range res.Pyramid.Stages {
		out := res.Outputs[s.Level]
		if out == nil {
			continue
		}
		perFeature := "-"
		if out.Features > 0 {
			perFeature = strconv.FormatFloat(float64(out.Points)/float64(out.Features), 'f', 1, 64)
		}
		rows = append(rows, []string{
			string(s.Level),
			s.Layer.Zoom.String(),
			strconv.Itoa(out.Features),
			humanize.Bytes(uint64(out.Size)),
			humanize.Comma(int64(out.Points)),
			perFeature,
			reduction(out.Points, res.Stats.InputPoints),
		})
	}
	return rows
}

func partRows(parts []pipeline.PartCount) [][]string {
	rows := make([][]string, 0, len(parts))
	for _, p := range parts {
		rows = append(rows, []string{p.Name, strconv.Itoa(p.Parts)})
	}
	return rows
}

// reduction formats the share of input points removed.
func reduction(points, input int) string {
	if input == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", 100*(1-float64(points)/float64(input)))
}
