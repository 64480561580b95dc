package cli

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	lodio "github.com/matzehuels/geolod/pkg/io"
	"github.com/matzehuels/geolod/pkg/lod"
	"github.com/matzehuels/geolod/pkg/pipeline"
	"github.com/matzehuels/geolod/pkg/store"
)

// verifyZooms are the zoom levels queried after an import, one per level.
var verifyZooms = []int{5, 8, 12}

// importCommand creates the import command for loading levels into MongoDB.
func (c *CLI) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <level.geojson>...",
		Short: "Replace the MongoDB boundary collection with generated levels",
		Long: `Load generated level files into MongoDB.

Each file may hold one level or several (as written by --combined); features
are grouped by their admin_level property. The collection is replaced as a
whole: documents of earlier imports are removed once every level is written.`,
		Example: `  geolod import kecamatan.geojson kabupaten.geojson provinsi.geojson
  MONGODB_URI=mongodb://localhost:27017 geolod import indonesia.geojson`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			layers, err := lodio.ImportLevels(args...)
			if err != nil {
				return err
			}
			return c.storeLayers(cmd.Context(), cfg, layers)
		},
	}
}

// storeLayers replaces the boundary collection with layers, tagging each
// with its configured tolerance, and prints what was stored.
func (c *CLI) storeLayers(ctx context.Context, cfg *pipeline.Config, layers []*lod.Layer) error {
	logger := loggerFromContext(ctx)

	spinner := newSpinnerWithContext(ctx, "Connecting to MongoDB")
	spinner.Start()
	s, err := c.openStore(ctx, cfg)
	if err != nil {
		spinner.Stop()
		return err
	}
	defer s.Close(context.Background())

	spinner.SetMessage("Creating indexes")
	if _, err := s.EnsureIndexes(ctx); err != nil {
		spinner.Stop()
		return err
	}

	levels := make([]store.Level, 0, len(layers))
	for _, l := range layers {
		levels = append(levels, store.Level{Layer: l, Tolerance: cfg.Levels.For(l.Level).Tolerance})
	}
	spinner.SetMessage("Writing boundaries to " + s.Collection())
	sum, err := s.Replace(ctx, levels)
	spinner.Stop()
	if err != nil {
		return err
	}

	printSuccess("Stored %d boundaries in %s", sum.Inserted(), s.Collection())
	printKeyValue("Import ID", sum.ImportID.String())
	printKeyValue("Replaced", strconv.FormatInt(sum.Deleted, 10)+" documents")
	printKeyValue("Duration", sum.Duration.Round(time.Millisecond).String())
	rows := make([][]string, 0, len(sum.Levels))
	for _, ls := range sum.Levels {
		rows = append(rows, []string{string(ls.Level), strconv.Itoa(ls.Inserted), strconv.Itoa(len(ls.Failures))})
		for _, f := range ls.Failures {
			logger.Debug("boundary rejected by store", "level", f.Level, "feature", f.Subject, "err", f.Err)
		}
	}
	printTable([]string{"Level", "Inserted", "Errors"}, rows)
	if n := sum.Failed(); n > 0 {
		printWarning("%d boundaries were rejected by the server (run with -v for details)", n)
	}

	for _, z := range verifyZooms {
		n, err := s.CountByZoom(ctx, z, store.Filter{})
		if err != nil {
			return err
		}
		logger.Info("verified zoom query", "zoom", z, "boundaries", n)
	}
	return nil
}
