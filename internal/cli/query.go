package cli

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/matzehuels/geolod/pkg/errors"
	lodio "github.com/matzehuels/geolod/pkg/io"
	"github.com/matzehuels/geolod/pkg/lod"
	"github.com/matzehuels/geolod/pkg/store"
)

// queryOptions holds the query command flags.
type queryOptions struct {
	zoom     int
	bbox     string
	province string
	district string
	geojson  bool
}

// queryCommand creates the query command for reading stored boundaries.
func (c *CLI) queryCommand() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List stored boundaries visible at a zoom level",
		Long: `List the boundaries a map shows at a zoom level.

Without --zoom, print the number of stored boundaries per level.`,
		Example: `  geolod query --zoom 8 --bbox 95.0,2.0,98.5,6.0
  geolod query --zoom 12 --district 1101 --geojson > simeulue.geojson`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := buildFilter(opts)
			if err != nil {
				return err
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := c.openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close(context.Background())

			if !cmd.Flags().Changed("zoom") {
				return printCounts(ctx, s)
			}
			found, err := s.FindByZoom(ctx, opts.zoom, filter)
			if err != nil {
				return err
			}
			if opts.geojson {
				_, err := lodio.WriteLayers(os.Stdout, boundaryLayers(found)...)
				return err
			}
			printBoundaries(opts.zoom, found)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.zoom, "zoom", "z", 0, "map zoom level")
	cmd.Flags().StringVar(&opts.bbox, "bbox", "", "only boundaries intersecting west,south,east,north")
	cmd.Flags().StringVar(&opts.province, "province", "", "only this province code")
	cmd.Flags().StringVar(&opts.district, "district", "", "only this district code")
	cmd.Flags().BoolVar(&opts.geojson, "geojson", false, "write the result as GeoJSON to stdout")

	return cmd
}

func buildFilter(opts queryOptions) (store.Filter, error) {
	f := store.Filter{ProvinceCode: opts.province, DistrictCode: opts.district}
	if opts.zoom < 0 {
		return f, errors.New(errors.ErrCodeInvalidInput, "zoom must be non-negative, got %d", opts.zoom)
	}
	if opts.bbox != "" {
		b, err := parseBBox(opts.bbox)
		if err != nil {
			return f, err
		}
		f.Bound = &b
	}
	return f, nil
}

// parseBBox parses "west,south,east,north" in degrees.
func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, errors.New(errors.ErrCodeInvalidInput, "bbox %q: want west,south,east,north", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "bbox %q", s)
		}
		v[i] = f
	}
	b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	switch {
	case b.Min[0] < -180 || b.Max[0] > 180 || b.Min[1] < -90 || b.Max[1] > 90:
		return orb.Bound{}, errors.New(errors.ErrCodeInvalidInput, "bbox %q is outside longitude/latitude range", s)
	case b.Min[0] >= b.Max[0] || b.Min[1] >= b.Max[1]:
		return orb.Bound{}, errors.New(errors.ErrCodeInvalidInput, "bbox %q: west/south must be less than east/north", s)
	}
	return b, nil
}

// boundaryLayers groups stored boundaries into one layer per level, finest
// first.
func boundaryLayers(found []*store.Boundary) []*lod.Layer {
	byLevel := make(map[lod.AdminLevel]*lod.Layer)
	for _, b := range found {
		f := b.Feature()
		l := byLevel[f.Level]
		if l == nil {
			l = &lod.Layer{Level: f.Level, Zoom: f.Zoom, CRS: lod.GeographicCRS}
			byLevel[f.Level] = l
		}
		l.Features = append(l.Features, f)
	}
	var layers []*lod.Layer
	for _, level := range lod.Levels {
		if l := byLevel[level]; l != nil {
			layers = append(layers, l)
		}
	}
	return layers
}

func printBoundaries(zoom int, found []*store.Boundary) {
	if len(found) == 0 {
		printInfo("No boundaries at zoom %d", zoom)
		return
	}
	printSuccess("%d boundaries at zoom %d", len(found), zoom)
	rows := make([][]string, 0, len(found))
	for _, b := range found {
		rows = append(rows, []string{
			string(b.AdminLevel),
			b.FeatureID,
			b.NamaProvinsi,
			b.NamaKabupaten,
			b.NamaKecamatan,
		})
	}
	printTable([]string{"Level", "ID", "Provinsi", "Kabupaten", "Kecamatan"}, rows)
}

func printCounts(ctx context.Context, s *store.Store) error {
	counts, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		printInfo("%s is empty", s.Collection())
		return nil
	}
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{string(c.Level), strconv.Itoa(c.Count)})
	}
	printTable([]string{"Level", "Boundaries"}, rows)
	return nil
}
