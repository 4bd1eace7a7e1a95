package commands

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/canopy/pkg/hansen"
)

// ParcelsCommand holds the flags for the parcels command.
type ParcelsCommand struct {
	parcelsPath string
	tileDir     string
	threshold   int
	endYear     int
	workers     int
	allTouched  bool
	landUse     string
	jsonOutput  bool
}

// NewParcelsCommand creates and configures the parcels command.
func NewParcelsCommand() *cobra.Command {
	cmd := &ParcelsCommand{}

	cobraCmd := &cobra.Command{
		Use:   "parcels --parcels <parcels.geojson>",
		Short: "Compute per-parcel Hansen land and forest areas",
		Long: `Parcels rasterizes each cadastral parcel over the Hansen tiles covering
it and reports the parcel's land area (valid pixels) and forest area
(forest at the dataset end year) in hectares.`,
		SilenceUsage: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return cmd.Run(cobraCmd.OutOrStdout())
		},
	}

	flags := cobraCmd.Flags()
	flags.StringVar(&cmd.parcelsPath, "parcels", "", "WGS84 GeoJSON FeatureCollection of parcels")
	flags.StringVar(&cmd.tileDir, "tiles", "tiles", "directory holding <tile_id>/<layer>.tif rasters")
	flags.IntVar(&cmd.threshold, "threshold", 10, "canopy cover percent a pixel needs to count as forest")
	flags.IntVar(&cmd.endYear, "end-year", 0, "forest reference year; 0 infers it from the dataset")
	flags.IntVar(&cmd.workers, "workers", 0, "area summation workers; 0 sums sequentially")
	flags.BoolVar(&cmd.allTouched, "all-touched", false, "count pixels the parcel boundary merely touches")
	flags.StringVar(&cmd.landUse, "land-use", "", "keep only parcels with this land-use designation")
	flags.BoolVar(&cmd.jsonOutput, "json", false, "print parcel stats as JSON")

	_ = cobraCmd.MarkFlagRequired("parcels")

	return cobraCmd
}

// Run executes the parcels command.
func (c *ParcelsCommand) Run(out io.Writer) error {
	parcels, err := hansen.LoadParcels(c.parcelsPath)
	if err != nil {
		return err
	}

	endYear := c.endYear
	if endYear == 0 {
		endYear = hansen.InferLatestYear(hansen.DatasetVersionDefault, c.tileDir)
	}

	opts := hansen.ParcelStatsOptions{
		TileDir:                       c.tileDir,
		CanopyThresholdPercent:        c.threshold,
		EndYear:                       endYear,
		AllTouched:                    c.allTouched,
		IncludeOnlyLandUseDesignation: c.landUse,
	}
	if c.workers > 1 {
		opts.Summer = hansen.ParallelSummer{Workers: c.workers}
	}

	stats, err := hansen.ComputeParcelStats(parcels, opts)
	if err != nil {
		return err
	}

	if c.jsonOutput {
		return c.printJSON(out, stats, endYear)
	}

	c.printTable(out, stats)

	return nil
}

func (c *ParcelsCommand) printJSON(out io.Writer, stats map[string]hansen.ParcelStats, endYear int) error {
	type statPayload struct {
		ParcelID     string  `json:"parcel_id"`
		LandAreaHa   float64 `json:"land_area_ha"`
		ForestAreaHa float64 `json:"forest_area_ha"`
	}

	payload := struct {
		EndYear int           `json:"end_year"`
		Parcels []statPayload `json:"parcels"`
	}{EndYear: endYear}

	for _, id := range hansen.SortedParcelIDs(stats) {
		s := stats[id]
		payload.Parcels = append(payload.Parcels, statPayload{
			ParcelID:     s.ParcelID,
			LandAreaHa:   s.LandAreaHa,
			ForestAreaHa: s.ForestAreaHa,
		})
	}

	encoder := newIndentEncoder(out)

	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("encode parcel stats: %w", err)
	}

	return nil
}

func (c *ParcelsCommand) printTable(out io.Writer, stats map[string]hansen.ParcelStats) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Parcel", "Land (ha)", "Forest (ha)"})

	var landTotal, forestTotal float64

	for _, id := range hansen.SortedParcelIDs(stats) {
		s := stats[id]
		landTotal += s.LandAreaHa
		forestTotal += s.ForestAreaHa

		tw.AppendRow(table.Row{
			s.ParcelID,
			humanize.CommafWithDigits(s.LandAreaHa, 3),
			humanize.CommafWithDigits(s.ForestAreaHa, 3),
		})
	}

	tw.AppendFooter(table.Row{
		"Total",
		humanize.CommafWithDigits(landTotal, 3),
		humanize.CommafWithDigits(forestTotal, 3),
	})
	tw.Render()
}
