package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
	"github.com/Sumatoshi-tech/canopy/pkg/hansen"
)

// Sentinel errors for tiles command input.
var (
	ErrNoExtent  = errors.New("either --aoi or --bbox is required")
	ErrBadBBox   = errors.New("--bbox needs four comma-separated numbers: minLon,minLat,maxLon,maxLat")
	ErrEmptyBBox = errors.New("bounding box must satisfy min < max on both axes")
)

// TilesCommand holds the flags for the tiles command.
type TilesCommand struct {
	aoiPath     string
	bbox        string
	urlTemplate string
	jsonOutput  bool
}

// NewTilesCommand creates and configures the tiles command.
func NewTilesCommand() *cobra.Command {
	cmd := &TilesCommand{}

	cobraCmd := &cobra.Command{
		Use:          "tiles (--aoi <aoi.geojson> | --bbox minLon,minLat,maxLon,maxLat)",
		Short:        "List the Hansen 10x10 degree tiles an extent needs",
		SilenceUsage: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return cmd.Run(cobraCmd.OutOrStdout())
		},
	}

	flags := cobraCmd.Flags()
	flags.StringVar(&cmd.aoiPath, "aoi", "", "GeoJSON file whose extent selects tiles")
	flags.StringVar(&cmd.bbox, "bbox", "", "bounding box minLon,minLat,maxLon,maxLat in degrees")
	flags.StringVar(&cmd.urlTemplate, "url-template", "", "expand tile URLs with {tile_id} and {layer}")
	flags.BoolVar(&cmd.jsonOutput, "json", false, "print tile IDs as JSON")

	return cobraCmd
}

// Run executes the tiles command.
func (c *TilesCommand) Run(out io.Writer) error {
	bbox, err := c.resolveExtent()
	if err != nil {
		return err
	}

	tileIDs := hansen.TileIDsForBBox(bbox)

	if c.jsonOutput {
		encoder := newIndentEncoder(out)

		encodeErr := encoder.Encode(map[string]any{"tile_ids": tileIDs})
		if encodeErr != nil {
			return fmt.Errorf("encode tile ids: %w", encodeErr)
		}

		return nil
	}

	for _, tileID := range tileIDs {
		fmt.Fprintln(out, tileID)

		if c.urlTemplate == "" {
			continue
		}

		for _, layer := range hansen.DefaultLayers {
			url := strings.ReplaceAll(c.urlTemplate, "{tile_id}", tileID)
			url = strings.ReplaceAll(url, "{layer}", layer)
			fmt.Fprintf(out, "  %s\n", url)
		}
	}

	return nil
}

func (c *TilesCommand) resolveExtent() (geo.BBox, error) {
	switch {
	case c.aoiPath != "":
		bbox, err := geo.LoadAOIBBox(c.aoiPath)
		if err != nil {
			return geo.BBox{}, err
		}

		return bbox, nil
	case c.bbox != "":
		return parseBBox(c.bbox)
	default:
		return geo.BBox{}, ErrNoExtent
	}
}

func parseBBox(raw string) (geo.BBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return geo.BBox{}, ErrBadBBox
	}

	values := make([]float64, 4)

	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geo.BBox{}, fmt.Errorf("%w: %q", ErrBadBBox, part)
		}

		values[i] = v
	}

	bbox := geo.BBox{MinX: values[0], MinY: values[1], MaxX: values[2], MaxY: values[3]}
	if bbox.MinX >= bbox.MaxX || bbox.MinY >= bbox.MaxY {
		return geo.BBox{}, ErrEmptyBBox
	}

	return bbox, nil
}

// newIndentEncoder builds a two-space indented JSON encoder.
func newIndentEncoder(w io.Writer) *json.Encoder {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder
}
