package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
	"github.com/Sumatoshi-tech/canopy/pkg/hansen"
)

// FetchCommand holds the flags for the fetch command.
type FetchCommand struct {
	aoiPath      string
	bbox         string
	tileIDs      []string
	tileDir      string
	urlTemplate  string
	download     bool
	manifestPath string
	jsonOutput   bool
}

// NewFetchCommand creates and configures the fetch command.
func NewFetchCommand() *cobra.Command {
	cmd := &FetchCommand{}

	cobraCmd := &cobra.Command{
		Use:   "fetch (--aoi <aoi.geojson> | --bbox <extent> | --tile <id> ...)",
		Short: "Check tile layers on disk and optionally download the missing ones",
		Long: `Fetch resolves an extent to Hansen tiles, checks which layer rasters are
already on disk under the tile directory, and downloads the rest when
--download is set and a URL template is configured. The resulting
acquisition state can be written as a tiles manifest.`,
		SilenceUsage: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return cmd.Run(cobraCmd.Context(), cobraCmd.OutOrStdout())
		},
	}

	flags := cobraCmd.Flags()
	flags.StringVar(&cmd.aoiPath, "aoi", "", "GeoJSON file whose extent selects tiles")
	flags.StringVar(&cmd.bbox, "bbox", "", "bounding box minLon,minLat,maxLon,maxLat in degrees")
	flags.StringArrayVar(&cmd.tileIDs, "tile", nil, "explicit tile ID, repeatable")
	flags.StringVar(&cmd.tileDir, "tiles", "tiles", "directory holding <tile_id>/<layer>.tif rasters")
	flags.StringVar(&cmd.urlTemplate, "url-template", "", "download URL with {tile_id} and {layer} placeholders")
	flags.BoolVar(&cmd.download, "download", false, "download layers that are missing locally")
	flags.StringVar(&cmd.manifestPath, "manifest", "", "write a tiles manifest to this path")
	flags.BoolVar(&cmd.jsonOutput, "json", false, "print acquisition state as JSON")

	return cobraCmd
}

// Run executes the fetch command.
func (c *FetchCommand) Run(ctx context.Context, out io.Writer) error {
	tileIDs, err := c.resolveTiles()
	if err != nil {
		return err
	}

	acquirer := &hansen.Acquirer{
		TileDir:     c.tileDir,
		URLTemplate: c.urlTemplate,
		Download:    c.download,
	}

	entries := make([]hansen.LayerEntry, 0, len(tileIDs)*len(hansen.DefaultLayers))

	for _, tileID := range tileIDs {
		tileEntries, ensureErr := acquirer.EnsureLayers(ctx, tileID, hansen.DefaultLayers)
		if ensureErr != nil {
			return ensureErr
		}

		entries = append(entries, tileEntries...)
	}

	if c.manifestPath != "" {
		manifest := hansen.Manifest{
			DatasetVersion: hansen.DatasetVersionDefault,
			TileSource:     c.tileSource(),
			TileIDs:        tileIDs,
			Entries:        entries,
		}

		if writeErr := hansen.WriteTilesManifest(c.manifestPath, manifest); writeErr != nil {
			return writeErr
		}
	}

	if c.jsonOutput {
		return c.printJSON(out, tileIDs, entries)
	}

	c.printTable(out, entries)

	return nil
}

func (c *FetchCommand) tileSource() string {
	if c.urlTemplate != "" {
		return "remote"
	}

	return "local"
}

func (c *FetchCommand) resolveTiles() ([]string, error) {
	if len(c.tileIDs) > 0 {
		return c.tileIDs, nil
	}

	var (
		bbox geo.BBox
		err  error
	)

	switch {
	case c.aoiPath != "":
		bbox, err = geo.LoadAOIBBox(c.aoiPath)
	case c.bbox != "":
		bbox, err = parseBBox(c.bbox)
	default:
		return nil, ErrNoExtent
	}

	if err != nil {
		return nil, err
	}

	return hansen.TileIDsForBBox(bbox), nil
}

func (c *FetchCommand) printJSON(out io.Writer, tileIDs []string, entries []hansen.LayerEntry) error {
	type entryPayload struct {
		TileID    string `json:"tile_id"`
		Layer     string `json:"layer"`
		LocalPath string `json:"local_path"`
		SHA256    string `json:"sha256,omitempty"`
		SizeBytes int64  `json:"size_bytes"`
		Status    string `json:"status"`
	}

	payload := struct {
		TileIDs []string       `json:"tile_ids"`
		Entries []entryPayload `json:"entries"`
	}{TileIDs: tileIDs}

	for _, e := range entries {
		payload.Entries = append(payload.Entries, entryPayload{
			TileID:    e.TileID,
			Layer:     e.Layer,
			LocalPath: e.LocalPath,
			SHA256:    e.SHA256,
			SizeBytes: e.SizeBytes,
			Status:    e.Status,
		})
	}

	encoder := newIndentEncoder(out)

	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("encode acquisition state: %w", err)
	}

	return nil
}

func (c *FetchCommand) printTable(out io.Writer, entries []hansen.LayerEntry) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Tile", "Layer", "Status", "Size", "Path"})

	var totalBytes uint64

	for _, e := range entries {
		size := ""
		if e.SizeBytes > 0 {
			size = humanize.Bytes(uint64(e.SizeBytes))
			totalBytes += uint64(e.SizeBytes)
		}

		tw.AppendRow(table.Row{e.TileID, e.Layer, e.Status, size, filepath.ToSlash(e.LocalPath)})
	}

	tw.AppendFooter(table.Row{"", "", "", humanize.Bytes(totalBytes), ""})
	tw.Render()
}
