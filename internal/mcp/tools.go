package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/canopy/pkg/evidence"
	"github.com/Sumatoshi-tech/canopy/pkg/geo"
	"github.com/Sumatoshi-tech/canopy/pkg/hansen"
)

// Tool name constants.
const (
	ToolNameForestLoss = "canopy_forest_loss"
	ToolNameTiles      = "canopy_tiles"
	ToolNameValidate   = "canopy_validate_artifact"
)

// Tool descriptions shown to MCP clients.
const (
	forestLossToolDescription = "Run a Hansen Global Forest Change analysis over a WGS84 GeoJSON " +
		"area of interest. Returns forest loss, baseline and current tree cover in hectares, " +
		"plus the paths of the evidence artifacts written to the output directory."
	tilesToolDescription = "List the Hansen 10x10 degree tile IDs intersecting a WGS84 bounding " +
		"box or GeoJSON area of interest."
	validateToolDescription = "Validate a canopy evidence artifact (summary, debug, or manifest " +
		"JSON) against its embedded schema."
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyAOIPath indicates the aoi_path parameter is empty.
	ErrEmptyAOIPath = errors.New("aoi_path parameter is required and must not be empty")
	// ErrEmptyTileDir indicates the tile_dir parameter is empty.
	ErrEmptyTileDir = errors.New("tile_dir parameter is required and must not be empty")
	// ErrInvalidBBox indicates the bounding box is malformed.
	ErrInvalidBBox = errors.New("bounding box must satisfy min_lon < max_lon and min_lat < max_lat")
	// ErrMissingExtent indicates neither a bounding box nor an AOI path was given.
	ErrMissingExtent = errors.New("either a bounding box or aoi_path is required")
	// ErrEmptyArtifactPath indicates the path parameter is empty.
	ErrEmptyArtifactPath = errors.New("path parameter is required and must not be empty")
)

// ForestLossInput is the input schema for the canopy_forest_loss tool.
type ForestLossInput struct {
	AOIPath                string `json:"aoi_path"                          jsonschema:"path to a WGS84 GeoJSON area of interest"`
	TileDir                string `json:"tile_dir"                          jsonschema:"directory holding treecover2000 and lossyear tiles"`
	OutputDir              string `json:"output_dir,omitempty"              jsonschema:"directory for evidence artifacts (default: temporary)"`
	CanopyThresholdPercent int    `json:"canopy_threshold_percent,omitempty" jsonschema:"minimum treecover2000 percent for the forest baseline (default 10)"`
	CutoffYear             int    `json:"cutoff_year,omitempty"             jsonschema:"loss after this year counts as recent (default 2020)"`
	WriteMasks             bool   `json:"write_masks,omitempty"             jsonschema:"also write GeoJSON mask artifacts"`
}

// TilesInput is the input schema for the canopy_tiles tool.
type TilesInput struct {
	AOIPath string  `json:"aoi_path,omitempty" jsonschema:"path to a GeoJSON file whose extent selects tiles"`
	MinLon  float64 `json:"min_lon,omitempty"  jsonschema:"west edge of the bounding box in degrees"`
	MinLat  float64 `json:"min_lat,omitempty"  jsonschema:"south edge of the bounding box in degrees"`
	MaxLon  float64 `json:"max_lon,omitempty"  jsonschema:"east edge of the bounding box in degrees"`
	MaxLat  float64 `json:"max_lat,omitempty"  jsonschema:"north edge of the bounding box in degrees"`
}

// ValidateInput is the input schema for the canopy_validate_artifact tool.
type ValidateInput struct {
	Kind string `json:"kind" jsonschema:"artifact kind: summary, debug, or manifest"`
	Path string `json:"path" jsonschema:"path to the artifact JSON file"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// forestLossReport is the structured result of the forest-loss tool.
type forestLossReport struct {
	Metrics     hansen.Metrics       `json:"metrics"`
	Params      hansen.MetricsParams `json:"params"`
	SummaryPath string               `json:"summary_path"`
	DebugPath   string               `json:"debug_path"`
	TilesPath   string               `json:"tiles_path"`
	OutputDir   string               `json:"output_dir"`
}

// handleForestLoss processes canopy_forest_loss tool calls.
func handleForestLoss(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input ForestLossInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.AOIPath == "" {
		return errorResult(ErrEmptyAOIPath)
	}

	if input.TileDir == "" {
		return errorResult(ErrEmptyTileDir)
	}

	outputDir := input.OutputDir
	if outputDir == "" {
		dir, err := os.MkdirTemp("", "canopy-*")
		if err != nil {
			return errorResult(fmt.Errorf("create output dir: %w", err))
		}

		outputDir = dir
	}

	engine := hansen.NewEngine(hansen.Config{
		TileDir:                input.TileDir,
		CanopyThresholdPercent: input.CanopyThresholdPercent,
		CutoffYear:             input.CutoffYear,
		WriteMasks:             input.WriteMasks,
	}, nil, nil)

	result, err := engine.Run(hansen.RunRequest{AOIPath: input.AOIPath, OutputDir: outputDir})
	if err != nil {
		return errorResult(fmt.Errorf("forest loss analysis: %w", err))
	}

	return jsonResult(forestLossReport{
		Metrics:     result.Metrics,
		Params:      result.Params,
		SummaryPath: result.SummaryPath,
		DebugPath:   result.DebugPath,
		TilesPath:   result.TilesManifestPath,
		OutputDir:   outputDir,
	})
}

// handleTiles processes canopy_tiles tool calls.
func handleTiles(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input TilesInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	var bbox geo.BBox

	switch {
	case input.AOIPath != "":
		loaded, err := geo.LoadAOIBBox(input.AOIPath)
		if err != nil {
			return errorResult(fmt.Errorf("load AOI extent: %w", err))
		}

		bbox = loaded
	case input.MinLon != 0 || input.MinLat != 0 || input.MaxLon != 0 || input.MaxLat != 0:
		bbox = geo.BBox{MinX: input.MinLon, MinY: input.MinLat, MaxX: input.MaxLon, MaxY: input.MaxLat}
		if bbox.MinX >= bbox.MaxX || bbox.MinY >= bbox.MaxY {
			return errorResult(ErrInvalidBBox)
		}
	default:
		return errorResult(ErrMissingExtent)
	}

	return jsonResult(map[string]any{
		"tile_ids": hansen.TileIDsForBBox(bbox),
	})
}

// handleValidate processes canopy_validate_artifact tool calls.
func handleValidate(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input ValidateInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Path == "" {
		return errorResult(ErrEmptyArtifactPath)
	}

	raw, err := os.ReadFile(filepath.Clean(input.Path))
	if err != nil {
		return errorResult(fmt.Errorf("read artifact: %w", err))
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errorResult(fmt.Errorf("parse artifact JSON: %w", err))
	}

	issues, err := evidence.Validate(input.Kind, payload)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]any{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
