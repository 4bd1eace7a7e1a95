// Package commands implements the canopy CLI subcommands.
package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/canopy/internal/config"
	"github.com/Sumatoshi-tech/canopy/internal/observability"
	"github.com/Sumatoshi-tech/canopy/pkg/hansen"
)

// AnalyzeCommand holds the flags for the analyze command.
type AnalyzeCommand struct {
	configPath string
	aoiPath    string
	tileDir    string
	outputDir  string
	threshold  int
	cutoffYear int
	workers    int
	writeMasks bool
	reproject  bool
	maskCache  string
	jsonOutput bool
	verbose    bool
	quiet      bool
}

// lookupBoolFlag reads an inherited boolean flag, tolerating commands
// run outside the root (tests construct them standalone).
func lookupBoolFlag(cobraCmd *cobra.Command, name string) bool {
	v, err := cobraCmd.Flags().GetBool(name)
	if err != nil {
		return false
	}

	return v
}

// NewAnalyzeCommand creates and configures the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	cmd := &AnalyzeCommand{}

	cobraCmd := &cobra.Command{
		Use:   "analyze --aoi <aoi.geojson>",
		Short: "Run the forest-loss analysis over an area of interest",
		Long: `Analyze Hansen Global Forest Change tiles over a WGS84 GeoJSON area
of interest and write the summary, debug, and mask evidence artifacts.`,
		SilenceUsage: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cmd.verbose = lookupBoolFlag(cobraCmd, "verbose")
			cmd.quiet = lookupBoolFlag(cobraCmd, "quiet")

			return cmd.Run(cobraCmd.OutOrStdout())
		},
	}

	flags := cobraCmd.Flags()
	flags.StringVarP(&cmd.configPath, "config", "c", "", "path to a .canopy.yaml config file")
	flags.StringVar(&cmd.aoiPath, "aoi", "", "WGS84 GeoJSON area of interest (required)")
	flags.StringVar(&cmd.tileDir, "tiles", "", "directory holding Hansen tile layers")
	flags.StringVarP(&cmd.outputDir, "out", "o", "", "output directory for evidence artifacts")
	flags.IntVar(&cmd.threshold, "threshold", 0, "canopy threshold percent for the forest baseline")
	flags.IntVar(&cmd.cutoffYear, "cutoff", 0, "loss after this year counts as recent")
	flags.IntVar(&cmd.workers, "workers", 0, "parallel area accumulation workers")
	flags.BoolVar(&cmd.writeMasks, "write-masks", true, "write GeoJSON mask artifacts")
	flags.BoolVar(&cmd.reproject, "reproject", false, "reproject geographic tiles to an equal-area CRS")
	flags.StringVar(&cmd.maskCache, "mask-cache", "", "directory for packed reference forest masks")
	flags.BoolVar(&cmd.jsonOutput, "json", false, "print metrics as JSON instead of a table")

	_ = cobraCmd.MarkFlagRequired("aoi")

	return cobraCmd
}

// Run executes the analyze command.
func (c *AnalyzeCommand) Run(out io.Writer) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	c.applyOverrides(cfg)

	level := cfg.Logging.Level
	if c.verbose {
		level = "debug"
	} else if c.quiet {
		level = "error"
	}

	logger := observability.NewLogger(os.Stderr, level, cfg.Logging.Format)

	var metrics *observability.Metrics

	if cfg.Diagnostics.Enabled {
		diag, diagErr := observability.NewDiagnosticsServer(cfg.Diagnostics.Addr, logger)
		if diagErr != nil {
			return diagErr
		}
		defer diag.Close()

		metrics = diag.Metrics()

		logger.Info("diagnostics listening", "addr", diag.Addr())
	}

	engine := hansen.NewEngine(cfg.EngineConfig(), cfg.Summer(), logger)

	started := time.Now()

	result, err := engine.Run(hansen.RunRequest{
		AOIPath:   c.aoiPath,
		OutputDir: cfg.Output.Directory,
	})

	if metrics != nil {
		metrics.ObserveRun(time.Since(started).Seconds(), err)
	}

	if err != nil {
		return err
	}

	if metrics != nil {
		metrics.TilesProcessed.Add(float64(len(result.Debug.RasterShapes)))
	}

	if c.jsonOutput {
		return printResultJSON(out, result)
	}

	printResultTable(out, result)

	return nil
}

// applyOverrides layers the command-line flags over the loaded config.
func (c *AnalyzeCommand) applyOverrides(cfg *config.Config) {
	if c.tileDir != "" {
		cfg.Tiles.Directory = c.tileDir
	}

	if c.outputDir != "" {
		cfg.Output.Directory = c.outputDir
	}

	if c.threshold > 0 {
		cfg.Analysis.CanopyThresholdPercent = c.threshold
	}

	if c.cutoffYear > 0 {
		cfg.Analysis.CutoffYear = c.cutoffYear
	}

	if c.workers > 0 {
		cfg.Analysis.Workers = c.workers
	}

	if c.maskCache != "" {
		cfg.Output.MaskCacheDir = c.maskCache
	}

	if c.reproject {
		cfg.Analysis.ReprojectToProjected = true
	}

	cfg.Output.WriteMasks = c.writeMasks
}

func printResultTable(out io.Writer, result *hansen.Result) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Metric", "Value"})

	rows := []struct {
		name  string
		value string
	}{
		{"Canopy threshold", fmt.Sprintf("%d%%", result.Metrics.CanopyThresholdPct)},
		{"End year", fmt.Sprintf("%d", result.Metrics.EndYear)},
		{"Baseline forest (ha)", humanize.CommafWithDigits(result.Metrics.RFMAreaHa, 3)},
		{"Forest at end year (ha)", humanize.CommafWithDigits(result.Metrics.ForestEndYearAreaHa, 3)},
		{"Loss since 2000 (ha)", humanize.CommafWithDigits(result.Metrics.LossTotalHa, 3)},
		{"Recent loss (ha)", humanize.CommafWithDigits(result.Metrics.LossRecentHa, 3)},
		{"Recent loss (% of baseline)", fmt.Sprintf("%.2f%%", result.Metrics.LossRecentPctOfRFM)},
		{"Loss after cutoff (ha)", humanize.CommafWithDigits(result.ForestLossPost2020Ha, 3)},
		{"Initial tree cover (ha)", humanize.CommafWithDigits(result.InitialTreeCoverHa, 3)},
		{"Current tree cover (ha)", humanize.CommafWithDigits(result.CurrentTreeCoverHa, 3)},
	}

	for _, row := range rows {
		tbl.AppendRow(table.Row{row.name, row.value})
	}

	tbl.Render()
	fmt.Fprintf(out, "Summary: %s\n", result.SummaryPath)
}

func printResultJSON(out io.Writer, result *hansen.Result) error {
	payload := map[string]any{
		"metrics":      result.Metrics,
		"params":       result.Params,
		"debug":        result.Debug,
		"summary_path": result.SummaryPath,
		"debug_path":   result.DebugPath,
		"tiles_path":   result.TilesManifestPath,
	}

	encoder := newIndentEncoder(out)

	err := encoder.Encode(payload)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}

	return nil
}
