// Package main provides the entry point for the canopy CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/canopy/cmd/canopy/commands"
	"github.com/Sumatoshi-tech/canopy/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "canopy",
		Short: "Canopy forest change analysis - Hansen Global Forest Change tooling",
		Long: `Canopy analyzes Hansen Global Forest Change rasters over a GeoJSON
area of interest and writes deterministic, schema-validated evidence
artifacts.

Commands:
  analyze   Run the forest-loss analysis over an AOI
  tiles     List the Hansen tiles an extent needs
  fetch     Download or inventory tile layers and write a manifest
  parcels   Per-parcel land and forest area statistics
  validate  Validate an evidence artifact against its schema
  mcp       Start the MCP server for AI agent integration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewTilesCommand())
	rootCmd.AddCommand(commands.NewFetchCommand())
	rootCmd.AddCommand(commands.NewParcelsCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "canopy %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
