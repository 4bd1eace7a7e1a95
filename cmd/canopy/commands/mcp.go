package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/canopy/internal/mcp"
	"github.com/Sumatoshi-tech/canopy/internal/observability"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var (
		debug           bool
		diagnosticsAddr string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes canopy forest-change analysis as tools that AI
agents can discover and invoke:
  - canopy_forest_loss: Run the forest-loss analysis over an AOI
  - canopy_tiles: Resolve an extent to the Hansen tiles it needs
  - canopy_validate_artifact: Validate an evidence artifact against its schema`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			level := "info"
			if debug {
				level = "debug"
			}

			// Stdio carries the protocol, so logs go to stderr.
			logger := observability.NewLogger(os.Stderr, level, "json")

			deps := mcp.ServerDeps{Logger: logger}

			if diagnosticsAddr != "" {
				diag, err := observability.NewDiagnosticsServer(diagnosticsAddr, logger)
				if err != nil {
					return err
				}

				defer func() {
					closeErr := diag.Close()
					if closeErr != nil {
						logger.Warn("diagnostics shutdown failed", "error", closeErr)
					}
				}()

				deps.Metrics = diag.Metrics()
				logger.Info("diagnostics listening", "addr", diag.Addr())
			}

			srv := mcp.NewServer(deps)

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")
	cmd.Flags().StringVar(&diagnosticsAddr, "diagnostics", "", "Serve /healthz, /readyz, and /metrics at this address")

	return cmd
}
