package cmd

import (
	"context"
	"fmt"

	"github.com/deploymenttheory/go-batch-runner/internal/config"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "0.1.0"

var cfgFile string

// rootCmd represents the base CLI command
var rootCmd = &cobra.Command{
	Use:   "go-batch-runner",
	Short: "Run a workflow over every row of a table",
	Long: `go-batch-runner drives a remote workflow API in bulk. A project names the
workflow and the table schema; each table row becomes one workflow call and
the selected fields of its result are written back into the row.

Schemas can be inferred from a sample curl request and a sample response.
Rows are pasted in as tab separated text, files are uploaded into file
columns, and results are exported as CSV or downloaded in bulk.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// If config file was explicitly specified via flag, reload
		if cmd.Flags().Changed("config") && cfgFile != "" {
			if err := config.Reload(cfgFile); err != nil {
				return err
			}
		}

		// CLI flags override config settings
		if cmd.Flags().Changed("debug") {
			config.Instance.Debug, _ = cmd.Flags().GetBool("debug")
		}
		if cmd.Flags().Changed("log-format") {
			config.Instance.LogFormat, _ = cmd.Flags().GetString("log-format")
		}

		logConfig := logger.DefaultConfig()
		logConfig.Debug = config.Instance.Debug
		if config.Instance.LogFormat != "" {
			logConfig.LogFormat = config.Instance.LogFormat
		}
		logConfig.LogFile = config.Instance.LogFile
		return logger.InitLogger(logConfig)
	},
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.LogError("Command execution failed", err, nil)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in standard locations)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-format", "human", "Log format: json or human")

	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows the application version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "go-batch-runner v%s\n", Version)
	},
}
