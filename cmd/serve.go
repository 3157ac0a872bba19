package cmd

import (
	"github.com/deploymenttheory/go-batch-runner/internal/config"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/deploymenttheory/go-batch-runner/internal/relay"
	"github.com/spf13/cobra"
)

var serveOpts struct {
	listen     string
	storageDir string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow relay",
	Long: `Starts the HTTP relay that forwards workflow runs and file uploads to the
upstream API with the caller's bearer token, and stores uploaded files
locally under /files when a storage directory is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := relay.ServerConfig{
			Listen:     config.Instance.Relay.Listen,
			RunURL:     config.Instance.Relay.UpstreamURL,
			UploadURL:  config.Instance.Relay.UploadURL,
			StorageDir: config.Instance.Relay.StorageDir,
			PublicURL:  config.Instance.Relay.PublicURL,
			Timeout:    config.Instance.Relay.Timeout,
		}
		if cmd.Flags().Changed("listen") {
			cfg.Listen = serveOpts.listen
		}
		if cmd.Flags().Changed("storage-dir") {
			cfg.StorageDir = serveOpts.storageDir
		}

		logger.LogInfo("Starting relay", map[string]interface{}{
			"listen":   cfg.Listen,
			"upstream": cfg.RunURL,
		})
		log := logger.WithFields(map[string]interface{}{"component": "relay"})
		return relay.NewServer(cfg, log).ListenAndServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveOpts.listen, "listen", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveOpts.storageDir, "storage-dir", "", "directory for uploaded files; empty disables local storage")
	rootCmd.AddCommand(serveCmd)
}
