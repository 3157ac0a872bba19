package cmd

import (
	"context"

	"github.com/deploymenttheory/go-batch-runner/internal/app"
	"github.com/deploymenttheory/go-batch-runner/internal/assets"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/spf13/cobra"
)

var uploadOpts struct {
	tableFlags
	column string
	token  string
}

var uploadCmd = &cobra.Command{
	Use:   "upload file|dir...",
	Short: "Upload files into a file input column",
	Long: `Uploads the files in natural name order and writes each URL into the first
row whose cell in the column is blank, appending rows as needed. A file
that fails to upload is reported and skipped. A directory argument uploads
the files directly inside it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspace(cmd, &uploadOpts.tableFlags, func(ctx context.Context, a *app.App, ws *app.Workspace) error {
			token, err := a.Token(ctx, uploadOpts.token, ws.Project, false)
			if err != nil {
				logger.LogDebug("Uploading without a token", nil)
				token = ""
			}

			report, err := a.Upload(ctx, ws, token, uploadOpts.column, args, assets.UploadOptions{
				OnProgress: func(current, total int, name string) {
					printf(cmd, "Uploading %d/%d %s\n", current, total, name)
				},
				OnNotice: func(name string, err error) {
					printf(cmd, "Could not upload %s: %v\n", name, err)
				},
			})
			if err != nil {
				return err
			}
			printf(cmd, "Uploaded %d of %d files\n", len(report.Placed), report.Total)
			return nil
		})
	},
}

func init() {
	uploadOpts.register(uploadCmd)
	uploadCmd.Flags().StringVarP(&uploadOpts.column, "column", "c", "", "file input column key (required)")
	uploadCmd.Flags().StringVar(&uploadOpts.token, "token", "", "bearer token for the storage endpoint")
	_ = uploadCmd.MarkFlagRequired("column")
	rootCmd.AddCommand(uploadCmd)
}
