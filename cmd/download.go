package cmd

import (
	"context"

	"github.com/deploymenttheory/go-batch-runner/internal/app"
	compression "github.com/deploymenttheory/go-batch-runner/internal/common/compressionutil"
	"github.com/spf13/cobra"
)

var downloadOpts struct {
	tableFlags
	dir     string
	columns []string
	archive string
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the files referenced by output columns",
	Long: `Downloads every file URL of the selected output columns, one directory per
column. Without --column every column that holds files is used. Failed
downloads are logged and do not stop the batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.DownloadOptions{
			Dir:     downloadOpts.dir,
			Columns: downloadOpts.columns,
			OnDispatch: func(current, total int, filename string) {
				printf(cmd, "Downloading %d/%d %s\n", current, total, filename)
			},
		}
		if downloadOpts.archive != "" {
			format, err := compression.ParseFormat(downloadOpts.archive)
			if err != nil {
				return err
			}
			opts.Archive = true
			opts.Format = format
		}

		return withWorkspace(cmd, &downloadOpts.tableFlags, func(ctx context.Context, a *app.App, ws *app.Workspace) error {
			results, err := a.Download(ctx, ws, opts)
			for _, r := range results {
				printf(cmd, "%s: %d files in %s\n", r.Column, len(r.Files), r.Dir)
				if r.Archive != "" {
					printf(cmd, "%s: archive %s\n", r.Column, r.Archive)
				}
			}
			if err != nil {
				return err
			}
			if len(results) == 0 {
				printf(cmd, "No output column holds files\n")
			}
			return nil
		})
	},
}

func init() {
	downloadOpts.register(downloadCmd)
	downloadCmd.Flags().StringVarP(&downloadOpts.dir, "dir", "d", "", "target directory (default from config)")
	downloadCmd.Flags().StringSliceVarP(&downloadOpts.columns, "column", "c", nil, "output column key; repeatable")
	downloadCmd.Flags().StringVar(&downloadOpts.archive, "archive", "", "also bundle each column into a tar archive: none, gz, xz or bz2")
	rootCmd.AddCommand(downloadCmd)
}
