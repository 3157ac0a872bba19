package cmd

import (
	"context"

	"github.com/deploymenttheory/go-batch-runner/internal/app"
	"github.com/spf13/cobra"
)

var exportOpts struct {
	tableFlags
	dir    string
	locale string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the table as <project-name>-results.csv",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspace(cmd, &exportOpts.tableFlags, func(_ context.Context, a *app.App, ws *app.Workspace) error {
			path, err := a.Export(ws, exportOpts.dir, exportOpts.locale)
			if err != nil {
				return err
			}
			printf(cmd, "Exported %d rows to %s\n", ws.Store.Len(), path)
			return nil
		})
	},
}

func init() {
	exportOpts.register(exportCmd)
	exportCmd.Flags().StringVarP(&exportOpts.dir, "dir", "d", ".", "output directory")
	exportCmd.Flags().StringVar(&exportOpts.locale, "locale", "", "label language, e.g. en or zh (default from config)")
	rootCmd.AddCommand(exportCmd)
}
