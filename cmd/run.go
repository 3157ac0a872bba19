package cmd

import (
	"context"

	"github.com/deploymenttheory/go-batch-runner/internal/app"
	"github.com/deploymenttheory/go-batch-runner/internal/runner"
	"github.com/spf13/cobra"
)

var runOpts struct {
	tableFlags
	token    string
	remember bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the workflow for every pending row",
	Long: `Calls the workflow once per row, in order, for every row that has not
succeeded yet. Failed rows keep their error message and are retried on the
next run. Interrupting stops the run after the current row.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspace(cmd, &runOpts.tableFlags, func(ctx context.Context, a *app.App, ws *app.Workspace) error {
			token, err := a.Token(ctx, runOpts.token, ws.Project, runOpts.remember)
			if err != nil {
				return err
			}

			summary, err := a.Run(ctx, ws, app.RunOptions{
				Token: token,
				OnProgress: func(p runner.Progress) {
					printf(cmd, "Row %d/%d\n", p.CurrentIndex+1, p.Total)
				},
			})
			if err != nil {
				return err
			}

			printf(cmd, "Done: %d succeeded, %d failed, %d skipped\n", summary.Succeeded, summary.Failed, summary.Skipped)
			if summary.Cancelled {
				printf(cmd, "Run interrupted; run again to continue\n")
			}
			return nil
		})
	},
}

func init() {
	runOpts.register(runCmd)
	runCmd.Flags().StringVar(&runOpts.token, "token", "", "API token (default from config, project or remembered token)")
	runCmd.Flags().BoolVar(&runOpts.remember, "remember-token", false, "remember --token for later runs")
	rootCmd.AddCommand(runCmd)
}
