package cmd

import (
	"context"
	"fmt"

	"github.com/deploymenttheory/go-batch-runner/internal/app"
	"github.com/deploymenttheory/go-batch-runner/internal/config"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/spf13/cobra"
)

// tableFlags are shared by every command that works on a project table
type tableFlags struct {
	project string
	table   string
}

func (f *tableFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.project, "project", "p", "", "project id (required)")
	cmd.Flags().StringVarP(&f.table, "table", "t", "", "table file (default <project>.table.json)")
	_ = cmd.MarkFlagRequired("project")
}

func (f *tableFlags) tablePath() string {
	if f.table != "" {
		return f.table
	}
	return f.project + ".table.json"
}

// withWorkspace opens the project table, runs fn and saves the table
func withWorkspace(cmd *cobra.Command, f *tableFlags, fn func(ctx context.Context, a *app.App, ws *app.Workspace) error) (err error) {
	a, err := app.New(config.Instance)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	ws, err := a.Open(ctx, f.project, f.tablePath())
	if err != nil {
		return err
	}
	if ws.Restored {
		logger.LogInfo("Restored table from snapshot", map[string]interface{}{"project": f.project})
	}

	defer func() {
		if closeErr := ws.Close(context.Background()); closeErr != nil {
			logger.LogError("Failed to save table", closeErr, map[string]interface{}{"table": ws.TablePath})
			if err == nil {
				err = closeErr
			}
		}
	}()

	return fn(ctx, a, ws)
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
