package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/deploymenttheory/go-batch-runner/internal/app"
	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/table"
	"github.com/spf13/cobra"
)

var tableOpts tableFlags

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Show or edit the rows of a project table",
}

var tableShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspace(cmd, &tableOpts, func(_ context.Context, _ *app.App, ws *app.Workspace) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			header := []string{"#", "STATUS"}
			for _, col := range ws.Store.InputColumns() {
				header = append(header, col.DisplayLabel())
			}
			for _, col := range ws.Store.OutputColumns() {
				header = append(header, col.DisplayLabel())
			}
			fmt.Fprintln(tw, strings.Join(header, "\t"))

			for i, row := range ws.Store.Rows() {
				status := string(row.Status)
				if row.Status == table.StatusError && row.ErrorMessage != "" {
					status += ": " + row.ErrorMessage
				}
				cells := []string{strconv.Itoa(i + 1), status}
				for _, col := range ws.Store.InputColumns() {
					cells = append(cells, cell(row.Value(col.Key)))
				}
				for _, col := range ws.Store.OutputColumns() {
					cells = append(cells, cell(row.Value(col.Key)))
				}
				fmt.Fprintln(tw, strings.Join(cells, "\t"))
			}
			return tw.Flush()
		})
	},
}

// cell flattens a value onto one short line
func cell(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	if r := []rune(v); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return v
}

var tableAddCmd = &cobra.Command{
	Use:   "add [count]",
	Short: "Append empty rows",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("%w: count must be a positive number", errors.ErrInvalidArgument)
			}
			count = n
		}
		return withWorkspace(cmd, &tableOpts, func(_ context.Context, _ *app.App, ws *app.Workspace) error {
			for i := 0; i < count; i++ {
				ws.Store.AddEmptyRow()
			}
			printf(cmd, "Table has %d rows\n", ws.Store.Len())
			return nil
		})
	},
}

var tableDeleteCmd = &cobra.Command{
	Use:   "delete row",
	Short: "Delete a row by its 1-based number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: row must be a number", errors.ErrInvalidArgument)
		}
		return withWorkspace(cmd, &tableOpts, func(_ context.Context, _ *app.App, ws *app.Workspace) error {
			if err := ws.Store.Delete(n - 1); err != nil {
				return err
			}
			printf(cmd, "Table has %d rows\n", ws.Store.Len())
			return nil
		})
	},
}

var tableClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every row and start over with one empty row",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspace(cmd, &tableOpts, func(_ context.Context, _ *app.App, ws *app.Workspace) error {
			ws.Store.Clear()
			ws.Store.AddEmptyRow()
			printf(cmd, "Table cleared\n")
			return nil
		})
	},
}

var tableSetCmd = &cobra.Command{
	Use:   "set row column value",
	Short: "Set one cell",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: row must be a number", errors.ErrInvalidArgument)
		}
		return withWorkspace(cmd, &tableOpts, func(_ context.Context, _ *app.App, ws *app.Workspace) error {
			return ws.Store.SetCell(n-1, args[1], args[2])
		})
	},
}

func init() {
	tableCmd.PersistentFlags().StringVarP(&tableOpts.project, "project", "p", "", "project id (required)")
	tableCmd.PersistentFlags().StringVarP(&tableOpts.table, "table", "t", "", "table file (default <project>.table.json)")
	_ = tableCmd.MarkPersistentFlagRequired("project")

	tableCmd.AddCommand(tableShowCmd, tableAddCmd, tableDeleteCmd, tableClearCmd, tableSetCmd)
	rootCmd.AddCommand(tableCmd)
}
