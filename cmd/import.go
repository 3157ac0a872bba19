package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/deploymenttheory/go-batch-runner/internal/app"
	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/spf13/cobra"
)

var importOpts struct {
	tableFlags
	clipboard bool
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Paste tab separated rows into the table",
	Long: `Imports rows copied from a spreadsheet: one row per line, cells separated
by tabs, mapped onto the input columns in order. A first line naming the
columns is skipped. Rows fill blank rows of the table first and the rest
are appended. Reads the file argument, the clipboard, or stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := importText(cmd, args)
		if err != nil {
			return err
		}
		return withWorkspace(cmd, &importOpts.tableFlags, func(_ context.Context, a *app.App, ws *app.Workspace) error {
			result, err := a.Import(ws, text)
			if err != nil {
				return err
			}
			if !result.Handled {
				printf(cmd, "Nothing imported: the text holds a single line\n")
				return nil
			}
			printf(cmd, "Imported %d rows (%d filled, %d appended)\n", result.Imported, result.Filled, result.Appended)
			if result.HeaderFiltered {
				printf(cmd, "Skipped the header row\n")
			}
			return nil
		})
	},
}

func importText(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case importOpts.clipboard:
		text, err := clipboard.ReadAll()
		if err != nil {
			return "", fmt.Errorf("%w: clipboard: %s", errors.ErrFileReadError, err.Error())
		}
		return text, nil
	case len(args) == 1 && args[0] != "-":
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
		}
		return string(data), nil
	}
}

func init() {
	importOpts.register(importCmd)
	importCmd.Flags().BoolVar(&importOpts.clipboard, "clipboard", false, "read the rows from the clipboard")
	rootCmd.AddCommand(importCmd)
}
