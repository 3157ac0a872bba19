package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/deploymenttheory/go-batch-runner/internal/app"
	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/config"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/deploymenttheory/go-batch-runner/internal/project"
	"github.com/spf13/cobra"
)

var inferOpts struct {
	request  string
	response string
	id       string
	name     string
	save     bool
}

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Infer a project from a sample request and response",
	Long: `Reads a curl command that calls the workflow and a JSON response of that
call, and prints the project they describe: the workflow id, one input
column per workflow parameter and one output column per leaf of the result.
Use "-" to read a sample from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		request, err := readSample(cmd, inferOpts.request)
		if err != nil {
			return err
		}
		response, err := readSample(cmd, inferOpts.response)
		if err != nil {
			return err
		}

		cfg := app.InferProject(inferOpts.id, inferOpts.name, request, response)
		if len(cfg.InputSchema) == 0 {
			logger.LogWarn("No input columns could be inferred from the request sample", nil)
		}

		if inferOpts.save {
			if cfg.ID == "" {
				return fmt.Errorf("%w: --id is required with --save", errors.ErrInvalidArgument)
			}
			if err := project.Join(cfg.Validate()); err != nil {
				return err
			}
			path, err := project.NewFileProvider(config.Instance.Project.Dir).Save(cfg)
			if err != nil {
				return err
			}
			logger.LogInfo("Saved project", map[string]interface{}{"path": path})
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

func readSample(cmd *cobra.Command, path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
		}
		return string(data), nil
	}
}

func init() {
	inferCmd.Flags().StringVar(&inferOpts.request, "request", "", "file holding the sample curl request")
	inferCmd.Flags().StringVar(&inferOpts.response, "response", "", "file holding the sample JSON response")
	inferCmd.Flags().StringVar(&inferOpts.id, "id", "", "project id")
	inferCmd.Flags().StringVar(&inferOpts.name, "name", "", "project name")
	inferCmd.Flags().BoolVar(&inferOpts.save, "save", false, "save the project into the project directory")
	rootCmd.AddCommand(inferCmd)
}
