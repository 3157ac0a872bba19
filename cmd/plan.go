package cmd

import (
	"fmt"
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/app"
	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/config"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/deploymenttheory/go-batch-runner/internal/plan"
	"github.com/spf13/cobra"
)

var planVars []string

var planCmd = &cobra.Command{
	Use:   "plan file",
	Short: "Execute a batch plan",
	Long: `Executes the steps of a YAML or JSON plan against one project table, for
example import, run, export and download in one go. String parameters are
Go templates over the plan variables; --var sets or overrides a variable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vars := make(map[string]interface{}, len(planVars))
		for _, kv := range planVars {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || strings.TrimSpace(k) == "" {
				return fmt.Errorf("%w: --var expects key=value, got %q", errors.ErrInvalidArgument, kv)
			}
			vars[strings.ToLower(strings.TrimSpace(k))] = v
		}

		p, err := plan.LoadPlan(args[0], vars)
		if err != nil {
			return err
		}

		if errs := plan.ValidatePlan(p); len(errs) > 0 {
			for _, err := range errs {
				logger.LogError("Plan validation error", err, nil)
			}
			return fmt.Errorf("%w: plan validation failed with %d errors", errors.ErrInvalidArgument, len(errs))
		}

		a, err := app.New(config.Instance)
		if err != nil {
			return err
		}
		return plan.ExecutePlan(cmd.Context(), a, p)
	},
}

func init() {
	planCmd.Flags().StringArrayVar(&planVars, "var", nil, "plan variable as key=value; repeatable")
	rootCmd.AddCommand(planCmd)
}
