// Package tooling lets other Go programs run batch plans without the CLI.
package tooling

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/deploymenttheory/go-batch-runner/internal/app"
	"github.com/deploymenttheory/go-batch-runner/internal/config"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/deploymenttheory/go-batch-runner/internal/plan"
)

// InitOptions contains options for initializing the tooling API
type InitOptions struct {
	ConfigFile  string // Path to configuration file
	Debug       bool   // Enable debug logging
	LogFormat   string // Log format: "human" or "json"
	LogFile     string // Path to log file
	SuppressLog bool   // Suppress all logging
}

// PlanResult contains the results of a plan execution
type PlanResult struct {
	Success      bool                   // Whether every step completed
	ErrorMessage string                 // Error message if any
	Variables    map[string]interface{} // Final state of variables after plan execution
}

var (
	initMu      sync.Mutex
	initialized bool
)

// Initialize initializes the tooling API with the given options
func Initialize(options InitOptions) error {
	initMu.Lock()
	defer initMu.Unlock()
	if initialized {
		return nil
	}

	configErr := config.Initialize(options.ConfigFile)

	if options.Debug {
		config.Instance.Debug = true
	}
	if options.LogFormat != "" {
		config.Instance.LogFormat = options.LogFormat
	}
	if options.LogFile != "" {
		config.Instance.LogFile = options.LogFile
	}

	if !options.SuppressLog {
		logConfig := logger.DefaultConfig()
		logConfig.Debug = config.Instance.Debug
		if config.Instance.LogFormat != "" {
			logConfig.LogFormat = config.Instance.LogFormat
		}
		logConfig.LogFile = config.Instance.LogFile
		if err := logger.InitLogger(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.LogInfo("Tooling API initialized", map[string]interface{}{
			"config_file": options.ConfigFile,
			"debug":       options.Debug,
			"log_format":  options.LogFormat,
		})
		if configErr != nil {
			logger.LogWarn("Configuration initialization warning", map[string]interface{}{
				"error": configErr.Error(),
			})
		}
	}

	initialized = true
	return nil
}

// DefaultOptions returns the default initialization options
func DefaultOptions() InitOptions {
	return InitOptions{
		LogFormat: "human",
	}
}

func ensureInitialized() error {
	initMu.Lock()
	done := initialized
	initMu.Unlock()
	if done {
		return nil
	}
	if err := Initialize(DefaultOptions()); err != nil {
		return fmt.Errorf("failed to initialize tooling API: %w", err)
	}
	return nil
}

// ExecutePlan executes a plan defined in a file
func ExecutePlan(ctx context.Context, planFile string, vars map[string]interface{}) (*PlanResult, error) {
	if err := ensureInitialized(); err != nil {
		return nil, err
	}

	logger.LogInfo("Executing plan", map[string]interface{}{
		"file": planFile,
	})

	p, err := plan.LoadPlan(planFile, vars)
	if err != nil {
		return &PlanResult{
			ErrorMessage: fmt.Sprintf("Failed to load plan: %s", err.Error()),
		}, err
	}

	if errs := plan.ValidatePlan(p); len(errs) > 0 {
		var errorMessages []string
		for _, err := range errs {
			errorMessages = append(errorMessages, err.Error())
		}

		errorMessage := fmt.Sprintf("Plan validation failed with %d errors: %s",
			len(errs), strings.Join(errorMessages, "; "))

		return &PlanResult{ErrorMessage: errorMessage}, fmt.Errorf("%s", errorMessage)
	}

	a, err := app.New(config.Instance)
	if err != nil {
		return &PlanResult{ErrorMessage: err.Error()}, err
	}

	if err := plan.ExecutePlan(ctx, a, p); err != nil {
		return &PlanResult{
			ErrorMessage: fmt.Sprintf("Plan execution failed: %s", err.Error()),
			Variables:    p.Variables,
		}, err
	}

	return &PlanResult{
		Success:   true,
		Variables: p.Variables,
	}, nil
}

// ExecutePlanFromYAML executes a plan defined in a YAML string
func ExecutePlanFromYAML(ctx context.Context, planYAML string, vars map[string]interface{}) (*PlanResult, error) {
	tempFile, err := os.CreateTemp("", "plan-*.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.WriteString(planYAML); err != nil {
		tempFile.Close()
		return nil, fmt.Errorf("failed to write plan to temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temporary file: %w", err)
	}

	return ExecutePlan(ctx, tempFile.Name(), vars)
}

// SetRelayURL points workflow runs at another relay
func SetRelayURL(url string) error {
	if err := ensureInitialized(); err != nil {
		return err
	}
	config.Instance.Relay.URL = url
	return nil
}

// SetAPIToken sets the token used when a plan gives none
func SetAPIToken(token string) error {
	if err := ensureInitialized(); err != nil {
		return err
	}
	config.Instance.Runner.APIToken = token
	return nil
}
