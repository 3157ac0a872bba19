// Package project provides the read-only project configuration a batch
// table runs against, and the providers that fetch it by identifier.
package project

import (
	"context"
	"fmt"
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/schema"
)

// Config is a project: the workflow to call and the table schema
type Config struct {
	ID           string                `json:"id" mapstructure:"id"`
	Name         string                `json:"name" mapstructure:"name"`
	WorkflowID   string                `json:"workflowId" mapstructure:"workflowId"`
	InputSchema  []schema.InputColumn  `json:"inputSchema" mapstructure:"inputSchema"`
	OutputSchema []schema.OutputColumn `json:"outputSchema" mapstructure:"outputSchema"`
	APIToken     string                `json:"apiToken,omitempty" mapstructure:"apiToken"`
}

// Provider fetches project configurations
type Provider interface {
	Fetch(ctx context.Context, id string) (*Config, error)
}

// Normalize trims identifiers and migrates legacy column types
func (c *Config) Normalize() {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)
	c.WorkflowID = strings.TrimSpace(c.WorkflowID)
	c.APIToken = strings.TrimSpace(c.APIToken)
	c.InputSchema = schema.NormalizeInputColumns(c.InputSchema)
	c.OutputSchema = schema.NormalizeOutputColumns(c.OutputSchema)
}

// DisplayName returns the project name, falling back to its id
func (c *Config) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.ID != "" {
		return c.ID
	}
	return "project"
}

// Validate checks the project can drive a batch run
func (c *Config) Validate() []error {
	var errs []error

	if c.WorkflowID == "" {
		errs = append(errs, fmt.Errorf("%w: workflowId is required", errors.ErrProjectInvalid))
	}
	if len(c.InputSchema) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one input column is required", errors.ErrProjectInvalid))
	}

	for _, err := range schema.Validate(c.InputSchema, c.OutputSchema) {
		errs = append(errs, fmt.Errorf("%w: %w", errors.ErrProjectInvalid, err))
	}

	return errs
}

// Join collapses validation errors into one error, or nil
func Join(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("%w: %s", errors.ErrProjectInvalid, strings.Join(msgs, "; "))
}
