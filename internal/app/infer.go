package app

import (
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/project"
	"github.com/deploymenttheory/go-batch-runner/internal/schema"
)

// InferProject builds a project from a curl request sample and a JSON
// response sample. The workflow id and token found in the request are used
// unless overridden.
func InferProject(id, name, requestSample, responseSample string) *project.Config {
	meta := schema.ParseRequestMetadata(requestSample)
	cfg := &project.Config{
		ID:           strings.TrimSpace(id),
		Name:         strings.TrimSpace(name),
		WorkflowID:   meta.WorkflowID,
		InputSchema:  schema.ParseInputColumns(requestSample),
		OutputSchema: schema.ParseOutputColumns(responseSample),
		APIToken:     meta.APIToken,
	}
	cfg.Normalize()
	return cfg
}
