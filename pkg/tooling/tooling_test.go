package tooling

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutePlanFromYAMLRejectsInvalidPlan(t *testing.T) {
	require.NoError(t, Initialize(InitOptions{SuppressLog: true}))

	result, err := ExecutePlanFromYAML(context.Background(), `
name: broken
steps:
  - name: boom
    type: explode
`, nil)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "Plan validation failed with 2 errors")
	assert.Contains(t, result.ErrorMessage, "invalid type 'explode'")
}

func TestExecutePlanMissingFile(t *testing.T) {
	require.NoError(t, Initialize(InitOptions{SuppressLog: true}))

	result, err := ExecutePlan(context.Background(), "/nonexistent/plan.yaml", nil)
	require.Error(t, err)
	assert.Contains(t, result.ErrorMessage, "Failed to load plan")
}
