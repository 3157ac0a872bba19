package plan

// Plan is an ordered list of table operations read from a YAML or JSON file
type Plan struct {
	// Name of the plan (required)
	Name string `mapstructure:"name"`

	// Optional description of the plan
	Description string `mapstructure:"description,omitempty"`

	// Project the plan's table belongs to (required)
	Project string `mapstructure:"project"`

	// Table file; empty keeps the table in the snapshot cache only
	Table string `mapstructure:"table,omitempty"`

	// Ordered list of steps to execute
	Steps []Step `mapstructure:"steps"`

	// Variables that can be referenced in step parameters
	Variables map[string]interface{} `mapstructure:"variables,omitempty"`
}

// Step is a single operation of a plan
type Step struct {
	// Unique name for the step (required)
	Name string `mapstructure:"name"`

	// Type of operation to perform (required)
	Type string `mapstructure:"type"`

	// Optional human-readable description of the step
	Description string `mapstructure:"description,omitempty"`

	// Optional template; the step runs when it renders true, yes or 1
	Condition string `mapstructure:"condition,omitempty"`

	// Flexible parameters for the step
	Parameters map[string]interface{} `mapstructure:",remain"`
}
