// Package plan runs batch plans: scripted sequences of imports, runs,
// uploads, downloads and exports over one project table.
package plan

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
	"github.com/spf13/viper"
)

// LoadPlan loads a plan from a file and renders the templates in its step
// parameters. Conditions are rendered at execution time.
func LoadPlan(filePath string, extraVars map[string]interface{}) (*Plan, error) {
	v := viper.New()

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: plan file %s", errors.ErrFileNotFound, filePath)
	}

	v.SetConfigFile(filePath)

	ext := strings.ToLower(fsutil.GetExtension(filePath))
	if ext != "" {
		v.SetConfigType(ext[1:])
	} else {
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading plan file: %w", err)
	}

	p := &Plan{}
	if err := v.Unmarshal(p); err != nil {
		return nil, fmt.Errorf("error parsing plan: %w", err)
	}

	if p.Variables == nil {
		p.Variables = make(map[string]interface{})
	}
	for k, val := range extraVars {
		p.Variables[k] = val
	}
	addSystemVariables(p, filePath)

	if err := processTemplates(p); err != nil {
		return nil, fmt.Errorf("error processing templates: %w", err)
	}

	return p, nil
}

// addSystemVariables adds the variables every plan can reference
func addSystemVariables(p *Plan, filePath string) {
	p.Variables["project"] = p.Project
	p.Variables["plan_dir"] = filepath.Dir(filePath)

	if cwd, err := os.Getwd(); err == nil {
		p.Variables["current_dir"] = cwd
	}

	p.Variables["timestamp"] = fmt.Sprintf("%d", time.Now().Unix())
}

// processTemplates renders the string parameters of every step
func processTemplates(p *Plan) error {
	var err error
	if p.Table, err = processTemplate(p.Table, p.Variables); err != nil {
		return fmt.Errorf("error processing template in table: %w", err)
	}

	for i, step := range p.Steps {
		processedParams := make(map[string]interface{})
		for key, value := range step.Parameters {
			processed, err := processValue(value, p.Variables)
			if err != nil {
				return fmt.Errorf("error processing template in step %s, parameter %s: %w", step.Name, key, err)
			}
			processedParams[key] = processed
		}
		p.Steps[i].Parameters = processedParams
	}
	return nil
}

func processValue(value interface{}, variables map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return processTemplate(v, variables)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			processed, err := processValue(item, variables)
			if err != nil {
				return nil, err
			}
			out[i] = processed
		}
		return out, nil
	default:
		return value, nil
	}
}

// processTemplate renders a single template string
func processTemplate(templateString string, variables map[string]interface{}) (string, error) {
	if !strings.Contains(templateString, "{{") {
		return templateString, nil
	}

	tmpl, err := template.New("inline").Option("missingkey=zero").Parse(templateString)
	if err != nil {
		return "", err
	}

	var buffer bytes.Buffer
	if err := tmpl.Execute(&buffer, variables); err != nil {
		return "", err
	}

	return buffer.String(), nil
}

// ValidatePlan validates the plan structure and step parameters
func ValidatePlan(p *Plan) []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, fmt.Errorf("%w: plan name is required", errors.ErrInvalidArgument))
	}

	if strings.TrimSpace(p.Project) == "" {
		errs = append(errs, fmt.Errorf("%w: plan project is required", errors.ErrInvalidArgument))
	}

	if len(p.Steps) == 0 {
		errs = append(errs, fmt.Errorf("%w: plan must contain at least one step", errors.ErrInvalidArgument))
	}

	for i, step := range p.Steps {
		if step.Name == "" {
			errs = append(errs, fmt.Errorf("%w: step %d: name is required", errors.ErrInvalidArgument, i+1))
		}

		if step.Type == "" {
			errs = append(errs, fmt.Errorf("%w: step %d (%s): type is required", errors.ErrInvalidArgument, i+1, step.Name))
			continue
		}

		if !isValidStepType(step.Type) {
			errs = append(errs, fmt.Errorf("%w: step %d (%s): invalid type '%s'", errors.ErrInvalidArgument, i+1, step.Name, step.Type))
			continue
		}

		for _, err := range validateStepParameters(step) {
			errs = append(errs, fmt.Errorf("%w: step %d (%s): %s", errors.ErrInvalidArgument, i+1, step.Name, err.Error()))
		}
	}

	return errs
}

// StepTypes lists the operations a plan step can perform
var StepTypes = []string{"import", "run", "upload", "download", "export", "add_rows", "clear"}

func isValidStepType(stepType string) bool {
	for _, validType := range StepTypes {
		if stepType == validType {
			return true
		}
	}
	return false
}

// validateStepParameters validates parameters for a specific step type
func validateStepParameters(step Step) []error {
	var errs []error

	switch step.Type {
	case "import":
		_, hasFile := step.Parameters["file"]
		_, hasText := step.Parameters["text"]
		if !hasFile && !hasText {
			errs = append(errs, fmt.Errorf("missing required parameter 'file' or 'text'"))
		}

	case "upload":
		if _, ok := step.Parameters["column"]; !ok {
			errs = append(errs, fmt.Errorf("missing required parameter 'column'"))
		}
		if _, ok := step.Parameters["files"]; !ok {
			errs = append(errs, fmt.Errorf("missing required parameter 'files'"))
		}

	case "add_rows":
		if n, ok := intParam(step, "count"); ok && n < 1 {
			errs = append(errs, fmt.Errorf("parameter 'count' must be positive"))
		}
	}

	return errs
}
