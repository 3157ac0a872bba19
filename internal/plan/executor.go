package plan

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/app"
	"github.com/deploymenttheory/go-batch-runner/internal/assets"
	compression "github.com/deploymenttheory/go-batch-runner/internal/common/compressionutil"
	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
)

// Env is what steps operate on
type Env struct {
	App       *app.App
	Workspace *app.Workspace
	Variables map[string]interface{}
}

// StepHandler executes one step. The returned values are merged into the
// plan variables.
type StepHandler func(ctx context.Context, env *Env, step Step) (map[string]interface{}, error)

func createStepHandlerRegistry() map[string]StepHandler {
	return map[string]StepHandler{
		"import":   handleImportStep,
		"run":      handleRunStep,
		"upload":   handleUploadStep,
		"download": handleDownloadStep,
		"export":   handleExportStep,
		"add_rows": handleAddRowsStep,
		"clear":    handleClearStep,
	}
}

// ExecutePlan opens the plan's table and executes its steps in order. The
// table is saved when the plan ends, whether or not a step failed.
func ExecutePlan(ctx context.Context, a *app.App, p *Plan) (err error) {
	logger.LogInfo("Starting plan execution", map[string]interface{}{
		"plan":  p.Name,
		"steps": len(p.Steps),
	})

	ws, err := a.Open(ctx, p.Project, p.Table)
	if err != nil {
		return fmt.Errorf("error opening project '%s': %w", p.Project, err)
	}
	defer func() {
		if closeErr := ws.Close(context.Background()); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if p.Variables == nil {
		p.Variables = make(map[string]interface{})
	}
	env := &Env{App: a, Workspace: ws, Variables: p.Variables}
	registry := createStepHandlerRegistry()

	for i, step := range p.Steps {
		logger.LogInfo(fmt.Sprintf("Executing step %d/%d: %s", i+1, len(p.Steps), step.Name),
			map[string]interface{}{
				"type":        step.Type,
				"description": step.Description,
			})

		if step.Condition != "" {
			shouldRun, err := evaluateCondition(step.Condition, env.Variables)
			if err != nil {
				return fmt.Errorf("error evaluating condition for step '%s': %w", step.Name, err)
			}

			if !shouldRun {
				logger.LogInfo(fmt.Sprintf("Skipping step %d/%d: %s (condition not met)", i+1, len(p.Steps), step.Name), nil)
				continue
			}
		}

		handler, found := registry[step.Type]
		if !found {
			return fmt.Errorf("no handler found for step type '%s'", step.Type)
		}

		result, err := handler(ctx, env, step)
		if err != nil {
			return fmt.Errorf("error executing step '%s': %w", step.Name, err)
		}

		for k, v := range result {
			env.Variables[k] = v
		}

		logger.LogInfo(fmt.Sprintf("Completed step %d/%d: %s", i+1, len(p.Steps), step.Name), nil)
	}

	logger.LogInfo("Plan execution completed successfully", map[string]interface{}{
		"plan": p.Name,
	})

	return nil
}

// evaluateCondition renders a condition and checks whether it is truthy
func evaluateCondition(condition string, variables map[string]interface{}) (bool, error) {
	result, err := processTemplate(condition, variables)
	if err != nil {
		return false, err
	}

	result = strings.TrimSpace(strings.ToLower(result))
	return result == "true" || result == "yes" || result == "1", nil
}

func handleImportStep(_ context.Context, env *Env, step Step) (map[string]interface{}, error) {
	// Leading tabs and the final line break are part of the paste
	text, _ := step.Parameters["text"].(string)
	if file, ok := stringParam(step, "file"); ok && file != "" {
		data, err := fsutil.ReadFile(file)
		if err != nil {
			return nil, err
		}
		text = string(data)
	}

	result, err := env.App.Import(env.Workspace, text)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"imported": result.Imported,
		"rows":     env.Workspace.Store.Len(),
	}, nil
}

func handleRunStep(ctx context.Context, env *Env, step Step) (map[string]interface{}, error) {
	explicit, _ := stringParam(step, "token")
	remember, _ := boolParam(step, "remember_token")
	token, err := env.App.Token(ctx, explicit, env.Workspace.Project, remember)
	if err != nil {
		return nil, err
	}

	summary, err := env.App.Run(ctx, env.Workspace, app.RunOptions{Token: token})
	if err != nil {
		return nil, err
	}
	if summary.Cancelled {
		return nil, ctx.Err()
	}
	return map[string]interface{}{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}, nil
}

func handleUploadStep(ctx context.Context, env *Env, step Step) (map[string]interface{}, error) {
	column, _ := stringParam(step, "column")
	patterns := stringsParam(step, "files")

	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad files pattern %q: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	explicit, _ := stringParam(step, "token")
	token, err := env.App.Token(ctx, explicit, env.Workspace.Project, false)
	if err != nil {
		token = ""
	}

	report, err := env.App.Upload(ctx, env.Workspace, token, column, paths, assets.UploadOptions{})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"uploaded":      len(report.Placed),
		"upload_failed": len(report.Failed),
	}, nil
}

func handleDownloadStep(ctx context.Context, env *Env, step Step) (map[string]interface{}, error) {
	opts := app.DownloadOptions{Columns: stringsParam(step, "columns")}
	opts.Dir, _ = stringParam(step, "dir")
	if archive, ok := stringParam(step, "archive"); ok && archive != "" {
		format, err := compression.ParseFormat(archive)
		if err != nil {
			return nil, err
		}
		opts.Archive = true
		opts.Format = format
	}

	results, err := env.App.Download(ctx, env.Workspace, opts)
	if err != nil {
		return nil, err
	}
	files := 0
	for _, r := range results {
		files += len(r.Files)
	}
	return map[string]interface{}{"downloaded": files}, nil
}

func handleExportStep(_ context.Context, env *Env, step Step) (map[string]interface{}, error) {
	dir, _ := stringParam(step, "dir")
	if dir == "" {
		dir = "."
	}
	locale, _ := stringParam(step, "locale")

	path, err := env.App.Export(env.Workspace, dir, locale)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"export_path": path}, nil
}

func handleAddRowsStep(_ context.Context, env *Env, step Step) (map[string]interface{}, error) {
	count, ok := intParam(step, "count")
	if !ok {
		count = 1
	}
	for i := 0; i < count; i++ {
		env.Workspace.Store.AddEmptyRow()
	}
	return map[string]interface{}{"rows": env.Workspace.Store.Len()}, nil
}

func handleClearStep(_ context.Context, env *Env, _ Step) (map[string]interface{}, error) {
	if env.Workspace.Store.Busy() {
		return nil, fmt.Errorf("cannot clear the table while it is in use")
	}
	env.Workspace.Store.Clear()
	env.Workspace.Store.AddEmptyRow()
	return map[string]interface{}{"rows": env.Workspace.Store.Len()}, nil
}

func stringParam(step Step, key string) (string, bool) {
	v, ok := step.Parameters[key]
	if !ok || v == nil {
		return "", false
	}
	return strings.TrimSpace(fmt.Sprint(v)), true
}

func boolParam(step Step, key string) (bool, bool) {
	s, ok := stringParam(step, key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(s)
	return b, err == nil
}

func intParam(step Step, key string) (int, bool) {
	s, ok := stringParam(step, key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// stringsParam accepts a list or a comma separated string
func stringsParam(step Step, key string) []string {
	var raw []string
	switch v := step.Parameters[key].(type) {
	case nil:
	case []interface{}:
		for _, item := range v {
			raw = append(raw, fmt.Sprint(item))
		}
	case []string:
		raw = v
	default:
		raw = strings.Split(fmt.Sprint(v), ",")
	}

	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
