package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/deploymenttheory/go-batch-runner/internal/assets"
	compression "github.com/deploymenttheory/go-batch-runner/internal/common/compressionutil"
	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
	"github.com/deploymenttheory/go-batch-runner/internal/export"
	"github.com/deploymenttheory/go-batch-runner/internal/importer"
	"github.com/deploymenttheory/go-batch-runner/internal/runner"
	"github.com/deploymenttheory/go-batch-runner/internal/schema"
	"github.com/deploymenttheory/go-batch-runner/internal/table"
)

// Import pastes tab separated text into the table
func (a *App) Import(w *Workspace, text string) (importer.Result, error) {
	result, err := importer.Import(text, w.Store)
	if err != nil {
		return result, err
	}
	if result.Handled {
		a.Log.Infow("Imported rows",
			"imported", result.Imported,
			"filled", result.Filled,
			"appended", result.Appended,
			"header_filtered", result.HeaderFiltered,
		)
	}
	return result, nil
}

// RunOptions configures Run
type RunOptions struct {
	Token      string
	OnProgress func(runner.Progress)
}

// Run executes the table's pending rows. The table stays locked against
// imports and uploads until the run ends.
func (a *App) Run(ctx context.Context, w *Workspace, opts RunOptions) (runner.Summary, error) {
	release, err := w.Store.Acquire()
	if err != nil {
		return runner.Summary{}, err
	}
	defer release()

	r := runner.New(a.Relay, runner.Options{
		RowDelay:   a.Config.Runner.RowDelay,
		OnProgress: opts.OnProgress,
		Logger:     a.Log,
	})
	return r.Run(ctx, runner.Job{
		WorkflowID: w.Project.WorkflowID,
		Token:      opts.Token,
		Inputs:     w.Store.InputColumns(),
		Outputs:    w.Store.OutputColumns(),
		Rows:       w.Store.Rows(),
	}, w.Store)
}

// Upload distributes local files over a file input column. A directory
// contributes the files directly inside it.
func (a *App) Upload(ctx context.Context, w *Workspace, token, column string, paths []string, opts assets.UploadOptions) (assets.UploadReport, error) {
	if opts.Logger == nil {
		opts.Logger = a.Log
	}
	files, err := assets.ExpandPaths(paths)
	if err != nil {
		return assets.UploadReport{}, err
	}
	return assets.BatchUpload(ctx, w.Store, a.NewStorage(token), column, files, opts)
}

// DownloadOptions configures Download
type DownloadOptions struct {
	Dir        string
	Columns    []string // output column keys; empty selects every file-like column
	Archive    bool     // bundle each column's files into a tar archive
	Format     compression.Format
	OnDispatch func(current, total int, filename string)
}

// DownloadResult lists what each column dispatched
type DownloadResult struct {
	Column  string
	Dir     string
	Files   []string
	Archive string
}

// Download saves the files referenced by the output columns, one
// subdirectory per column
func (a *App) Download(ctx context.Context, w *Workspace, opts DownloadOptions) ([]DownloadResult, error) {
	dir := opts.Dir
	if dir == "" {
		dir = a.Config.Assets.DownloadDir
	}

	rows := w.Store.Rows()
	cols, err := downloadColumns(w.Store.OutputColumns(), rows, opts.Columns)
	if err != nil {
		return nil, err
	}

	dispatcher := &assets.FileDispatcher{}
	var results []DownloadResult
	for _, col := range cols {
		urls := assets.CollectURLs(col.Key, rows)
		if len(urls) == 0 {
			a.Log.Infow("No file URLs in column", "column", col.Key)
			continue
		}

		colDir := filepath.Join(dir, fsutil.SafeFileName(col.Key, "column"))
		if err := assets.PrepareDir(colDir); err != nil {
			return results, err
		}
		dispatcher.Dir = colDir

		report, err := assets.BatchDownload(ctx, dispatcher, urls, assets.DownloadOptions{
			Delay:      a.Config.Assets.DownloadDelay,
			OnDispatch: opts.OnDispatch,
			Logger:     a.Log,
		})
		result := DownloadResult{Column: col.Key, Dir: colDir, Files: report.Filenames}
		if err != nil {
			return append(results, result), err
		}

		if opts.Archive {
			name := fsutil.SafeFileName(fmt.Sprintf("%s-%s", w.Project.DisplayName(), col.Key), "archive")
			archive, err := assets.Archive(colDir, name, report.Filenames, opts.Format)
			if err != nil {
				a.Log.Warnw("Skipping archive", "column", col.Key, "error", err)
			} else {
				result.Archive = archive
			}
		}
		results = append(results, result)
	}
	return results, nil
}

func downloadColumns(outputs []schema.OutputColumn, rows []table.Row, keys []string) ([]schema.OutputColumn, error) {
	if len(keys) == 0 {
		return assets.FileLikeColumns(outputs, rows), nil
	}
	byKey := make(map[string]schema.OutputColumn, len(outputs))
	for _, col := range outputs {
		byKey[col.Key] = col
	}
	var cols []schema.OutputColumn
	for _, key := range keys {
		col, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", errors.ErrUnknownColumn, key)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// Export writes the results CSV into dir and returns its path
func (a *App) Export(w *Workspace, dir, locale string) (string, error) {
	if locale == "" {
		locale = a.Config.Export.Locale
	}
	if err := fsutil.CreateDirIfNotExists(dir); err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}

	path := filepath.Join(dir, export.Filename(w.Project.DisplayName()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}
	if err := export.WriteCSV(f, w.Store, locale); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}
	return path, nil
}
