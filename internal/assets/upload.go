package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/deploymenttheory/go-batch-runner/internal/schema"
	"github.com/deploymenttheory/go-batch-runner/internal/table"
	"go.uber.org/zap"
)

// UploadOptions configures a batch upload
type UploadOptions struct {
	// OnProgress is called before each file with its 1-based position
	OnProgress func(current, total int, name string)
	// OnNotice is called for each file that could not be uploaded
	OnNotice func(name string, err error)
	Logger   *zap.SugaredLogger
}

// Placement records where an uploaded file landed
type Placement struct {
	File     string
	URL      string
	Row      int
	Appended bool
}

// UploadReport summarizes a batch upload
type UploadReport struct {
	Total     int
	Placed    []Placement
	Failed    map[string]error
	Cancelled bool
}

// BatchUpload uploads local files one at a time, in natural order of their
// base names, and writes each URL into the column: the first row whose cell
// is empty gets it, and a new row is appended when none is. The cell and its
// preview key are always set together. A file that fails is reported and
// skipped.
func BatchUpload(ctx context.Context, store *table.Store, storage Storage, columnKey string, paths []string, opts UploadOptions) (UploadReport, error) {
	log := logger.Get(opts.Logger)

	if err := requireFileInput(store, columnKey); err != nil {
		return UploadReport{}, err
	}

	release, err := store.Acquire()
	if err != nil {
		return UploadReport{}, err
	}
	defer release()

	files := append([]string(nil), paths...)
	sortByBaseName(files)

	report := UploadReport{Total: len(files), Failed: make(map[string]error)}
	for i, path := range files {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		name := filepath.Base(path)
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(files), name)
		}
		log.Infof("Uploading file %d/%d: %s", i+1, len(files), name)

		url, err := uploadOne(ctx, storage, path, name)
		if err != nil {
			report.Failed[path] = err
			log.Warnw("Upload failed", "file", path, "error", err)
			if opts.OnNotice != nil {
				opts.OnNotice(name, err)
			}
			continue
		}

		placement, err := place(store, columnKey, url)
		if err != nil {
			return report, err
		}
		placement.File = path
		report.Placed = append(report.Placed, placement)
	}

	return report, nil
}

// ExpandPaths replaces each directory in paths with the regular files
// directly inside it. Other paths pass through unchanged.
func ExpandPaths(paths []string) ([]string, error) {
	var out []string
	for _, path := range paths {
		if !fsutil.DirExists(path) {
			out = append(out, path)
			continue
		}
		files, err := fsutil.ListFiles(path, "")
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
		}
		out = append(out, files...)
	}
	return out, nil
}

func requireFileInput(store *table.Store, columnKey string) error {
	for _, col := range store.InputColumns() {
		if col.Key == columnKey {
			if col.Type != schema.TypeFile {
				return fmt.Errorf("%w: %s", errors.ErrNotFileColumn, columnKey)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", errors.ErrUnknownColumn, columnKey)
}

func sortByBaseName(paths []string) {
	names := make(map[string]string, len(paths))
	for _, p := range paths {
		names[p] = filepath.Base(p)
	}
	sortStable(paths, func(a, b string) bool {
		if names[a] == names[b] {
			return NaturalLess(a, b)
		}
		return NaturalLess(names[a], names[b])
	})
}

func uploadOne(ctx context.Context, storage Storage, path, name string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}
	return storage.Upload(ctx, name, data)
}

// place writes url into the first row with an empty cell, or a new row
func place(store *table.Store, columnKey, url string) (Placement, error) {
	values := map[string]string{columnKey: url}
	values[schema.PreviewKey(columnKey)] = url

	for i, row := range store.Rows() {
		if strings.TrimSpace(row.Value(columnKey)) == "" {
			if err := store.Apply(table.RowUpdate{Index: i, Values: values}); err != nil {
				return Placement{}, err
			}
			return Placement{URL: url, Row: i}, nil
		}
	}

	row := store.EmptyRow()
	for k, v := range values {
		row.Values[k] = v
	}
	store.Append(row)
	return Placement{URL: url, Row: store.Len() - 1, Appended: true}, nil
}
