package assets

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
	"github.com/deploymenttheory/go-batch-runner/internal/common/urlutil"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/deploymenttheory/go-batch-runner/internal/schema"
	"github.com/deploymenttheory/go-batch-runner/internal/table"
	"go.uber.org/zap"
)

// DefaultDownloadDelay paces consecutive download dispatches
const DefaultDownloadDelay = time.Second

// Dispatcher starts the download of one URL under a file name. Completion
// is not observable: a nil error only means the download was handed off.
type Dispatcher interface {
	Dispatch(ctx context.Context, url, filename string) error
}

// FileDispatcher saves each URL into Dir
type FileDispatcher struct {
	Dir     string
	Options urlutil.DownloadOptions
}

// Dispatch downloads url to Dir/filename
func (d *FileDispatcher) Dispatch(ctx context.Context, url, filename string) error {
	return urlutil.DownloadFile(ctx, url, filepath.Join(d.Dir, filename), d.Options)
}

// IsFileLike reports whether an output column holds files: it is typed
// file, or more than one row holds a file-like URL in it
func IsFileLike(col schema.OutputColumn, rows []table.Row) bool {
	if col.Type == schema.TypeFile {
		return true
	}
	n := 0
	for _, row := range rows {
		if urlutil.IsFileURL(row.Value(col.Key)) {
			n++
			if n > 1 {
				return true
			}
		}
	}
	return false
}

// FileLikeColumns returns the output columns that hold files
func FileLikeColumns(outputs []schema.OutputColumn, rows []table.Row) []schema.OutputColumn {
	var cols []schema.OutputColumn
	for _, col := range outputs {
		if IsFileLike(col, rows) {
			cols = append(cols, col)
		}
	}
	return cols
}

// CollectURLs returns the http(s) URLs of a column in row order
func CollectURLs(columnKey string, rows []table.Row) []string {
	var urls []string
	for _, row := range rows {
		v := strings.TrimSpace(row.Value(columnKey))
		if urlutil.IsHTTPURL(v) {
			urls = append(urls, v)
		}
	}
	return urls
}

// DownloadName derives the file name for the index-th URL: its last path
// segment when that carries a known extension, else file_NN.<ext>
func DownloadName(rawURL string, index int) string {
	if urlutil.FileExtension(rawURL) != "" {
		if name, err := urlutil.GetFilenameFromURL(rawURL); err == nil && safeName(name) {
			return name
		}
	}
	return syntheticName(rawURL, index)
}

func syntheticName(rawURL string, index int) string {
	return fmt.Sprintf("file_%02d.%s", index+1, urlutil.GuessExtension(rawURL, "bin"))
}

func safeName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && name != "." && name != ".."
}

// DownloadOptions configures a batch download
type DownloadOptions struct {
	// Delay between dispatches; 0 dispatches back to back
	Delay time.Duration
	// OnDispatch is called before each dispatch with its 1-based position
	OnDispatch func(current, total int, filename string)
	Logger     *zap.SugaredLogger
}

// DownloadReport lists what was dispatched
type DownloadReport struct {
	Filenames []string
}

// BatchDownload dispatches every URL in order, Delay apart. Individual
// dispatch failures are logged and not reported; the returned error only
// covers the loop as a whole.
func BatchDownload(ctx context.Context, d Dispatcher, urls []string, opts DownloadOptions) (DownloadReport, error) {
	log := logger.Get(opts.Logger)
	var report DownloadReport

	used := make(map[string]bool, len(urls))
	for i, u := range urls {
		if i > 0 && opts.Delay > 0 {
			timer := time.NewTimer(opts.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return report, fmt.Errorf("%w: %s", errors.ErrDownloadFailed, ctx.Err().Error())
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return report, fmt.Errorf("%w: %s", errors.ErrDownloadFailed, ctx.Err().Error())
		}

		name := DownloadName(u, i)
		if used[name] {
			name = syntheticName(u, i)
		}
		used[name] = true

		if opts.OnDispatch != nil {
			opts.OnDispatch(i+1, len(urls), name)
		}
		if err := d.Dispatch(ctx, u, name); err != nil {
			log.Warnw("Download dispatch failed", "url", u, "file", name, "error", err)
		}
		report.Filenames = append(report.Filenames, name)
	}

	return report, nil
}

// PrepareDir makes sure the download directory exists
func PrepareDir(dir string) error {
	if err := fsutil.CreateDirIfNotExists(dir); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrDownloadFailed, err.Error())
	}
	return nil
}
