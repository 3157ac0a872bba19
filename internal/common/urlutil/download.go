package urlutil

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
)

// DownloadOptions represents options for downloading files
type DownloadOptions struct {
	// HTTP timeout (default: 30s)
	Timeout time.Duration

	// HTTP headers to send with the request
	Headers map[string]string

	// Progress callback (receives bytes downloaded and total size)
	ProgressCallback func(bytesDownloaded, totalBytes int64)
}

// DefaultTimeout bounds a single download
const DefaultTimeout = 30 * time.Second

// DownloadFile downloads sourceURL to outputPath
func DownloadFile(ctx context.Context, sourceURL, outputPath string, options DownloadOptions) error {
	if err := ValidateURL(sourceURL); err != nil {
		return err
	}

	if err := fsutil.CreateDirIfNotExists(filepath.Dir(outputPath)); err != nil {
		return fmt.Errorf("%w: failed to create output directory: %s", errors.ErrFileWriteError, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %s", errors.ErrInvalidURL, err.Error())
	}
	for key, value := range options.Headers {
		req.Header.Add(key, value)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "go-batch-runner/1.0")
	}

	resp, err := NewHTTPClient(options.Timeout).Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrDownloadFailed, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP status %d", errors.ErrDownloadFailed, resp.StatusCode)
	}

	outputFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}
	defer outputFile.Close()

	var writer io.Writer = outputFile
	if options.ProgressCallback != nil && resp.ContentLength > 0 {
		writer = &progressWriter{
			Writer:   outputFile,
			FileSize: resp.ContentLength,
			Callback: options.ProgressCallback,
		}
	}

	if _, err := io.Copy(writer, resp.Body); err != nil {
		// Remove partial download on error
		outputFile.Close()
		os.Remove(outputPath)
		return fmt.Errorf("%w: %s", errors.ErrDownloadFailed, err.Error())
	}

	return nil
}

// NewHTTPClient creates an HTTP client with transport defaults suitable for
// file transfers
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// progressWriter wraps an io.Writer to provide progress updates
type progressWriter struct {
	Writer         io.Writer
	FileSize       int64
	BytesProcessed int64
	Callback       func(int64, int64)
}

// Write implements io.Writer and updates progress
func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	if err != nil {
		return n, err
	}

	pw.BytesProcessed += int64(n)
	if pw.Callback != nil {
		pw.Callback(pw.BytesProcessed, pw.FileSize)
	}

	return n, nil
}
