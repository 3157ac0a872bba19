// Package assets moves files in and out of a table: batch upload of local
// files into a file column, and batch download of file URLs held in an
// output column.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
)

// Storage stores a blob and returns a stable URL for it
type Storage interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// HTTPStorage uploads blobs as the "file" field of a multipart POST and
// expects {"url": "..."} back
type HTTPStorage struct {
	client *resty.Client
	url    string
}

// NewHTTPStorage creates a storage client for the upload endpoint at url.
// The token, when set, is sent as a bearer credential.
func NewHTTPStorage(url, token string, timeout time.Duration) *HTTPStorage {
	client := resty.New().
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if token != "" {
		client.SetAuthToken(token)
	}
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPStorage{client: client, url: url}
}

type uploadReply struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Upload sends data under the given file name
func (s *HTTPStorage) Upload(ctx context.Context, name string, data []byte) (string, error) {
	var reply uploadReply
	resp, err := s.client.R().
		SetContext(ctx).
		SetMultipartField("file", name, DetectContentType(data), bytes.NewReader(data)).
		SetResult(&reply).
		SetError(&reply).
		Post(s.url)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %s", errors.ErrUploadFailed, name, err.Error())
	}
	if resp.IsError() {
		msg := reply.Error
		if msg == "" {
			msg = resp.Status()
		}
		return "", fmt.Errorf("%w: %s: %s", errors.ErrUploadFailed, name, msg)
	}
	if strings.TrimSpace(reply.URL) == "" {
		return "", fmt.Errorf("%w: %s", errors.ErrNoUploadURL, name)
	}
	return reply.URL, nil
}

// DetectContentType sniffs the MIME type of data, using the broader
// detector when the standard sniffer gives up
func DetectContentType(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	head := data
	if len(head) > 3072 {
		head = head[:3072]
	}
	if mt := http.DetectContentType(head); mt != "application/octet-stream" {
		return mt
	}
	return mimetype.Detect(head).String()
}
