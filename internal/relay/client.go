// Package relay forwards workflow invocations to the external workflow API.
// The client side is used by the batch runner; the server side is the proxy
// the client talks to by default.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Relay invokes a workflow on behalf of the caller
type Relay interface {
	Run(ctx context.Context, token string, req RunRequest) (*RunResponse, error)
}

// RunRequest is the body of a relay call
type RunRequest struct {
	WorkflowID string                 `json:"workflow_id"`
	Parameters map[string]interface{} `json:"parameters"`
}

// RunResponse is the reply of a relay call. Data is kept raw because the
// upstream API returns it either as an object or as a JSON encoded string.
type RunResponse struct {
	Code    *int            `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Msg     string          `json:"msg,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	RawData string          `json:"raw_data,omitempty"`
}

// Succeeded reports whether the call returned code 0 with a data payload
func (r *RunResponse) Succeeded() bool {
	if r == nil || r.Code == nil || *r.Code != 0 {
		return false
	}
	data := bytes.TrimSpace(r.Data)
	return len(data) > 0 && !bytes.Equal(data, []byte("null"))
}

// ErrorMessage returns the message the API gave for a failed call, or ""
func (r *RunResponse) ErrorMessage() string {
	if r == nil {
		return ""
	}
	for _, msg := range []string{r.Msg, r.Message, r.Error} {
		if strings.TrimSpace(msg) != "" {
			return msg
		}
	}
	return ""
}

// Client calls a relay endpoint over HTTP
type Client struct {
	http   *resty.Client
	url    string
	logger *zap.SugaredLogger
}

// NewClient creates a relay client for url. A zero timeout keeps transport
// defaults. Calls are never retried automatically; re-running failed rows
// is left to the user.
func NewClient(url string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	httpClient := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if timeout > 0 {
		httpClient.SetTimeout(timeout)
	}

	return &Client{
		http:   httpClient,
		url:    url,
		logger: logger.Get(log),
	}
}

// Run posts the request with the bearer token. A reply body that decodes is
// returned whatever the HTTP status, so that API error messages reach the
// row; transport failures and undecodable bodies are errors.
func (c *Client) Run(ctx context.Context, token string, req RunRequest) (*RunResponse, error) {
	if req.Parameters == nil {
		req.Parameters = map[string]interface{}{}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(req).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrRelayFailed, err.Error())
	}

	var out RunResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: HTTP %d: unreadable response body", errors.ErrRelayFailed, resp.StatusCode())
	}

	c.logger.Debugw("Relay call completed",
		"workflow_id", req.WorkflowID,
		"status", resp.StatusCode(),
		"succeeded", out.Succeeded(),
	)
	return &out, nil
}
