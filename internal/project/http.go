package project

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/go-resty/resty/v2"
)

// HTTPProvider fetches projects from GET <base>/api/projects/<id>
type HTTPProvider struct {
	client *resty.Client
}

// NewHTTPProvider creates a provider for the project service at baseURL
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPProvider{client: client}
}

// remoteConfig mirrors Config except that the service may return either
// schema as a JSON encoded string
type remoteConfig struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	WorkflowID   string          `json:"workflowId"`
	InputSchema  json.RawMessage `json:"inputSchema"`
	OutputSchema json.RawMessage `json:"outputSchema"`
	APIToken     *string         `json:"apiToken"`
	Error        string          `json:"error"`
}

// Fetch loads the project with the given id
func (p *HTTPProvider) Fetch(ctx context.Context, id string) (*Config, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		Get("/api/projects/" + url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrProjectNotFound, err.Error())
	}

	var remote remoteConfig
	decodeErr := json.Unmarshal(resp.Body(), &remote)

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", errors.ErrProjectNotFound, id)
	case resp.IsError():
		msg := remote.Error
		if msg == "" {
			msg = resp.Status()
		}
		return nil, fmt.Errorf("%w: %s", errors.ErrProjectNotFound, msg)
	case decodeErr != nil:
		return nil, fmt.Errorf("%w: %s", errors.ErrProjectInvalid, decodeErr.Error())
	}

	cfg := &Config{
		ID:         remote.ID,
		Name:       remote.Name,
		WorkflowID: remote.WorkflowID,
	}
	if cfg.ID == "" {
		cfg.ID = id
	}
	if remote.APIToken != nil {
		cfg.APIToken = *remote.APIToken
	}
	decodeSchema(remote.InputSchema, &cfg.InputSchema)
	decodeSchema(remote.OutputSchema, &cfg.OutputSchema)

	cfg.Normalize()
	return cfg, nil
}

// decodeSchema accepts an array or an array encoded as a string. Anything
// unreadable leaves the schema empty.
func decodeSchema(raw json.RawMessage, v interface{}) {
	if len(raw) == 0 {
		return
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}
	_ = json.Unmarshal(raw, v)
}
