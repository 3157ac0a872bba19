package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRun(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":"{\"output\":\"ok\"}"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, nil)
	resp, err := c.Run(context.Background(), "tok", RunRequest{WorkflowID: "wf"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, map[string]interface{}{"workflow_id": "wf", "parameters": map[string]interface{}{}}, gotBody)
	assert.True(t, resp.Succeeded())
	assert.JSONEq(t, `"{\"output\":\"ok\"}"`, string(resp.Data))
}

func TestClientRunErrorBodies(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "api code", status: http.StatusOK, body: `{"code":4000,"msg":"bad workflow"}`, wantMsg: "bad workflow"},
		{name: "message field", status: http.StatusOK, body: `{"code":1,"message":"quota"}`, wantMsg: "quota"},
		{name: "proxy error", status: http.StatusUnauthorized, body: `{"error":"Missing Authorization"}`, wantMsg: "Missing Authorization"},
		{name: "null data", status: http.StatusOK, body: `{"code":0,"data":null}`, wantMsg: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			resp, err := NewClient(srv.URL, 0, nil).Run(context.Background(), "tok", RunRequest{WorkflowID: "wf"})
			require.NoError(t, err)
			assert.False(t, resp.Succeeded())
			assert.Equal(t, tt.wantMsg, resp.ErrorMessage())
		})
	}
}

func TestClientRunTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0, nil).Run(context.Background(), "tok", RunRequest{WorkflowID: "wf"})
	assert.True(t, errors.Is(err, apperrors.ErrRelayFailed))

	srv.Close()
	_, err = NewClient(srv.URL, 0, nil).Run(context.Background(), "tok", RunRequest{WorkflowID: "wf"})
	assert.True(t, errors.Is(err, apperrors.ErrRelayFailed))
}
