package relay

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, upstream http.HandlerFunc) (*httptest.Server, string) {
	t.Helper()
	up := httptest.NewServer(upstream)
	t.Cleanup(up.Close)

	dir := t.TempDir()
	s := NewServer(ServerConfig{
		RunURL:     up.URL + "/run",
		UploadURL:  up.URL + "/upload",
		StorageDir: dir,
	}, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, dir
}

func postJSON(t *testing.T, url, auth, body string) (int, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestServerRun(t *testing.T) {
	var upstreamAuth string
	var upstreamBody map[string]interface{}
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		upstreamAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&upstreamBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":"{\"output\":\"ok\"}","msg":"Success"}`))
	})

	status, body := postJSON(t, srv.URL+"/api/proxy/run", "Bearer tok", `{"workflow_id":"wf","parameters":{"n":12345678901234567}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Bearer tok", upstreamAuth)
	assert.Equal(t, "wf", upstreamBody["workflow_id"])
	assert.Equal(t, map[string]interface{}{"output": "ok"}, body["data"])
	assert.Equal(t, `{"output":"ok"}`, body["raw_data"])
}

func TestServerRunPlainStringData(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"data":"hello"}`))
	})

	status, body := postJSON(t, srv.URL+"/api/proxy/run", "Bearer tok", `{"workflow_id":"wf"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello", body["data"])
	assert.Equal(t, "hello", body["raw_data"])
}

func TestServerRunRejects(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	})

	status, body := postJSON(t, srv.URL+"/api/proxy/run", "", `{"workflow_id":"wf"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Missing Authorization", body["error"])

	status, body = postJSON(t, srv.URL+"/api/proxy/run", "Bearer tok", `{"parameters":{}}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing workflow_id", body["error"])

	status, _ = postJSON(t, srv.URL+"/api/proxy/run", "Bearer tok", `{`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServerRunUpstreamError(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":4013,"msg":"rate limited"}`))
	})

	status, body := postJSON(t, srv.URL+"/api/proxy/run", "Bearer tok", `{"workflow_id":"wf"}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate limited", body["msg"])
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestServerProxyUpload(t *testing.T) {
	var gotFile []byte
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("file")
		if err == nil {
			gotFile, _ = io.ReadAll(f)
		}
		_, _ = w.Write([]byte(`{"code":0,"data":{"id":"file-1"}}`))
	})

	body, contentType := multipartBody(t, "file", "a.png", []byte("png-bytes"))
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/proxy/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte("png-bytes"), gotFile)
	assert.Equal(t, map[string]interface{}{"id": "file-1"}, out["data"])
}

func TestServerProxyUploadAPIError(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":700012006}`))
	})

	body, contentType := multipartBody(t, "file", "a.png", []byte("x"))
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/proxy/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Upload failed", out["msg"])
}

func TestServerStore(t *testing.T) {
	srv, dir := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	body, contentType := multipartBody(t, "file", "photo 1.png", []byte("img"))
	resp, err := http.Post(srv.URL+"/api/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, strings.HasPrefix(out["url"], srv.URL+"/files/"))
	assert.True(t, strings.HasSuffix(out["url"], "photo%201.png"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)

	get, err := http.Get(out["url"])
	require.NoError(t, err)
	defer get.Body.Close()
	served, _ := io.ReadAll(get.Body)
	assert.Equal(t, []byte("img"), served)
}
