package project

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlProject = `name: Posters
workflowId: " 7391 "
inputSchema:
  - key: prompt
    label: Prompt
    type: text
  - key: ref
    label: Reference
    type: image
outputSchema:
  - key: media_cover
    path: media.cover
    label: Cover
    type: video
`

func TestFileProviderFetchYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "posters.yaml"), []byte(yamlProject), 0644))

	cfg, err := NewFileProvider(dir).Fetch(context.Background(), "posters")
	require.NoError(t, err)

	assert.Equal(t, "posters", cfg.ID)
	assert.Equal(t, "Posters", cfg.Name)
	assert.Equal(t, "7391", cfg.WorkflowID)
	assert.Equal(t, []schema.InputColumn{
		{Key: "prompt", Label: "Prompt", Type: schema.TypeText},
		{Key: "ref", Label: "Reference", Type: schema.TypeFile},
	}, cfg.InputSchema)
	assert.Equal(t, schema.TypeFile, cfg.OutputSchema[0].Type)
	assert.Empty(t, cfg.Validate())
}

func TestFileProviderSaveAndFetch(t *testing.T) {
	p := NewFileProvider(t.TempDir())
	in := &Config{
		ID:           "p1",
		Name:         "One",
		WorkflowID:   "wf",
		InputSchema:  []schema.InputColumn{{Key: "a", Label: "a", Type: schema.TypeText}},
		OutputSchema: []schema.OutputColumn{{Key: "out", Path: "out", Label: "out", Type: schema.TypeLink}},
		APIToken:     "tok",
	}
	path, err := p.Save(in)
	require.NoError(t, err)
	assert.Equal(t, "p1.json", filepath.Base(path))

	out, err := p.Fetch(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFileProviderNotFound(t *testing.T) {
	p := NewFileProvider(t.TempDir())
	for _, id := range []string{"missing", "../etc", ""} {
		_, err := p.Fetch(context.Background(), id)
		assert.True(t, errors.Is(err, apperrors.ErrProjectNotFound), id)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		InputSchema:  []schema.InputColumn{{Key: "a"}},
		OutputSchema: []schema.OutputColumn{{Key: "a", Path: "a"}},
	}
	errs := cfg.Validate()
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.True(t, errors.Is(err, apperrors.ErrProjectInvalid))
	}
	assert.True(t, errors.Is(errs[1], apperrors.ErrInvalidSchema))

	joined := Join(errs)
	assert.True(t, errors.Is(joined, apperrors.ErrProjectInvalid))
	assert.Nil(t, Join(nil))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "N", (&Config{ID: "i", Name: "N"}).DisplayName())
	assert.Equal(t, "i", (&Config{ID: "i"}).DisplayName())
	assert.Equal(t, "project", (&Config{}).DisplayName())
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/projects/p1":
			_, _ = w.Write([]byte(`{"id":"p1","name":"One","workflowId":"wf","apiToken":null,` +
				`"inputSchema":"[{\"key\":\"img\",\"label\":\"Img\",\"type\":\"media\"}]",` +
				`"outputSchema":[{"key":"answer","path":"answer","label":"Answer","type":"text"}]}`))
		case "/api/projects/broken":
			_, _ = w.Write([]byte(`{"id":"broken","workflowId":"wf","inputSchema":"not json","outputSchema":[]}`))
		case "/api/projects/denied":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"Forbidden"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Not found"}`))
		}
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 0)

	cfg, err := p.Fetch(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "wf", cfg.WorkflowID)
	assert.Empty(t, cfg.APIToken)
	assert.Equal(t, []schema.InputColumn{{Key: "img", Label: "Img", Type: schema.TypeFile}}, cfg.InputSchema)
	assert.Equal(t, "answer", cfg.OutputSchema[0].Path)

	cfg, err = p.Fetch(context.Background(), "broken")
	require.NoError(t, err)
	assert.Empty(t, cfg.InputSchema)

	_, err = p.Fetch(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperrors.ErrProjectNotFound))

	_, err = p.Fetch(context.Background(), "denied")
	assert.True(t, errors.Is(err, apperrors.ErrProjectNotFound))
	assert.Contains(t, err.Error(), "Forbidden")
}
