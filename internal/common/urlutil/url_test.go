package urlutil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFileURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://cdn.example.com/a.png", true},
		{"https://cdn.example.com/a.PNG?x-sig=abc", true},
		{" http://cdn.example.com/v/clip.mp4 ", true},
		{"https://cdn.example.com/page", false},
		{"https://cdn.example.com/page?file=a.png", false},
		{"ftp://cdn.example.com/a.png", false},
		{"a.png", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsFileURL(tt.in), tt.in)
	}
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, "jpeg", FileExtension("https://x.com/photo.JPEG"))
	assert.Equal(t, "", FileExtension("https://x.com/photo"))
	assert.Equal(t, "webp", GuessExtension("https://x.com/img?format=.webp", "bin"))
	assert.Equal(t, "bin", GuessExtension("https://x.com/img", "bin"))
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://example.com/x"))
	for _, in := range []string{"example.com/x", "file:///etc/passwd", "http://"} {
		assert.True(t, errors.Is(ValidateURL(in), apperrors.ErrInvalidURL), in)
	}
}

func TestGetFilenameFromURL(t *testing.T) {
	name, err := GetFilenameFromURL("https://x.com/dir/my%20file.pdf?dl=1")
	require.NoError(t, err)
	assert.Equal(t, "my file.pdf", name)

	_, err = GetFilenameFromURL("https://x.com/")
	assert.Error(t, err)
}

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ok.txt" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "token", r.Header.Get("X-Test"))
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "ok.txt")
	var reported int64
	err := DownloadFile(context.Background(), srv.URL+"/ok.txt", out, DownloadOptions{
		Headers:          map[string]string{"X-Test": "token"},
		ProgressCallback: func(done, _ int64) { reported = done },
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), reported)

	err = DownloadFile(context.Background(), srv.URL+"/missing", filepath.Join(dir, "missing"), DownloadOptions{})
	assert.True(t, errors.Is(err, apperrors.ErrDownloadFailed))
	assert.NoFileExists(t, filepath.Join(dir, "missing"))
}
