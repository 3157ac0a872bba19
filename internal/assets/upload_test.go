package assets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/schema"
	"github.com/deploymenttheory/go-batch-runner/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var uploadColumns = []schema.InputColumn{
	{Key: "prompt", Label: "Prompt", Type: schema.TypeText},
	{Key: "image", Label: "Image", Type: schema.TypeFile},
}

type fakeStorage struct {
	uploaded []string
	fail     map[string]bool
}

func (f *fakeStorage) Upload(_ context.Context, name string, _ []byte) (string, error) {
	if f.fail[name] {
		return "", fmt.Errorf("%w: %s", apperrors.ErrUploadFailed, name)
	}
	f.uploaded = append(f.uploaded, name)
	return "https://cdn.example.com/" + name, nil
}

func writeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("data-"+n), 0644))
		paths = append(paths, p)
	}
	return paths
}

func TestBatchUploadPlacesInNaturalOrder(t *testing.T) {
	s := table.NewStore(uploadColumns, nil)
	s.AddEmptyRow()
	s.AddEmptyRow()
	require.NoError(t, s.SetCell(0, "image", "https://cdn.example.com/existing.png"))
	require.NoError(t, s.SetCell(1, "prompt", "keep me"))

	storage := &fakeStorage{}
	var progress []string
	report, err := BatchUpload(context.Background(), s, storage, "image",
		writeFiles(t, "img10.png", "img2.png", "img1.png"),
		UploadOptions{OnProgress: func(cur, total int, name string) {
			progress = append(progress, fmt.Sprintf("%d/%d %s", cur, total, name))
		}})
	require.NoError(t, err)

	assert.Equal(t, []string{"img1.png", "img2.png", "img10.png"}, storage.uploaded)
	assert.Equal(t, []string{"1/3 img1.png", "2/3 img2.png", "3/3 img10.png"}, progress)
	require.Len(t, report.Placed, 3)
	assert.False(t, report.Placed[0].Appended)
	assert.True(t, report.Placed[1].Appended)

	rows := s.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, "https://cdn.example.com/existing.png", rows[0].Value("image"))
	assert.Equal(t, "keep me", rows[1].Value("prompt"))
	for i, name := range []string{"img1.png", "img2.png", "img10.png"} {
		row := rows[i+1]
		assert.Equal(t, "https://cdn.example.com/"+name, row.Value("image"))
		assert.Equal(t, row.Value("image"), row.Value("_url_image"))
	}
	assert.False(t, s.Busy())
}

func TestBatchUploadContinuesAfterFailure(t *testing.T) {
	s := table.NewStore(uploadColumns, nil)
	storage := &fakeStorage{fail: map[string]bool{"b.png": true}}

	var notices []string
	report, err := BatchUpload(context.Background(), s, storage, "image",
		writeFiles(t, "a.png", "b.png", "c.png"),
		UploadOptions{OnNotice: func(name string, err error) { notices = append(notices, name) }})
	require.NoError(t, err)

	assert.Equal(t, []string{"b.png"}, notices)
	assert.Len(t, report.Failed, 1)
	assert.Len(t, report.Placed, 2)
	assert.Equal(t, 2, s.Len())
}

func TestBatchUploadRejects(t *testing.T) {
	s := table.NewStore(uploadColumns, nil)

	_, err := BatchUpload(context.Background(), s, &fakeStorage{}, "prompt", nil, UploadOptions{})
	assert.True(t, errors.Is(err, apperrors.ErrNotFileColumn))

	_, err = BatchUpload(context.Background(), s, &fakeStorage{}, "nope", nil, UploadOptions{})
	assert.True(t, errors.Is(err, apperrors.ErrUnknownColumn))

	release, err := s.Acquire()
	require.NoError(t, err)
	defer release()
	_, err = BatchUpload(context.Background(), s, &fakeStorage{}, "image", nil, UploadOptions{})
	assert.True(t, errors.Is(err, apperrors.ErrRunInProgress))
}

func TestHTTPStorage(t *testing.T) {
	var gotType, gotName, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		f, fh, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.Close()
		gotName = fh.Filename
		gotType = fh.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		if fh.Filename == "empty.png" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"url":"https://blob.example.com/` + fh.Filename + `"}`))
	}))
	defer srv.Close()

	png := []byte("\x89PNG\r\n\x1a\n0000")
	url, err := NewHTTPStorage(srv.URL, "tok", 0).Upload(context.Background(), "a.png", png)
	require.NoError(t, err)
	assert.Equal(t, "https://blob.example.com/a.png", url)
	assert.Equal(t, "a.png", gotName)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, "Bearer tok", gotAuth)

	_, err = NewHTTPStorage(srv.URL, "", 0).Upload(context.Background(), "empty.png", png)
	assert.True(t, errors.Is(err, apperrors.ErrNoUploadURL))
}

func TestHTTPStorageErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"disk full"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPStorage(srv.URL, "", 0).Upload(context.Background(), "a.txt", []byte("x"))
	assert.True(t, errors.Is(err, apperrors.ErrUploadFailed))
	assert.Contains(t, err.Error(), "disk full")
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "application/octet-stream", DetectContentType(nil))
	assert.Equal(t, "image/png", DetectContentType([]byte("\x89PNG\r\n\x1a\n0000")))
	assert.Equal(t, "application/x-7z-compressed", DetectContentType([]byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C, 0, 4}))
}

func TestExpandPaths(t *testing.T) {
	files := writeFiles(t, "b.png", "a.png")
	dir := filepath.Dir(files[0])
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	loose := filepath.Join(t.TempDir(), "loose.png")
	got, err := ExpandPaths([]string{loose, dir})
	require.NoError(t, err)
	assert.Equal(t, []string{loose, filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}, got)
}
