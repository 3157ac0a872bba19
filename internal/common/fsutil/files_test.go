package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "Poster batch", want: "Poster batch"},
		{name: "Q3/Q4 posters", want: "Q3_Q4 posters"},
		{name: `a\b`, want: "a_b"},
		{name: "../../etc/x", want: "____etc_x"},
		{name: "v1.2", want: "v1.2"},
		{name: "...", want: "_."},
		{name: "  ", want: "fallback"},
		{name: ".", want: "fallback"},
	}
	for _, tt := range tests {
		got := SafeFileName(tt.name, "fallback")
		assert.Equal(t, tt.want, got, tt.name)
		assert.Equal(t, got, filepath.Base(got), tt.name)
	}
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.csv", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0755))

	all, err := ListFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	csvs, err := ListFiles(dir, "*.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")}, csvs)

	_, err = ListFiles(filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
}

func TestWriteFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "table.json")
	require.NoError(t, WriteFile(path, []byte("{}"), 0600))

	data, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
	assert.Equal(t, ".json", GetExtension(path))
}
