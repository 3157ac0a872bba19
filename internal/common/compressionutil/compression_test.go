package compression

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":      None,
		"none":  None,
		"gzip":  Gzip,
		".gz":   Gzip,
		"XZ":    XZ,
		"bzip2": BZIP2,
		"tbz2":  BZIP2,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("zip")
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedCompression))
}

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("row,value\n"), 200)
	for _, format := range []Format{None, Gzip, XZ, BZIP2} {
		t.Run(string(format)+"_format", func(t *testing.T) {
			packed, err := Compress(data, format)
			require.NoError(t, err)
			if format != None {
				assert.Less(t, len(packed), len(data))
			}

			unpacked, err := Decompress(packed, format)
			require.NoError(t, err)
			assert.Equal(t, data, unpacked)
		})
	}
}

func TestDecompressGarbage(t *testing.T) {
	_, err := Decompress([]byte("not compressed"), XZ)
	assert.True(t, errors.Is(err, apperrors.ErrCompressionFailed))
}

func TestTarFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("alpha"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("beta"), 0644))

	dst := filepath.Join(dir, "out.tar"+BZIP2.Extension())
	require.NoError(t, TarFiles(dst, []string{a, b}, BZIP2))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	r, err := NewReader(f, BZIP2)
	require.NoError(t, err)

	contents := map[string]string{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		contents[hdr.Name] = string(body)
	}
	assert.Equal(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"}, contents)
}
