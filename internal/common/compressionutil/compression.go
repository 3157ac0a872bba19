package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"
)

// Format identifies a stream compression format
type Format string

const (
	None  Format = ""
	Gzip  Format = "gz"
	XZ    Format = "xz"
	BZIP2 Format = "bz2"
)

// ParseFormat maps a user supplied name or file suffix to a Format
func ParseFormat(name string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(name), ".") {
	case "", "none":
		return None, nil
	case "gz", "gzip", "tgz":
		return Gzip, nil
	case "xz", "txz":
		return XZ, nil
	case "bz2", "bzip2", "tbz2":
		return BZIP2, nil
	default:
		return None, fmt.Errorf("%w: %s", errors.ErrUnsupportedCompression, name)
	}
}

// Extension returns the file suffix for the format, including the dot
func (f Format) Extension() string {
	if f == None {
		return ""
	}
	return "." + string(f)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w with a compressing writer. Closing the returned writer
// flushes the compressed stream but does not close w.
func NewWriter(w io.Writer, format Format) (io.WriteCloser, error) {
	switch format {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case XZ:
		xzWriter, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
		}
		return xzWriter, nil
	case BZIP2:
		bzip2Writer, err := bzip2.NewWriter(w, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
		}
		return bzip2Writer, nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedCompression, format)
	}
}

// NewReader wraps r with a decompressing reader
func NewReader(r io.Reader, format Format) (io.Reader, error) {
	switch format {
	case None:
		return r, nil
	case Gzip:
		gzipReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
		}
		return gzipReader, nil
	case XZ:
		xzReader, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
		}
		return xzReader, nil
	case BZIP2:
		bzip2Reader, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
		}
		return bzip2Reader, nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedCompression, format)
	}
}

// Compress compresses data in memory
func Compress(data []byte, format Format) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, format)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
	}
	return buf.Bytes(), nil
}

// Decompress decompresses data in memory
func Decompress(data []byte, format Format) ([]byte, error) {
	r, err := NewReader(bytes.NewReader(data), format)
	if err != nil {
		return nil, err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
	}
	return out, nil
}
