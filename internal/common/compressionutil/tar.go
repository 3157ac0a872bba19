package compression

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
)

// TarFiles writes the given files into a compressed tar archive at dst.
// Entries are stored flat under their base names.
func TarFiles(dst string, files []string, format Format) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}
	defer out.Close()

	cw, err := NewWriter(out, format)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(cw)
	for _, file := range files {
		if err := addTarEntry(tw, file); err != nil {
			tw.Close()
			cw.Close()
			return err
		}
	}

	if err := tw.Close(); err != nil {
		cw.Close()
		return fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
	}
	return out.Close()
}

func addTarEntry(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
	}
	header.Name = filepath.Base(path)

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
	}
	return nil
}
