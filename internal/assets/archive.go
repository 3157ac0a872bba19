package assets

import (
	"fmt"
	"path/filepath"

	compression "github.com/deploymenttheory/go-batch-runner/internal/common/compressionutil"
	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
)

// Archive bundles the named files of dir into dir/<name>.tar[.gz|.xz|.bz2].
// Files that never arrived are left out. It returns the archive path.
func Archive(dir, name string, filenames []string, format compression.Format) (string, error) {
	var files []string
	for _, f := range filenames {
		path := filepath.Join(dir, f)
		if fsutil.FileExists(path) {
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w: no downloaded files to archive", errors.ErrFileNotFound)
	}

	dst := filepath.Join(dir, name+".tar"+format.Extension())
	if err := compression.TarFiles(dst, files, format); err != nil {
		return "", err
	}
	return dst, nil
}
