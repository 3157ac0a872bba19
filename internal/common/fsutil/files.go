// Package fsutil provides the file and directory helpers shared by the table,
// snapshot and asset packages.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileExists checks if a regular file exists at the given path
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// ReadFile reads the entire content of a file
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes data to a file, creating the parent directory if needed.
// The data is written to a sibling temp file first and renamed into place so
// readers never observe a partially written file.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := CreateDirIfNotExists(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close file %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move file into place %s: %w", path, err)
	}
	return nil
}

// DeleteFile removes a file; a missing file is not an error
func DeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}
	return nil
}

// SafeFileName turns name into a single path element. Path separators and
// ".." sequences become "_", so the result cannot leave the directory it is
// joined to. An empty result becomes fallback.
func SafeFileName(name, fallback string) string {
	name = strings.NewReplacer("/", "_", "\\", "_", "\x00", "_").Replace(strings.TrimSpace(name))
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", "_")
	}
	if name == "" || name == "." {
		return fallback
	}
	return name
}

// GetExtension returns the file extension with the dot (e.g., ".txt")
func GetExtension(path string) string {
	return filepath.Ext(path)
}
