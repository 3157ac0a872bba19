// Package urlutil provides URL handling utilities: file-like URL detection,
// filename derivation and HTTP downloads.
package urlutil

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
)

// FileExtensions lists the media/document extensions treated as files
var FileExtensions = []string{
	"png", "jpg", "jpeg", "gif", "webp",
	"mp4", "mov", "webm",
	"pdf", "doc", "docx", "xls", "xlsx", "csv", "txt", "md",
}

var (
	fileExtRegex = regexp.MustCompile(`(?i)\.(` + strings.Join(FileExtensions, "|") + `)(\?|$)`)
	anyExtRegex  = regexp.MustCompile(`(?i)\.(` + strings.Join(FileExtensions, "|") + `)\b`)
	httpRegex    = regexp.MustCompile(`(?i)^https?://`)
)

// IsHTTPURL reports whether s is an absolute http(s) URL
func IsHTTPURL(s string) bool {
	return httpRegex.MatchString(strings.TrimSpace(s))
}

// IsFileURL reports whether s is an http(s) URL whose path ends in a known
// file extension. Query strings are ignored.
func IsFileURL(s string) bool {
	s = strings.TrimSpace(s)
	if !IsHTTPURL(s) {
		return false
	}
	parsedURL, err := url.Parse(s)
	if err != nil {
		return fileExtRegex.MatchString(s)
	}
	return fileExtRegex.MatchString(parsedURL.Path)
}

// FileExtension returns the known extension (lower case, without dot) at the
// end of the URL path, or "" when the path has none.
func FileExtension(rawURL string) string {
	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	match := fileExtRegex.FindStringSubmatch(parsedURL.Path)
	if match == nil {
		return ""
	}
	return strings.ToLower(match[1])
}

// GuessExtension looks for a known extension anywhere in the URL, including
// the query string, and falls back to the given default.
func GuessExtension(rawURL, fallback string) string {
	if ext := FileExtension(rawURL); ext != "" {
		return ext
	}
	if match := anyExtRegex.FindStringSubmatch(rawURL); match != nil {
		return strings.ToLower(match[1])
	}
	return fallback
}

// ValidateURL checks that rawURL is an absolute http(s) URL with a host
func ValidateURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidURL, err.Error())
	}

	if parsedURL.Scheme == "" {
		return fmt.Errorf("%w: missing scheme (http:// or https://)", errors.ErrInvalidURL)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme '%s'", errors.ErrInvalidURL, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%w: missing host", errors.ErrInvalidURL)
	}

	return nil
}

// GetFilenameFromURL extracts the final path segment of a URL
func GetFilenameFromURL(rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrInvalidURL, err.Error())
	}

	filename := path.Base(parsedURL.Path)
	if filename == "" || filename == "." || filename == "/" {
		return "", fmt.Errorf("%w: could not determine filename from URL", errors.ErrInvalidURL)
	}

	if unescaped, err := url.PathUnescape(filename); err == nil {
		filename = unescaped
	}
	return filename, nil
}
