// Package schema holds the column model of a batch table and infers it from
// a sample workflow request and response.
package schema

import (
	"fmt"
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
)

// ColumnType is the value kind a column holds
type ColumnType string

const (
	TypeText ColumnType = "text"
	TypeFile ColumnType = "file"
	TypeLink ColumnType = "link"
)

// NormalizeType maps a persisted type tag onto a ColumnType. Older schemas
// carried the media kinds image, video and media, which are all files now.
// Unknown tags read as text.
func NormalizeType(tag string) ColumnType {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "file", "image", "video", "media":
		return TypeFile
	case "link":
		return TypeLink
	default:
		return TypeText
	}
}

// InputColumn is a workflow parameter fed from a table cell
type InputColumn struct {
	Key   string     `json:"key" mapstructure:"key"`
	Label string     `json:"label" mapstructure:"label"`
	Type  ColumnType `json:"type" mapstructure:"type"`
}

// DisplayLabel returns the label, or the key when the column is unlabeled
func (c InputColumn) DisplayLabel() string {
	if strings.TrimSpace(c.Label) != "" {
		return c.Label
	}
	return c.Key
}

// OutputColumn is a value extracted from the workflow result at Path and
// stored in the row under Key
type OutputColumn struct {
	Key   string     `json:"key" mapstructure:"key"`
	Path  string     `json:"path" mapstructure:"path"`
	Label string     `json:"label" mapstructure:"label"`
	Type  ColumnType `json:"type" mapstructure:"type"`
}

// DisplayLabel returns the label, or the key when the column is unlabeled
func (c OutputColumn) DisplayLabel() string {
	if strings.TrimSpace(c.Label) != "" {
		return c.Label
	}
	return c.Key
}

// KeyForPath derives an output column key from its result path
func KeyForPath(path string) string {
	return strings.ReplaceAll(path, ".", "_")
}

// NormalizeInputColumns rewrites legacy type tags in place. Input columns
// are either text or file.
func NormalizeInputColumns(cols []InputColumn) []InputColumn {
	for i := range cols {
		t := NormalizeType(string(cols[i].Type))
		if t == TypeLink {
			t = TypeText
		}
		cols[i].Type = t
	}
	return cols
}

// NormalizeOutputColumns rewrites legacy type tags in place and fills in
// missing keys from paths.
func NormalizeOutputColumns(cols []OutputColumn) []OutputColumn {
	for i := range cols {
		cols[i].Type = NormalizeType(string(cols[i].Type))
		if cols[i].Key == "" && cols[i].Path != "" {
			cols[i].Key = KeyForPath(cols[i].Path)
		}
		if cols[i].Path == "" {
			cols[i].Path = cols[i].Key
		}
	}
	return cols
}

// Validate checks that keys are present and unique across input and output
// columns, since both share one row namespace.
func Validate(inputs []InputColumn, outputs []OutputColumn) []error {
	var errs []error
	seen := make(map[string]string)

	check := func(kind string, i int, key string) {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Errorf("%w: %s column %d has an empty key", errors.ErrInvalidSchema, kind, i+1))
			return
		}
		if strings.HasPrefix(key, PreviewKeyPrefix) {
			errs = append(errs, fmt.Errorf("%w: %s column key %q uses the reserved prefix %q", errors.ErrInvalidSchema, kind, key, PreviewKeyPrefix))
		}
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("%w: %s column key %q duplicates a %s column", errors.ErrInvalidSchema, kind, key, prev))
			return
		}
		seen[key] = kind
	}

	for i, col := range inputs {
		check("input", i, col.Key)
	}
	for i, col := range outputs {
		check("output", i, col.Key)
	}
	return errs
}

// PreviewKeyPrefix prefixes the hidden row keys that remember a previewable
// URL next to the stored file identifier of a file column.
const PreviewKeyPrefix = "_url_"

// PreviewKey returns the hidden preview key for a file column
func PreviewKey(columnKey string) string {
	return PreviewKeyPrefix + columnKey
}
