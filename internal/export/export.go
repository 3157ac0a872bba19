// Package export renders a table as a CSV file that spreadsheet
// applications open with the right encoding.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
	"github.com/deploymenttheory/go-batch-runner/internal/table"
	"golang.org/x/text/language"
)

// BOM marks the output as UTF-8 for spreadsheet applications
const BOM = "\ufeff"

// Labels are the localized strings of the status column
type Labels struct {
	Status  string
	Success string
	Failed  string
}

var (
	supported = []language.Tag{language.English, language.Chinese}
	matcher   = language.NewMatcher(supported)
	labels    = []Labels{
		{Status: "Status", Success: "Success", Failed: "Failed"},
		{Status: "状态", Success: "成功", Failed: "失败"},
	}
)

// LabelsFor picks the labels best matching a BCP-47 locale. Unknown or
// malformed locales get English.
func LabelsFor(locale string) Labels {
	tag, err := language.Parse(locale)
	if err != nil {
		return labels[0]
	}
	_, index, _ := matcher.Match(tag)
	return labels[index]
}

// StatusLabel renders a row status. Only finished statuses are translated.
func (l Labels) StatusLabel(status table.Status) string {
	switch status {
	case table.StatusSuccess:
		return l.Success
	case table.StatusError:
		return l.Failed
	default:
		return string(status)
	}
}

// Filename returns the export file name for a project. The name is reduced
// to a single path element.
func Filename(projectName string) string {
	return fsutil.SafeFileName(projectName, "project") + "-results.csv"
}

// WriteCSV writes the BOM, a header and one record per row
func WriteCSV(w io.Writer, store *table.Store, locale string) error {
	l := LabelsFor(locale)
	inputs := store.InputColumns()
	outputs := store.OutputColumns()

	if _, err := io.WriteString(w, BOM); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}

	cw := csv.NewWriter(w)
	header := make([]string, 0, 1+len(inputs)+len(outputs))
	header = append(header, l.Status)
	for _, col := range inputs {
		header = append(header, col.DisplayLabel())
	}
	for _, col := range outputs {
		header = append(header, col.DisplayLabel())
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}

	for _, row := range store.Rows() {
		record := make([]string, 0, len(header))
		record = append(record, l.StatusLabel(row.Status))
		for _, col := range inputs {
			record = append(record, row.Value(col.Key))
		}
		for _, col := range outputs {
			record = append(record, row.Value(col.Key))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}
	return nil
}

// CSV returns the rendered export in memory
func CSV(store *table.Store, locale string) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, store, locale); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
