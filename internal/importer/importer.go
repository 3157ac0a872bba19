// Package importer turns pasted tab separated text into table rows.
package importer

import (
	"regexp"
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/schema"
	"github.com/deploymenttheory/go-batch-runner/internal/table"
)

var lineBreak = regexp.MustCompile(`\r\n|\n|\r`)

// Result reports what an import did
type Result struct {
	// Handled is false when the text was left alone (single line paste)
	Handled        bool
	Imported       int
	HeaderFiltered bool
	Filled         int // existing empty rows that were overwritten
	Appended       int
}

// Parse splits text into rows mapped positionally onto the input columns.
// Blank lines are dropped, cells are trimmed, surplus cells are ignored. A
// first row naming every column by key or label is dropped as a header.
func Parse(text string, inputs []schema.InputColumn) (rows []map[string]string, headerFiltered bool) {
	for _, line := range lineBreak.Split(text, -1) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, "\t")
		values := make(map[string]string, len(inputs))
		for i, col := range inputs {
			if i < len(cells) {
				values[col.Key] = strings.TrimSpace(cells[i])
			}
		}
		rows = append(rows, values)
	}

	if len(rows) > 0 && len(inputs) > 0 && isHeader(rows[0], inputs) {
		return rows[1:], true
	}
	return rows, false
}

func isHeader(values map[string]string, inputs []schema.InputColumn) bool {
	for _, col := range inputs {
		cell := strings.ToLower(strings.TrimSpace(values[col.Key]))
		if cell != strings.ToLower(col.Key) && cell != strings.ToLower(strings.TrimSpace(col.Label)) {
			return false
		}
	}
	return true
}

// Import pastes text into store. Text without a line break is not handled.
// Incoming rows first replace existing rows whose inputs are all blank, in
// order, and the rest are appended. Importing into a busy table fails with
// ErrRunInProgress.
func Import(text string, store *table.Store) (Result, error) {
	if !strings.ContainsAny(text, "\r\n") {
		return Result{}, nil
	}
	if store.Busy() {
		return Result{}, errors.ErrRunInProgress
	}

	inputs := store.InputColumns()
	parsed, headerFiltered := Parse(text, inputs)
	result := Result{Handled: true, HeaderFiltered: headerFiltered}
	if len(parsed) == 0 {
		return result, nil
	}

	var empty []int
	for i, row := range store.Rows() {
		if row.InputsEmpty(inputs) {
			empty = append(empty, i)
		}
	}

	next := 0
	for ; next < len(parsed) && next < len(empty); next++ {
		if err := store.Replace(empty[next], newRow(store, parsed[next])); err != nil {
			return result, err
		}
		result.Filled++
	}

	var rest []table.Row
	for ; next < len(parsed); next++ {
		rest = append(rest, newRow(store, parsed[next]))
	}
	store.Append(rest...)
	result.Appended = len(rest)

	result.Imported = result.Filled + result.Appended
	return result, nil
}

func newRow(store *table.Store, values map[string]string) table.Row {
	row := store.EmptyRow()
	for k, v := range values {
		row.Values[k] = v
	}
	return row
}
