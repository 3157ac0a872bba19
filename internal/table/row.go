// Package table implements the row store: an ordered list of rows holding
// one value per schema column plus the row's run status.
package table

import (
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/schema"
)

// Status is the run state of a row
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Row is one record of the table. A key missing from Values is undefined,
// which is distinct from an empty string.
type Row struct {
	Status       Status            `json:"status"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Values       map[string]string `json:"values"`
}

// NewRow returns an idle row with an empty value for every column
func NewRow(inputs []schema.InputColumn, outputs []schema.OutputColumn) Row {
	row := Row{Status: StatusIdle, Values: make(map[string]string, len(inputs)+len(outputs))}
	for _, col := range inputs {
		row.Values[col.Key] = ""
	}
	for _, col := range outputs {
		row.Values[col.Key] = ""
	}
	return row
}

// Get returns the value stored under key and whether it is defined
func (r Row) Get(key string) (string, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// Value returns the value stored under key, or "" when undefined
func (r Row) Value(key string) string {
	return r.Values[key]
}

// Clone returns a deep copy of the row
func (r Row) Clone() Row {
	c := r
	c.Values = make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		c.Values[k] = v
	}
	return c
}

// InputsEmpty reports whether every input column of the row is blank
func (r Row) InputsEmpty(inputs []schema.InputColumn) bool {
	for _, col := range inputs {
		if strings.TrimSpace(r.Values[col.Key]) != "" {
			return false
		}
	}
	return true
}

// conform fills in missing column keys and a missing status. Extra keys are
// left alone.
func (r *Row) conform(inputs []schema.InputColumn, outputs []schema.OutputColumn) {
	if r.Values == nil {
		r.Values = make(map[string]string, len(inputs)+len(outputs))
	}
	for _, col := range inputs {
		if _, ok := r.Values[col.Key]; !ok {
			r.Values[col.Key] = ""
		}
	}
	for _, col := range outputs {
		if _, ok := r.Values[col.Key]; !ok {
			r.Values[col.Key] = ""
		}
	}
	switch r.Status {
	case StatusIdle, StatusRunning, StatusSuccess, StatusError:
	default:
		r.Status = StatusIdle
	}
}

// RowUpdate is a change to a single row. Status and ErrorMessage replace the
// row's; Values are merged into it. An empty Status leaves the status as is.
type RowUpdate struct {
	Index        int
	Status       Status
	ErrorMessage string
	Values       map[string]string
}
