package table

import (
	"fmt"
	"sync"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/schema"
)

// Store owns the rows of one table. Reads return copies, so callers may
// render while a batch task writes through Apply.
type Store struct {
	mu       sync.RWMutex
	inputs   []schema.InputColumn
	outputs  []schema.OutputColumn
	rows     []Row
	busy     bool
	watchers []func()
}

// NewStore creates a store for the given schema. Rows are conformed so that
// each holds every column key.
func NewStore(inputs []schema.InputColumn, outputs []schema.OutputColumn, rows ...Row) *Store {
	s := &Store{
		inputs:  append([]schema.InputColumn(nil), inputs...),
		outputs: append([]schema.OutputColumn(nil), outputs...),
	}
	for _, row := range rows {
		row = row.Clone()
		row.conform(s.inputs, s.outputs)
		s.rows = append(s.rows, row)
	}
	return s
}

// InputColumns returns a copy of the input schema
func (s *Store) InputColumns() []schema.InputColumn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]schema.InputColumn(nil), s.inputs...)
}

// OutputColumns returns a copy of the output schema
func (s *Store) OutputColumns() []schema.OutputColumn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]schema.OutputColumn(nil), s.outputs...)
}

// Len returns the number of rows
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Rows returns a deep copy of all rows
func (s *Store) Rows() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Row, len(s.rows))
	for i, row := range s.rows {
		out[i] = row.Clone()
	}
	return out
}

// Row returns a copy of the row at index
func (s *Store) Row(index int) (Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.rows) {
		return Row{}, fmt.Errorf("%w: %d of %d", errors.ErrRowOutOfRange, index, len(s.rows))
	}
	return s.rows[index].Clone(), nil
}

// EmptyRow returns a fresh idle row for the current schema
func (s *Store) EmptyRow() Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return NewRow(s.inputs, s.outputs)
}

// AddEmptyRow appends an empty row and returns its index
func (s *Store) AddEmptyRow() int {
	s.mu.Lock()
	s.rows = append(s.rows, NewRow(s.inputs, s.outputs))
	index := len(s.rows) - 1
	s.mu.Unlock()

	s.notify()
	return index
}

// Append adds rows at the end of the table
func (s *Store) Append(rows ...Row) {
	if len(rows) == 0 {
		return
	}
	s.mu.Lock()
	for _, row := range rows {
		row = row.Clone()
		row.conform(s.inputs, s.outputs)
		s.rows = append(s.rows, row)
	}
	s.mu.Unlock()

	s.notify()
}

// Replace overwrites the row at index
func (s *Store) Replace(index int, row Row) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.rows) {
		n := len(s.rows)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", errors.ErrRowOutOfRange, index, n)
	}
	row = row.Clone()
	row.conform(s.inputs, s.outputs)
	s.rows[index] = row
	s.mu.Unlock()

	s.notify()
	return nil
}

// SetCell edits a single value. The key must name a column of the schema
// or the preview key of a file input column.
func (s *Store) SetCell(index int, key, value string) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.rows) {
		n := len(s.rows)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", errors.ErrRowOutOfRange, index, n)
	}
	if !s.knownKey(key) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", errors.ErrUnknownColumn, key)
	}
	s.rows[index].Values[key] = value
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) knownKey(key string) bool {
	for _, col := range s.inputs {
		if col.Key == key || (col.Type == schema.TypeFile && schema.PreviewKey(col.Key) == key) {
			return true
		}
	}
	for _, col := range s.outputs {
		if col.Key == key {
			return true
		}
	}
	return false
}

// Delete removes the row at index
func (s *Store) Delete(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.rows) {
		n := len(s.rows)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", errors.ErrRowOutOfRange, index, n)
	}
	s.rows = append(s.rows[:index], s.rows[index+1:]...)
	s.mu.Unlock()

	s.notify()
	return nil
}

// Clear removes every row
func (s *Store) Clear() {
	s.mu.Lock()
	s.rows = nil
	s.mu.Unlock()

	s.notify()
}

// Apply commits a row update
func (s *Store) Apply(update RowUpdate) error {
	s.mu.Lock()
	if update.Index < 0 || update.Index >= len(s.rows) {
		n := len(s.rows)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", errors.ErrRowOutOfRange, update.Index, n)
	}
	row := &s.rows[update.Index]
	if update.Status != "" {
		row.Status = update.Status
		row.ErrorMessage = update.ErrorMessage
	}
	for k, v := range update.Values {
		row.Values[k] = v
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// SetSchema replaces the schema. Values of columns that were dropped are
// removed, new columns are added empty, unrelated extra keys are kept.
func (s *Store) SetSchema(inputs []schema.InputColumn, outputs []schema.OutputColumn) {
	s.mu.Lock()
	keep := make(map[string]bool)
	for _, col := range inputs {
		keep[col.Key] = true
		keep[schema.PreviewKey(col.Key)] = true
	}
	for _, col := range outputs {
		keep[col.Key] = true
	}
	var dropped []string
	for _, col := range s.inputs {
		if !keep[col.Key] {
			dropped = append(dropped, col.Key, schema.PreviewKey(col.Key))
		}
	}
	for _, col := range s.outputs {
		if !keep[col.Key] {
			dropped = append(dropped, col.Key)
		}
	}

	s.inputs = append([]schema.InputColumn(nil), inputs...)
	s.outputs = append([]schema.OutputColumn(nil), outputs...)
	for i := range s.rows {
		for _, key := range dropped {
			delete(s.rows[i].Values, key)
		}
		s.rows[i].conform(s.inputs, s.outputs)
	}
	s.mu.Unlock()

	s.notify()
}

// Acquire marks the table busy for a batch task. It fails with
// ErrRunInProgress while another task holds it. The returned function
// releases the table.
func (s *Store) Acquire() (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return nil, errors.ErrRunInProgress
	}
	s.busy = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.busy = false
			s.mu.Unlock()
		})
	}, nil
}

// Busy reports whether a batch task holds the table
func (s *Store) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// Watch registers fn to be called after every change. fn runs on the
// writer's goroutine with no lock held.
func (s *Store) Watch(fn func()) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	watchers := append([]func(){}, s.watchers...)
	s.mu.RUnlock()

	for _, fn := range watchers {
		fn()
	}
}
