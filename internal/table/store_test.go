package table

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	apperrors "github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testInputs = []schema.InputColumn{
		{Key: "name", Label: "Name", Type: schema.TypeText},
		{Key: "photo", Label: "Photo", Type: schema.TypeFile},
	}
	testOutputs = []schema.OutputColumn{
		{Key: "answer", Path: "answer", Label: "Answer", Type: schema.TypeText},
	}
)

func TestNewRowHasEveryColumn(t *testing.T) {
	row := NewRow(testInputs, testOutputs)
	assert.Equal(t, StatusIdle, row.Status)
	assert.Equal(t, map[string]string{"name": "", "photo": "", "answer": ""}, row.Values)
}

func TestStoreConformsRows(t *testing.T) {
	s := NewStore(testInputs, testOutputs, Row{Values: map[string]string{"name": "a", "legacy": "x"}})
	row, err := s.Row(0)
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, row.Status)
	assert.Equal(t, "a", row.Value("name"))
	assert.Equal(t, "x", row.Value("legacy"), "extra keys are tolerated")
	_, ok := row.Get("answer")
	assert.True(t, ok)
}

func TestStoreReadsAreCopies(t *testing.T) {
	s := NewStore(testInputs, testOutputs)
	s.AddEmptyRow()

	rows := s.Rows()
	rows[0].Values["name"] = "changed"

	row, _ := s.Row(0)
	assert.Equal(t, "", row.Value("name"))
}

func TestApply(t *testing.T) {
	s := NewStore(testInputs, testOutputs)
	s.AddEmptyRow()

	require.NoError(t, s.Apply(RowUpdate{Index: 0, Status: StatusError, ErrorMessage: "boom"}))
	row, _ := s.Row(0)
	assert.Equal(t, StatusError, row.Status)
	assert.Equal(t, "boom", row.ErrorMessage)

	require.NoError(t, s.Apply(RowUpdate{Index: 0, Status: StatusSuccess, Values: map[string]string{"answer": "42"}}))
	row, _ = s.Row(0)
	assert.Equal(t, StatusSuccess, row.Status)
	assert.Empty(t, row.ErrorMessage)
	assert.Equal(t, "42", row.Value("answer"))

	err := s.Apply(RowUpdate{Index: 3, Status: StatusSuccess})
	assert.True(t, errors.Is(err, apperrors.ErrRowOutOfRange))
}

func TestSetCell(t *testing.T) {
	s := NewStore(testInputs, testOutputs)
	s.AddEmptyRow()

	require.NoError(t, s.SetCell(0, "photo", "file-1"))
	require.NoError(t, s.SetCell(0, "_url_photo", "https://x.com/1.png"))
	assert.True(t, errors.Is(s.SetCell(0, "_url_name", "x"), apperrors.ErrUnknownColumn))
	assert.True(t, errors.Is(s.SetCell(0, "nope", "x"), apperrors.ErrUnknownColumn))
	assert.True(t, errors.Is(s.SetCell(1, "name", "x"), apperrors.ErrRowOutOfRange))
}

func TestDeleteAndClear(t *testing.T) {
	s := NewStore(testInputs, testOutputs)
	s.AddEmptyRow()
	s.AddEmptyRow()
	require.NoError(t, s.SetCell(1, "name", "second"))

	require.NoError(t, s.Delete(0))
	require.Equal(t, 1, s.Len())
	row, _ := s.Row(0)
	assert.Equal(t, "second", row.Value("name"))

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestSetSchema(t *testing.T) {
	s := NewStore(testInputs, testOutputs, Row{Values: map[string]string{
		"name": "a", "photo": "f", "_url_photo": "u", "answer": "x", "extra": "e",
	}})

	s.SetSchema([]schema.InputColumn{{Key: "name", Type: schema.TypeText}}, []schema.OutputColumn{{Key: "score", Path: "score"}})

	row, _ := s.Row(0)
	assert.Equal(t, map[string]string{"name": "a", "score": "", "extra": "e"}, row.Values)
}

func TestAcquire(t *testing.T) {
	s := NewStore(testInputs, testOutputs)

	release, err := s.Acquire()
	require.NoError(t, err)
	assert.True(t, s.Busy())

	_, err = s.Acquire()
	assert.True(t, errors.Is(err, apperrors.ErrRunInProgress))

	release()
	release()
	assert.False(t, s.Busy())
}

func TestWatch(t *testing.T) {
	s := NewStore(testInputs, testOutputs)
	var calls int32
	s.Watch(func() { atomic.AddInt32(&calls, 1) })

	s.AddEmptyRow()
	require.NoError(t, s.SetCell(0, "name", "x"))
	s.Clear()

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.json")

	s := NewStore(testInputs, testOutputs)
	s.AddEmptyRow()
	require.NoError(t, s.SetCell(0, "name", "Alice"))
	require.NoError(t, s.Apply(RowUpdate{Index: 0, Status: StatusRunning}))
	require.NoError(t, s.SaveFile(path, "p1"))

	loaded, projectID, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "p1", projectID)
	assert.Equal(t, testInputs, loaded.InputColumns())

	row, _ := loaded.Row(0)
	assert.Equal(t, StatusIdle, row.Status, "interrupted rows come back idle")
	assert.Equal(t, "Alice", row.Value("name"))
}

func TestUnmarshalNormalizesLegacyTypes(t *testing.T) {
	s, _, err := Unmarshal([]byte(`{"inputSchema":[{"key":"img","label":"Img","type":"image"}],"outputSchema":[{"key":"v","path":"v","type":"video"}],"rows":[{"status":"success","values":{"img":"x"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, schema.TypeFile, s.InputColumns()[0].Type)
	assert.Equal(t, schema.TypeFile, s.OutputColumns()[0].Type)

	row, _ := s.Row(0)
	assert.Equal(t, StatusSuccess, row.Status)
	assert.Equal(t, "", row.Value("v"))

	_, _, err = Unmarshal([]byte(`{`))
	assert.True(t, errors.Is(err, apperrors.ErrTableReadError))
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := LoadFile(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, apperrors.ErrTableReadError))
	assert.True(t, errors.Is(err, apperrors.ErrFileNotFound))

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"rows":`), 0644))
	_, _, err = LoadFile(broken)
	assert.True(t, errors.Is(err, apperrors.ErrTableReadError))
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedFile))
}
