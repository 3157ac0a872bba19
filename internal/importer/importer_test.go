package importer

import (
	"errors"
	"testing"

	apperrors "github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/schema"
	"github.com/deploymenttheory/go-batch-runner/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []schema.InputColumn{
	{Key: "Name", Label: "Name", Type: schema.TypeText},
	{Key: "Age", Label: "Age", Type: schema.TypeText},
}

func TestImportFiltersHeaderAndFillsEmptyRows(t *testing.T) {
	s := table.NewStore(columns, nil)
	s.AddEmptyRow()

	res, err := Import("Name\tAge\nAlice\t30\nBob\t40", s)
	require.NoError(t, err)

	assert.Equal(t, Result{Handled: true, Imported: 2, HeaderFiltered: true, Filled: 1, Appended: 1}, res)
	rows := s.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "Alice", rows[0].Value("Name"))
	assert.Equal(t, "30", rows[0].Value("Age"))
	assert.Equal(t, "Bob", rows[1].Value("Name"))
	assert.Equal(t, "40", rows[1].Value("Age"))
}

func TestImportKeepsFilledRows(t *testing.T) {
	s := table.NewStore(columns, nil)
	s.AddEmptyRow()
	s.AddEmptyRow()
	s.AddEmptyRow()
	require.NoError(t, s.SetCell(1, "Name", "Existing"))

	res, err := Import("a\t1\r\nb\t2\rc\t3\n\n", s)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, 2, res.Filled)
	assert.False(t, res.HeaderFiltered)

	rows := s.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, "a", rows[0].Value("Name"))
	assert.Equal(t, "Existing", rows[1].Value("Name"))
	assert.Equal(t, "b", rows[2].Value("Name"))
	assert.Equal(t, "c", rows[3].Value("Name"))
}

func TestImportSingleLineIsNotHandled(t *testing.T) {
	s := table.NewStore(columns, nil)
	res, err := Import("just\ttext", s)
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.Equal(t, 0, s.Len())
}

func TestImportWhileBusy(t *testing.T) {
	s := table.NewStore(columns, nil)
	release, err := s.Acquire()
	require.NoError(t, err)
	defer release()

	_, err = Import("a\nb", s)
	assert.True(t, errors.Is(err, apperrors.ErrRunInProgress))
}

func TestParse(t *testing.T) {
	cols := []schema.InputColumn{
		{Key: "prompt", Label: "Prompt Text"},
		{Key: "size", Label: "Size"},
	}

	t.Run("header by label, case insensitive", func(t *testing.T) {
		rows, header := Parse(" prompt text \tSIZE\nhi\t2", cols)
		assert.True(t, header)
		assert.Equal(t, []map[string]string{{"prompt": "hi", "size": "2"}}, rows)
	})

	t.Run("short and long rows", func(t *testing.T) {
		rows, header := Parse("only\nx\ty\tz", cols)
		assert.False(t, header)
		assert.Equal(t, []map[string]string{
			{"prompt": "only"},
			{"prompt": "x", "size": "y"},
		}, rows)
	})

	t.Run("partial header match is data", func(t *testing.T) {
		rows, header := Parse("prompt\tother\n", cols)
		assert.False(t, header)
		assert.Len(t, rows, 1)
	})

	t.Run("header only", func(t *testing.T) {
		rows, header := Parse("prompt\tsize\n", cols)
		assert.True(t, header)
		assert.Empty(t, rows)
	})
}
