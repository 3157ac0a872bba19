package schema

import (
	"errors"
	"testing"

	apperrors "github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeType(t *testing.T) {
	tests := map[string]ColumnType{
		"text":    TypeText,
		"file":    TypeFile,
		"image":   TypeFile,
		"Video":   TypeFile,
		"media":   TypeFile,
		"link":    TypeLink,
		"":        TypeText,
		"unknown": TypeText,
	}
	for tag, want := range tests {
		assert.Equal(t, want, NormalizeType(tag), tag)
	}
}

func TestNormalizeColumns(t *testing.T) {
	inputs := NormalizeInputColumns([]InputColumn{
		{Key: "a", Type: "image"},
		{Key: "b", Type: "link"},
	})
	assert.Equal(t, TypeFile, inputs[0].Type)
	assert.Equal(t, TypeText, inputs[1].Type)

	outputs := NormalizeOutputColumns([]OutputColumn{
		{Path: "a.b", Type: "video"},
		{Key: "c"},
	})
	assert.Equal(t, OutputColumn{Key: "a_b", Path: "a.b", Type: TypeFile}, outputs[0])
	assert.Equal(t, OutputColumn{Key: "c", Path: "c", Type: TypeText}, outputs[1])
}

func TestValidate(t *testing.T) {
	errs := Validate(
		[]InputColumn{{Key: "a"}, {Key: ""}, {Key: "_url_x"}},
		[]OutputColumn{{Key: "a"}, {Key: "b"}},
	)
	assert.Len(t, errs, 3)
	for _, err := range errs {
		assert.True(t, errors.Is(err, apperrors.ErrInvalidSchema))
	}

	assert.Empty(t, Validate([]InputColumn{{Key: "a"}}, []OutputColumn{{Key: "b"}}))
}

func TestDisplayLabel(t *testing.T) {
	assert.Equal(t, "Name", InputColumn{Key: "name", Label: "Name"}.DisplayLabel())
	assert.Equal(t, "name", InputColumn{Key: "name"}.DisplayLabel())
	assert.Equal(t, "out", OutputColumn{Key: "out", Label: " "}.DisplayLabel())
}
