package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewValidationError("bad tag"),
			expected: "[VALIDATION] bad tag",
		},
		{
			name:     "with cause",
			err:      NewStorageError("write failed", stderrors.New("disk full")),
			expected: "[STORAGE] write failed: disk full",
		},
		{
			name:     "not found",
			err:      NewNotFoundError("tables/t8_A_full_none.tex"),
			expected: "[NOT_FOUND] tables/t8_A_full_none.tex not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := NewParsingError("parse failed", cause)

	assert.True(t, stderrors.Is(err, cause))

	var appErr *AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, ErrTypeParsing, appErr.Type)
}

func TestNewUnknownTagError(t *testing.T) {
	err := NewUnknownTagError("sample", "bottom10")

	assert.Equal(t, ErrTypeValidation, err.Type)
	assert.Contains(t, err.Error(), `"bottom10"`)
	assert.Equal(t, "bottom10", err.Context["sample"])
}

func TestNewMissingColumnError(t *testing.T) {
	err := NewMissingColumnError("top25_assets")

	assert.Equal(t, ErrTypeNotFound, err.Type)
	assert.Contains(t, err.Error(), "top25_assets")
	assert.Contains(t, err.Error(), "regenerate")
}

func TestWithContext(t *testing.T) {
	err := NewValidationError("oops").WithContext("field", "dateq")
	assert.Equal(t, "dateq", err.Context["field"])
}
