package csvimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowError(t *testing.T) {
	t.Run("Error with column", func(t *testing.T) {
		err := RowError{Row: 5, Column: "price", Code: ErrCodeImportInvalidType, Message: "expected decimal"}
		assert.Equal(t, "row 5, column 'price': expected decimal", err.Error())
	})

	t.Run("Error without column", func(t *testing.T) {
		err := RowError{Row: 10, Code: ErrCodeImportMalformedRow, Message: "malformed row"}
		assert.Equal(t, "row 10: malformed row", err.Error())
	})
}

func TestErrorCollection(t *testing.T) {
	t.Run("Add errors within limit", func(t *testing.T) {
		ec := NewErrorCollection(10)

		ec.AddRequiredError(1, "name")
		ec.AddTypeError(2, "price", "decimal", "abc")
		ec.AddValueError(3, "quantity", "quantity cannot be negative", "-1")

		assert.Len(t, ec.Errors(), 3)
		assert.Equal(t, 3, ec.TotalCount())
		assert.True(t, ec.HasErrors())
		assert.False(t, ec.IsTruncated())

		errs := ec.Errors()
		assert.Equal(t, ErrCodeImportRequiredField, errs[0].Code)
		assert.Equal(t, "field 'name' is required", errs[0].Message)
		assert.Equal(t, ErrCodeImportInvalidType, errs[1].Code)
		assert.Equal(t, "abc", errs[1].Value)
		assert.Equal(t, ErrCodeImportInvalidValue, errs[2].Code)
	})

	t.Run("Add errors exceeding limit", func(t *testing.T) {
		ec := NewErrorCollection(3)

		for i := 1; i <= 5; i++ {
			ec.AddRequiredError(i, "name")
		}

		require.Len(t, ec.Errors(), 3)
		assert.Equal(t, 5, ec.TotalCount())
		assert.True(t, ec.IsTruncated())
		assert.Equal(t, 3, ec.Errors()[2].Row)
	})

	t.Run("Default limit", func(t *testing.T) {
		ec := NewErrorCollection(0)
		assert.Equal(t, 100, ec.maxErrors)
		assert.False(t, ec.HasErrors())
		assert.Empty(t, ec.Errors())
	})
}

func TestMissingColumnsError(t *testing.T) {
	err := &MissingColumnsError{Columns: []string{"quantity", "price"}}
	assert.Equal(t, "CSV file missing required columns: quantity, price", err.Error())
}
