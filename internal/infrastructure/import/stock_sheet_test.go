package csvimport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadStockSheet_Valid(t *testing.T) {
	csv := "Item Name,Category,Qty,Unit Price\n" +
		"Kente scarf,Ladies,4,35.50\n" +
		"\n" +
		"Polo shirt,Men,0,40\n"

	sheet, err := ReadStockSheet(strings.NewReader(csv), SheetOptions{})
	require.NoError(t, err)

	assert.True(t, sheet.IsValid())
	assert.Equal(t, 2, sheet.TotalRows, "blank rows are skipped")
	assert.Equal(t, 2, sheet.ValidRows)
	assert.Empty(t, sheet.Errors)
	require.Len(t, sheet.Items, 2)

	assert.Equal(t, "Kente scarf", sheet.Items[0].Name)
	assert.Equal(t, "Women", sheet.Items[0].Category)
	assert.Equal(t, 4, sheet.Items[0].Quantity)
	assert.Equal(t, "35.5", sheet.Items[0].Price.String())
	assert.Equal(t, 0, sheet.Items[1].Quantity)
}

func TestReadStockSheet_RowErrors(t *testing.T) {
	csv := "name,category,quantity,price\n" +
		"Scarf,Shoes,2,10\n" +
		",Men,two,-5\n" +
		"Dress,Women,1,9.999\n" +
		"Cap,Unisex,3,12\n"

	sheet, err := ReadStockSheet(strings.NewReader(csv), SheetOptions{})
	require.NoError(t, err)

	assert.False(t, sheet.IsValid())
	assert.Equal(t, 4, sheet.TotalRows)
	assert.Equal(t, 1, sheet.ValidRows)
	assert.Equal(t, "Cap", sheet.Items[0].Name)
	assert.Equal(t, 5, sheet.ErrorCount)

	type key struct {
		row    int
		column string
		code   string
	}
	var got []key
	for _, e := range sheet.Errors {
		got = append(got, key{e.Row, e.Column, e.Code})
	}
	assert.Equal(t, []key{
		{2, "category", ErrCodeImportInvalidValue},
		{3, "name", ErrCodeImportRequiredField},
		{3, "quantity", ErrCodeImportInvalidType},
		{3, "price", ErrCodeImportInvalidValue},
		{4, "price", ErrCodeImportInvalidValue},
	}, got)
}

func TestReadStockSheet_ErrorLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("name,category,quantity,price\n")
	for range 10 {
		b.WriteString(",Men,1,1\n")
	}

	sheet, err := ReadStockSheet(strings.NewReader(b.String()), SheetOptions{MaxErrors: 3})
	require.NoError(t, err)
	assert.Len(t, sheet.Errors, 3)
	assert.Equal(t, 10, sheet.ErrorCount)
	assert.True(t, sheet.IsTruncated)
}

func TestReadStockSheet_FileErrors(t *testing.T) {
	t.Run("missing columns", func(t *testing.T) {
		_, err := ReadStockSheet(strings.NewReader("name,category\nScarf,Men"), SheetOptions{})
		var missing *MissingColumnsError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, []string{"quantity", "price"}, missing.Columns)
	})

	t.Run("header only", func(t *testing.T) {
		_, err := ReadStockSheet(strings.NewReader("name,category,quantity,price\n"), SheetOptions{})
		assert.ErrorIs(t, err, ErrNoDataRows)
	})

	t.Run("too many rows", func(t *testing.T) {
		csv := "name,category,quantity,price\nA,Men,1,1\nB,Men,1,1\nC,Men,1,1\n"
		_, err := ReadStockSheet(strings.NewReader(csv), SheetOptions{MaxRows: 2})
		assert.ErrorIs(t, err, ErrTooManyRows)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ReadStockSheet(strings.NewReader(""), SheetOptions{})
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("semicolon delimiter", func(t *testing.T) {
		sheet, err := ReadStockSheet(strings.NewReader("name;category;quantity;price\nScarf;Men;1;2,50"),
			SheetOptions{Delimiter: ';'})
		require.NoError(t, err)
		assert.Equal(t, 1, sheet.TotalRows)
		assert.Equal(t, ErrCodeImportInvalidType, sheet.Errors[0].Code, "comma decimals are rejected")
	})
}
