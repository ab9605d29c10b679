package csvimport

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"

	"github.com/cas-inventory/backend/internal/domain/inventory"
	"github.com/cas-inventory/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Stock sheet limits
const (
	DefaultMaxRows   = 5000
	DefaultMaxErrors = 100
)

// stockColumns maps each stock field to the header spellings it accepts
var stockColumns = []struct {
	field   string
	aliases []string
}{
	{"name", []string{"name", "item name", "item", "product"}},
	{"category", []string{"category"}},
	{"quantity", []string{"quantity", "qty", "units"}},
	{"price", []string{"price", "unit price"}},
}

// StockSheet is the result of reading a stock CSV
type StockSheet struct {
	Items       []inventory.StockItemInput `json:"-"`
	TotalRows   int                        `json:"totalRows"`
	ValidRows   int                        `json:"validRows"`
	Errors      []RowError                 `json:"errors"`
	ErrorCount  int                        `json:"errorCount"`
	IsTruncated bool                       `json:"isTruncated"`
}

// IsValid reports whether every row can be imported
func (s *StockSheet) IsValid() bool {
	return s.ErrorCount == 0
}

// SheetOptions bounds a stock sheet read
type SheetOptions struct {
	MaxRows   int
	MaxErrors int
	Delimiter rune
}

// ReadStockSheet parses and validates a stock CSV with name, category, quantity and
// price columns. Row errors are collected in the sheet; file level problems are
// returned as errors.
func ReadStockSheet(r io.Reader, opts SheetOptions) (*StockSheet, error) {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	var parserOpts []ParserOption
	if opts.Delimiter != 0 {
		parserOpts = append(parserOpts, WithDelimiter(opts.Delimiter))
	}

	parser, err := NewParser(r, parserOpts...)
	if err != nil {
		return nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, err
	}

	columns := make(map[string]string, len(stockColumns))
	var missing []string
	for _, c := range stockColumns {
		header, ok := parser.Column(c.aliases...)
		if !ok {
			missing = append(missing, c.field)
			continue
		}
		columns[c.field] = header
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	errs := NewErrorCollection(opts.MaxErrors)
	sheet := &StockSheet{Items: make([]inventory.StockItemInput, 0)}
	for {
		row, err := parser.ReadRow()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			errs.Add(RowError{Row: parser.CurrentRow(), Code: ErrCodeImportMalformedRow, Message: parseErr.Err.Error()})
			continue
		}
		if err != nil {
			return nil, err
		}
		if row.IsEmpty() {
			continue
		}
		sheet.TotalRows++
		if sheet.TotalRows > opts.MaxRows {
			return nil, ErrTooManyRows
		}
		if input, ok := stockRow(row, columns, errs); ok {
			sheet.Items = append(sheet.Items, input)
		}
	}
	if sheet.TotalRows == 0 && !errs.HasErrors() {
		return nil, ErrNoDataRows
	}

	sheet.ValidRows = len(sheet.Items)
	sheet.Errors = errs.Errors()
	sheet.ErrorCount = errs.TotalCount()
	sheet.IsTruncated = errs.IsTruncated()
	return sheet, nil
}

// stockRow validates one row, recording every problem it finds
func stockRow(row *Row, columns map[string]string, errs *ErrorCollection) (inventory.StockItemInput, bool) {
	before := errs.TotalCount()
	line := row.LineNumber
	var input inventory.StockItemInput

	if input.Name = row.Get(columns["name"]); input.Name == "" {
		errs.AddRequiredError(line, "name")
	}

	if label := row.Get(columns["category"]); label == "" {
		errs.AddRequiredError(line, "category")
	} else if category, err := valueobject.ParseCategory(label); err != nil {
		errs.AddValueError(line, "category", err.Error(), label)
	} else {
		input.Category = category.String()
	}

	if raw := row.Get(columns["quantity"]); raw == "" {
		errs.AddRequiredError(line, "quantity")
	} else if qty, err := strconv.Atoi(raw); err != nil {
		errs.AddTypeError(line, "quantity", "whole number", raw)
	} else if qty < 0 {
		errs.AddValueError(line, "quantity", "quantity cannot be negative", raw)
	} else {
		input.Quantity = qty
	}

	if raw := row.Get(columns["price"]); raw == "" {
		errs.AddRequiredError(line, "price")
	} else if price, err := decimal.NewFromString(raw); err != nil {
		errs.AddTypeError(line, "price", "decimal", raw)
	} else if err := valueobject.ValidateAmount(price); err != nil {
		errs.AddValueError(line, "price", err.Error(), raw)
	} else {
		input.Price = price
	}

	return input, errs.TotalCount() == before
}
