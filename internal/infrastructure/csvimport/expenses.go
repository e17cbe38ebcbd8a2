package csvimport

import (
	"errors"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Expense file columns. French aliases match the portal's spreadsheet export.
const (
	ColumnDate        = "date"
	ColumnAmount      = "amount"
	ColumnDescription = "description"
)

var columnAliases = map[string][]string{
	ColumnDate:        {"date", "date_depense"},
	ColumnAmount:      {"amount", "montant", "montant_ht"},
	ColumnDescription: {"description", "libelle", "libellé"},
}

var dateLayouts = []string{time.DateOnly, "02/01/2006", "02-01-2006", "2006/01/02"}

const (
	maxDescriptionLength = 1000
	defaultMaxRows       = 1000
	defaultMaxErrors     = 50
)

// ExpenseRow is one validated line of an expense file
type ExpenseRow struct {
	Line        int
	Date        *time.Time
	Amount      decimal.Decimal
	Description string
}

// ExpenseFile is the outcome of reading an expense file. Rows is only
// meaningful when Errors is empty; callers import all rows or none.
type ExpenseFile struct {
	Rows   []ExpenseRow
	Errors *ErrorCollection
}

// ExpenseReaderOption configures ReadExpenses
type ExpenseReaderOption func(*expenseReader)

type expenseReader struct {
	maxRows   int
	maxErrors int
	parserOpt []ParserOption
}

// WithMaxRows caps the number of data rows
func WithMaxRows(n int) ExpenseReaderOption {
	return func(r *expenseReader) { r.maxRows = n }
}

// WithMaxErrors caps the number of row errors kept
func WithMaxErrors(n int) ExpenseReaderOption {
	return func(r *expenseReader) { r.maxErrors = n }
}

// WithParserOptions passes options to the underlying CSVParser
func WithParserOptions(opts ...ParserOption) ExpenseReaderOption {
	return func(r *expenseReader) { r.parserOpt = append(r.parserOpt, opts...) }
}

// ReadExpenses parses an expense file with a header row. File level problems
// are returned as errors; per-row problems are collected in ExpenseFile.Errors.
func ReadExpenses(r io.Reader, opts ...ExpenseReaderOption) (*ExpenseFile, error) {
	cfg := expenseReader{maxRows: defaultMaxRows, maxErrors: defaultMaxErrors}
	for _, opt := range opts {
		opt(&cfg)
	}

	parser, err := NewCSVParser(r, cfg.parserOpt...)
	if err != nil {
		return nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, err
	}

	columns := make(map[string]string, len(columnAliases))
	out := &ExpenseFile{Errors: NewErrorCollection(cfg.maxErrors)}
	for canonical, aliases := range columnAliases {
		for _, alias := range aliases {
			if parser.HasHeader(alias) {
				columns[canonical] = alias
				break
			}
		}
	}
	if _, ok := columns[ColumnAmount]; !ok {
		out.Errors.Add(RowError{Row: 1, Column: ColumnAmount, Code: ErrCodeImportRequiredField,
			Message: "header must contain an amount column"})
		return out, nil
	}

	rows, err := parser.ReadAllRows(cfg.maxRows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoDataRows
	}

	out.Rows = make([]ExpenseRow, 0, len(rows))
	for _, row := range rows {
		if exp, ok := parseExpenseRow(row, columns, out.Errors); ok {
			out.Rows = append(out.Rows, exp)
		}
	}
	return out, nil
}

func parseExpenseRow(row *Row, columns map[string]string, errs *ErrorCollection) (ExpenseRow, bool) {
	exp := ExpenseRow{Line: row.LineNumber}
	ok := true

	rawAmount := row.Get(columns[ColumnAmount])
	switch amount, err := ParseAmount(rawAmount); {
	case rawAmount == "":
		errs.AddRequiredError(row.LineNumber, ColumnAmount)
		ok = false
	case err != nil:
		errs.AddFormatError(row.LineNumber, ColumnAmount, "a decimal amount such as 1234.56 or 1 234,56", rawAmount)
		ok = false
	case !amount.IsPositive():
		errs.Add(RowError{Row: row.LineNumber, Column: ColumnAmount, Code: ErrCodeImportInvalidRange,
			Message: "amount must be positive", Value: rawAmount})
		ok = false
	default:
		exp.Amount = amount
	}

	if col, present := columns[ColumnDate]; present {
		if raw := row.Get(col); raw != "" {
			d, err := ParseDate(raw)
			if err != nil {
				errs.AddFormatError(row.LineNumber, ColumnDate, "YYYY-MM-DD or DD/MM/YYYY", raw)
				ok = false
			} else {
				exp.Date = &d
			}
		}
	}

	if col, present := columns[ColumnDescription]; present {
		exp.Description = row.Get(col)
		if utf8.RuneCountInString(exp.Description) > maxDescriptionLength {
			errs.Add(RowError{Row: row.LineNumber, Column: ColumnDescription, Code: ErrCodeImportInvalidLength,
				Message: "length must be at most 1000"})
			ok = false
		}
	}
	return exp, ok
}

var errAmountFormat = errors.New("invalid amount")

// ParseAmount reads 1234.56, 1 234,56, 1.234,56 and 1,234.56. The right-most
// separator is the decimal mark; currency symbols and spaces are ignored.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '€', '\'':
			return -1
		}
		return r
	}, raw)
	if s == "" {
		return decimal.Zero, errAmountFormat
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, errAmountFormat
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errAmountFormat
	}
	return d, nil
}

// ParseDate accepts ISO dates and the day-first layouts of French exports
func ParseDate(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
