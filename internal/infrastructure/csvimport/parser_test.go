package csvimport

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCSVParser(t *testing.T) {
	t.Run("UTF-8 BOM is stripped", func(t *testing.T) {
		parser, err := NewCSVParser(strings.NewReader("\xEF\xBB\xBFdate,amount\n2026-01-02,10"))
		require.NoError(t, err)
		require.NoError(t, parser.ParseHeader())
		assert.Equal(t, []string{"date", "amount"}, parser.Headers())
	})

	t.Run("Empty file returns error", func(t *testing.T) {
		parser, err := NewCSVParser(strings.NewReader("  \n"))
		assert.ErrorIs(t, err, ErrEmptyFile)
		assert.Nil(t, parser)
	})

	t.Run("Latin-1 is rejected", func(t *testing.T) {
		_, err := NewCSVParser(strings.NewReader("libell\xe9,montant\nPl\xe2tre,10"))
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("Semicolon is detected", func(t *testing.T) {
		parser, err := NewCSVParser(strings.NewReader("date;montant;libellé\n02/01/2026;1 234,50;Béton"))
		require.NoError(t, err)
		assert.Equal(t, ';', parser.Delimiter())
	})

	t.Run("Explicit delimiter wins", func(t *testing.T) {
		parser, err := NewCSVParser(strings.NewReader("a;b,c\n1;2,3"), WithDelimiter(','))
		require.NoError(t, err)
		assert.Equal(t, ',', parser.Delimiter())
	})
}

func TestCSVParser_Rows(t *testing.T) {
	parser, err := NewCSVParser(strings.NewReader(" Date , AMOUNT ,note\n2026-01-02, 10 \n\n,,\n2026-01-03,20,extra,ignored\n"))
	require.NoError(t, err)
	require.NoError(t, parser.ParseHeader())

	assert.True(t, parser.HasHeader("amount"))
	assert.True(t, parser.HasHeader("  Date"))
	assert.Equal(t, []string{"description"}, parser.MissingHeaders([]string{"amount", "description"}))

	rows, err := parser.ReadAllRows(0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "10", rows[0].Get("amount"))
	assert.Equal(t, 2, rows[0].LineNumber)
	assert.Equal(t, "", rows[0].Get("note"))
	assert.Equal(t, "20", rows[1].Get("Amount"))

	_, err = parser.ReadRow()
	assert.Equal(t, io.EOF, err)
}

func TestCSVParser_MaxRows(t *testing.T) {
	parser, err := NewCSVParser(strings.NewReader("amount\n1\n2\n3\n"))
	require.NoError(t, err)
	require.NoError(t, parser.ParseHeader())

	rows, err := parser.ReadAllRows(2)
	assert.ErrorIs(t, err, ErrTooManyRows)
	assert.Len(t, rows, 2)
}

func TestErrorCollection(t *testing.T) {
	ec := NewErrorCollection(2)
	assert.False(t, ec.HasErrors())
	assert.Equal(t, "no errors", ec.String())

	ec.AddRequiredError(2, "amount")
	ec.AddFormatError(3, "date", "YYYY-MM-DD", "demain")
	ec.AddRequiredError(4, "amount")

	assert.True(t, ec.HasErrors())
	assert.True(t, ec.IsTruncated())
	assert.Equal(t, 3, ec.TotalCount())
	require.Len(t, ec.Errors(), 2)
	assert.Equal(t, "row 3, column 'date': invalid format, expected YYYY-MM-DD", ec.Errors()[1].Error())
	assert.Contains(t, ec.String(), "3 error(s) found (showing first 2)")
}
