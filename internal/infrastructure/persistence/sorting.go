package persistence

import "strings"

const defaultSortColumn = "created_at"

// sortColumns maps the sort keys accepted by the API to table columns.
// Anything outside the map falls back to created_at, so OrderBy never
// reaches SQL unchecked.
type sortColumns map[string]string

var invoiceSortColumns = sortColumns{
	"created_at":     "created_at",
	"updated_at":     "updated_at",
	"number":         "invoice_number",
	"invoice_number": "invoice_number",
	"issue_date":     "issue_date",
	"due_date":       "due_date",
	"status":         "status",
	"total":          "total_amount",
	"total_amount":   "total_amount",
}

var templateSortColumns = sortColumns{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"name":       "name",
	"type":       "type",
	"is_default": "is_default",
}

// orderBy builds the ORDER BY expression. id breaks ties so pages stay
// stable when many rows share a date.
func (c sortColumns) orderBy(key, dir string) string {
	column, ok := c[strings.TrimSpace(key)]
	if !ok {
		column = defaultSortColumn
	}
	direction := "DESC"
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		direction = "ASC"
	}
	return column + " " + direction + ", id " + direction
}
