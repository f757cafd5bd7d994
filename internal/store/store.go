// Package store defines the tabular persistence backend used for fuel logs.
//
// The backend is a set of named tables (one per asset). Each table is an
// append-only sequence of rows; the first row holds the column headers.
// Implementations: sheets (Google Sheets), postgres, memory (tests).
package store

import "context"

// Table describes one named table in the backend.
type Table struct {
	// Title is the table name, e.g. "Авто 5513".
	Title string
	// HasHeader reports whether the table contains at least one row.
	HasHeader bool
}

// Store is the append-only tabular backend.
//
// Rows returned by ReadRows exclude the header row. Row numbers used by
// UpdateCell are 1-based over the full table, so the first data row is 2.
// Column numbers are 1-based.
type Store interface {
	// ListTables returns every table in the backend.
	ListTables(ctx context.Context) ([]Table, error)

	// EnsureTable creates the table and writes its header row if the table
	// is missing or empty. An existing non-empty table is left untouched.
	EnsureTable(ctx context.Context, title string, headers []string) error

	// AppendRow appends one row after the last row of the table and returns
	// the 1-based number of the written row.
	AppendRow(ctx context.Context, title string, row []string) (int, error)

	// ReadRows returns all data rows of the table in append order.
	ReadRows(ctx context.Context, title string) ([][]string, error)

	// UpdateCell overwrites a single cell.
	UpdateCell(ctx context.Context, title string, row, col int, value string) error
}
