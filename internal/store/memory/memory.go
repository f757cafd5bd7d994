// Package memory implements an in-memory store.Store for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fuelbot/internal/store"
)

// Store keeps tables in a map. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	tables map[string][][]string
}

// New creates an empty store.
func New() *Store {
	return &Store{tables: make(map[string][][]string)}
}

// AddTable creates a table with the given rows (header first), replacing any
// existing table of the same title. Test setup helper.
func (s *Store) AddTable(title string, rows ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[title] = append([][]string{}, rows...)
}

func (s *Store) ListTables(ctx context.Context) ([]store.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := make([]store.Table, 0, len(s.tables))
	for title, rows := range s.tables {
		tables = append(tables, store.Table{Title: title, HasHeader: len(rows) > 0})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Title < tables[j].Title })
	return tables, nil
}

func (s *Store) EnsureTable(ctx context.Context, title string, headers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rows, ok := s.tables[title]; ok && len(rows) > 0 {
		return nil
	}
	s.tables[title] = [][]string{append([]string{}, headers...)}
	return nil
}

func (s *Store) AppendRow(ctx context.Context, title string, row []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[title] = append(s.tables[title], append([]string{}, row...))
	return len(s.tables[title]), nil
}

func (s *Store) ReadRows(ctx context.Context, title string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[title]
	if !ok || len(rows) <= 1 {
		return nil, nil
	}
	out := make([][]string, 0, len(rows)-1)
	for _, r := range rows[1:] {
		out = append(out, append([]string{}, r...))
	}
	return out, nil
}

func (s *Store) UpdateCell(ctx context.Context, title string, row, col int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[title]
	if !ok || row < 1 || row > len(rows) {
		return fmt.Errorf("no row %d in table %q", row, title)
	}
	cells := rows[row-1]
	for len(cells) < col {
		cells = append(cells, "")
	}
	cells[col-1] = value
	rows[row-1] = cells
	return nil
}

// Cell returns a single cell value, empty string if out of range. Test helper.
func (s *Store) Cell(title string, row, col int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[title]
	if row < 1 || row > len(rows) || col < 1 || col > len(rows[row-1]) {
		return ""
	}
	return rows[row-1][col-1]
}

// RowCount returns the number of rows including the header. Test helper.
func (s *Store) RowCount(title string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables[title])
}
