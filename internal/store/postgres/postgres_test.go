package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"testing"
	"time"
)

// TestNew_ConnectionFailure tests that connecting to a bad host fails.
func TestNew_ConnectionFailure(t *testing.T) {
	cfg := Config{
		Host:     "nonexistent-host",
		Port:     5432,
		Database: "fuelbot",
		User:     "fuelbot",
		Password: "password",
		SSLMode:  "disable",
	}

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	if err == nil {
		t.Error("expected error when connecting to nonexistent host, got nil")
	}
}

func integrationStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("TEST_POSTGRES_HOST") == "" {
		t.Skip("TEST_POSTGRES_HOST not set, skipping integration test")
	}

	cfg := Config{
		Host:     os.Getenv("TEST_POSTGRES_HOST"),
		Database: os.Getenv("TEST_POSTGRES_DB"),
		User:     os.Getenv("TEST_POSTGRES_USER"),
		Password: os.Getenv("TEST_POSTGRES_PASSWORD"),
	}

	st, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}

func TestAppendAndRead(t *testing.T) {
	st := integrationStore(t)
	ctx := context.Background()
	tab := fmt.Sprintf("Авто test-%d", time.Now().UnixNano())

	if err := st.EnsureTable(ctx, tab, []string{"Дата", "Об'єм (л)"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	// Idempotent: a second ensure must not add another header row.
	if err := st.EnsureTable(ctx, tab, []string{"Дата", "Об'єм (л)"}); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	n, err := st.AppendRow(ctx, tab, []string{"2025-03-14 10:30:00", "200"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if n != 2 {
		t.Errorf("first data row: got %d, want 2", n)
	}

	if _, err := st.AppendRow(ctx, tab, []string{"2025-03-15 08:00:00", "30"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := st.ReadRows(ctx, tab)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := [][]string{
		{"2025-03-14 10:30:00", "200"},
		{"2025-03-15 08:00:00", "30"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows: got %v, want %v", rows, want)
	}
}

func TestUpdateCell(t *testing.T) {
	st := integrationStore(t)
	ctx := context.Background()
	tab := fmt.Sprintf("Генератор test-%d", time.Now().UnixNano())

	if err := st.EnsureTable(ctx, tab, []string{"Дата", "Фото"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	n, err := st.AppendRow(ctx, tab, []string{"2025-03-14 10:30:00", "raw-url"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := st.UpdateCell(ctx, tab, n, 2, "patched"); err != nil {
		t.Fatalf("update: %v", err)
	}

	rows, err := st.ReadRows(ctx, tab)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 1 || rows[0][1] != "patched" {
		t.Errorf("rows after update: %v", rows)
	}

	// Updating a missing row is an error.
	if err := st.UpdateCell(ctx, tab, 99, 2, "x"); err == nil {
		t.Error("expected error for missing row")
	}
}

func TestListTables(t *testing.T) {
	st := integrationStore(t)
	ctx := context.Background()
	tab := fmt.Sprintf("Авто list-%d", time.Now().UnixNano())

	if err := st.EnsureTable(ctx, tab, []string{"Дата"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	tables, err := st.ListTables(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, tb := range tables {
		if tb.Title == tab {
			found = true
			if !tb.HasHeader {
				t.Error("table with header row reported as empty")
			}
		}
	}
	if !found {
		t.Errorf("table %q not listed", tab)
	}
}
