// Package postgres implements store.Store on PostgreSQL.
//
// The backend's named tables are emulated inside a single fuel_rows table
// (tab, row_num, cells), keeping the same append-only, header-first row
// model the sheets backend exposes.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fuelbot/internal/store"
)

//go:embed 001_create_fuel_rows.sql
var migrationSQL string

// Config holds the PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// Store keeps fuel logs in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects, pings and migrates.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migration: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
	)
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) ListTables(ctx context.Context) ([]store.Table, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tab, COUNT(*) FROM fuel_rows GROUP BY tab ORDER BY tab`)
	if err != nil {
		return nil, fmt.Errorf("listing tabs: %w", err)
	}
	defer rows.Close()

	var tables []store.Table
	for rows.Next() {
		var tab string
		var count int
		if err := rows.Scan(&tab, &count); err != nil {
			return nil, fmt.Errorf("scanning tab: %w", err)
		}
		tables = append(tables, store.Table{Title: tab, HasHeader: count > 0})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tabs: %w", err)
	}
	return tables, nil
}

func (s *Store) EnsureTable(ctx context.Context, title string, headers []string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fuel_rows (tab, row_num, cells)
		SELECT $1, 1, $2
		WHERE NOT EXISTS (SELECT 1 FROM fuel_rows WHERE tab = $1)
	`, title, headers)
	if err != nil {
		return fmt.Errorf("ensuring tab %q: %w", title, err)
	}
	return nil
}

func (s *Store) AppendRow(ctx context.Context, title string, row []string) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var n int
	err = tx.QueryRow(ctx, `
		INSERT INTO fuel_rows (tab, row_num, cells)
		SELECT $1, COALESCE(MAX(row_num), 0) + 1, $2
		FROM fuel_rows WHERE tab = $1
		RETURNING row_num
	`, title, row).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("appending to %q: %w", title, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing append: %w", err)
	}
	return n, nil
}

func (s *Store) ReadRows(ctx context.Context, title string) ([][]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT cells FROM fuel_rows WHERE tab = $1 AND row_num > 1 ORDER BY row_num`, title)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", title, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var cells []string
		if err := rows.Scan(&cells); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateCell(ctx context.Context, title string, row, col int, value string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE fuel_rows
		SET cells = cells[:$3-1] || ARRAY[$4] || cells[$3+1:]
		WHERE tab = $1 AND row_num = $2
	`, title, row, col, value)
	if err != nil {
		return fmt.Errorf("updating cell %q[%d,%d]: %w", title, row, col, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no row %d in tab %q", row, title)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
}
