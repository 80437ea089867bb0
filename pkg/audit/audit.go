// Copyright 2025 Certen Protocol
//
// Package audit persists one append-only row per committed block —
// height, app hash, tx count, gas used — to Postgres, grounded on
// pkg/database/client.go's functional-options Client plus its
// //go:embed migrations/*.sql + schema_migrations bookkeeping.
package audit

import (
	"context"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Client is a connection-pooled handle to the audit database.
type Client struct {
	db     *sql.DB
	logger *log.Logger
}

// ClientOption is a functional option for configuring the client.
type ClientOption func(*Client)

// WithLogger sets a custom logger for the client.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient opens a pooled connection to dsn and verifies it is alive.
func NewClient(dsn string, opts ...ClientOption) (*Client, error) {
	if dsn == "" {
		return nil, fmt.Errorf("audit: database DSN must not be empty")
	}

	c := &Client{logger: log.New(log.Writer(), "[audit] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(c)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping database: %w", err)
	}

	c.db = db
	return c, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.db.Close() }

// RecordBlock appends one row to block_audit_log for a just-committed
// block. Height is the primary key: re-recording an already-audited
// height is an error, matching the ABCI Handler's own one-Commit-per-
// height invariant.
func (c *Client) RecordBlock(ctx context.Context, height int64, appHash []byte, txCount int, gasUsed uint64) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO block_audit_log (height, app_hash, tx_count, gas_used) VALUES ($1, $2, $3, $4)`,
		height, hex.EncodeToString(appHash), txCount, gasUsed,
	)
	if err != nil {
		return fmt.Errorf("audit: record block %d: %w", height, err)
	}
	return nil
}

// BlockRecord is one row of the audit log.
type BlockRecord struct {
	Height      int64
	AppHash     string
	TxCount     int
	GasUsed     uint64
	CommittedAt time.Time
}

// GetBlock returns the audit row for height, if present.
func (c *Client) GetBlock(ctx context.Context, height int64) (*BlockRecord, bool, error) {
	var r BlockRecord
	err := c.db.QueryRowContext(ctx,
		`SELECT height, app_hash, tx_count, gas_used, committed_at FROM block_audit_log WHERE height = $1`,
		height,
	).Scan(&r.Height, &r.AppHash, &r.TxCount, &r.GasUsed, &r.CommittedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("audit: get block %d: %w", height, err)
	}
	return &r, true, nil
}

// Migration is one embedded schema file.
type Migration struct {
	Version  string
	Filename string
	SQL      string
}

// MigrateUp applies every embedded migration not already recorded in
// schema_migrations, in filename order.
func (c *Client) MigrateUp(ctx context.Context) error {
	migrations, err := c.readMigrations()
	if err != nil {
		return fmt.Errorf("audit: read migrations: %w", err)
	}

	applied, err := c.appliedMigrations(ctx)
	if err != nil {
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("audit: read applied migrations: %w", err)
		}
		applied = map[string]bool{}
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		c.logger.Printf("applying %s", m.Version)
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("audit: apply %s: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("audit: record %s: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) readMigrations() ([]Migration, error) {
	var out []Migration
	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return err
		}
		out = append(out, Migration{
			Version:  strings.TrimSuffix(d.Name(), ".sql"),
			Filename: d.Name(),
			SQL:      string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (c *Client) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
