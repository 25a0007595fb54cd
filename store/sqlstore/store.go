/*
Package sqlstore provides the relational implementation of generic.TxStore.

PURPOSE:
  Persists timesheets, lines, ledger rows, directory records, settings,
  counters and audit events in SQLite or PostgreSQL. The SQL is shared; a
  small dialect value covers placeholders and auto-increment columns.

DRIVERS:
  sqlite    github.com/mattn/go-sqlite3 (default, ":memory:" in tests)
  postgres  github.com/lib/pq

TENANCY:
  Every table carries an entity column and every statement filters on it.
  Lines are reached through their sheet, so a line of another tenant's sheet
  is never read or written.

TRANSACTIONS:
  WithTx hands fn a Store bound to one *sql.Tx. Every statement issued
  through it, counter increments included, commits or rolls back together.

OPTIMISTIC LOCKING:
  timesheet.version is bumped by every UpdateTimesheet, which only applies
  when the stored version equals the one the caller read.

USAGE:
  st, err := sqlstore.Open(ctx, "sqlite", "./data/timesheets.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  The schema is created on Open. Statements are idempotent
  (CREATE ... IF NOT EXISTS), so Migrate can run on every start.

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// DIALECTS
// =============================================================================

type dialect struct {
	name     string
	driver   string
	numbered bool   // $1, $2 placeholders instead of ?
	serialPK string // auto-increment primary key column type
	bigint   string
}

var (
	sqliteDialect = dialect{
		name:     "sqlite",
		driver:   "sqlite3",
		serialPK: "INTEGER PRIMARY KEY AUTOINCREMENT",
		bigint:   "INTEGER",
	}
	postgresDialect = dialect{
		name:     "postgres",
		driver:   "postgres",
		numbered: true,
		serialPK: "BIGSERIAL PRIMARY KEY",
		bigint:   "BIGINT",
	}
)

func dialectFor(name string) (dialect, error) {
	switch strings.ToLower(name) {
	case "", "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "postgres", "postgresql", "pq":
		return postgresDialect, nil
	}
	return dialect{}, fmt.Errorf("unsupported database driver %q (use sqlite or postgres)", name)
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// =============================================================================
// STORE
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements generic.Store over a database handle or a transaction.
type conn struct {
	q querier
	d dialect
}

func (c *conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.d.rebind(query), args...)
}

func (c *conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.d.rebind(query), args...)
}

func (c *conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.d.rebind(query), args...)
}

// Store implements generic.TxStore.
type Store struct {
	*conn
	db *sql.DB
	mu sync.Mutex
}

var _ generic.TxStore = (*Store)(nil)

// Open connects with the named driver ("sqlite" or "postgres") and migrates
// the schema. For SQLite, dsn is a file path or ":memory:".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if d.name == "sqlite" {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.name == "sqlite" {
		// One connection serializes writers and keeps ":memory:" a single database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", d.name, err)
	}

	s := &Store{conn: &conn{q: db, d: d}, db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// New opens a SQLite store at path. Use ":memory:" for an in-memory database.
func New(path string) (*Store, error) {
	return Open(context.Background(), "sqlite", path)
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect names the backing database, "sqlite" or "postgres".
func (s *Store) Dialect() string { return s.d.name }

// WithTx executes fn within a transaction.
func (s *Store) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx, d: s.d}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func nullAmount(a *generic.Amount) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Value.String(), Valid: true}
}

func parseHours(value string) generic.Amount {
	return generic.Amount{Value: generic.MustParseDecimal(value), Unit: generic.UnitHours}
}

func parseNullHours(value sql.NullString) *generic.Amount {
	if !value.Valid {
		return nil
	}
	h := parseHours(value.String)
	return &h
}

// escapeLike quotes LIKE wildcards; statements use ESCAPE '\'.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// uniqueViolation reports whether err is a unique-constraint failure and
// returns text naming the constraint.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint + " " + pqErr.Message, pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Error(), liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return "", false
}
