package kismetdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Column describes one column of a source table: its name and its declared
// SQLite type ("INT", "TEXT", "BLOB", ...). The declared type may be empty
// for expression-derived columns.
type Column struct {
	Name string
	Type string
}

// Row is one table row in storage order: the column names of its table plus
// the scanned values (int64, float64, string, []byte, or nil as produced by
// the driver).
type Row struct {
	Columns []string
	Values  []any
}

// Value returns the named column's value, or nil when the row does not
// carry that column. Rows from different sources of the same table can have
// different column sets.
func (r Row) Value(name string) any {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i]
		}
	}
	return nil
}

// Source is a read-only handle on one input capture database.
type Source struct {
	db   *sql.DB
	path string
}

// OpenSource opens a capture database read-only and verifies it is a usable
// SQLite file. Any failure here (missing file, permission denied, not a
// database) means the whole source is unreadable; callers skip it with a
// warning rather than aborting the run.
func OpenSource(path string) (*Source, error) {
	// mode=ro fails on a missing file instead of creating one
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open source %s: %w", path, err)
	}

	// Sequential batch reader; one connection is all we use
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Force an actual read so a corrupt or non-SQLite file fails here,
	// not halfway through the merge.
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return nil, fmt.Errorf("read source %s: %w", path, err)
	}

	return &Source{db: db, path: path}, nil
}

// Close releases the source handle.
func (s *Source) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the path the source was opened from.
func (s *Source) Path() string {
	return s.path
}

// Tables returns the table names present in the source, in sqlite_master
// order. That order fixes the per-source table processing order, which
// keeps first-one-wins rules reproducible.
func (s *Source) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master WHERE type = 'table'
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables in %s: %w", s.path, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables in %s: %w", s.path, err)
	}

	if tables == nil {
		tables = []string{}
	}

	return tables, nil
}

// Columns returns the ordered column schema of a table.
func (s *Source) Columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("table info for %s in %s: %w", table, s.path, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols = append(cols, Column{Name: name, Type: typ})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info for %s: %w", table, err)
	}

	return cols, nil
}

// ForEachRow streams a table's rows in storage order. The callback receives
// each row; a non-nil callback error stops the scan and is returned
// unchanged so callers can thread their own conditions through.
//
// The Columns slice is shared between calls; callers must not retain it
// past the callback unless they copy the Values they need.
func (s *Source) ForEachRow(ctx context.Context, table string, fn func(Row) error) error {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s", quoteIdent(table)))
	if err != nil {
		return fmt.Errorf("read table %s in %s: %w", table, s.path, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("columns of %s: %w", table, err)
	}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan row of %s: %w", table, err)
		}
		if err := fn(Row{Columns: cols, Values: values}); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows of %s in %s: %w", table, s.path, err)
	}

	return nil
}

// CountRows returns the number of rows in a table.
func (s *Source) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rows of %s in %s: %w", table, s.path, err)
	}
	return n, nil
}

// quoteIdent quotes a SQL identifier. Table names come from sqlite_master
// of untrusted input files and cannot be bound as parameters.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
