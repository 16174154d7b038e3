package kismetdb

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/kismerge/internal/devjson"
)

//go:embed schema.sql
var deviceSchemaSQL string

// metadataSchemaSQL creates the KISMET metadata table when no source
// contributed one. Matches the capture format's own metadata shape.
const metadataSchemaSQL = `
CREATE TABLE IF NOT EXISTS KISMET (
    kismet_version TEXT,
    build_uuid TEXT,
    build_compile TEXT,
    db_version INT
)`

// MetadataRow is the synthesized KISMET row describing a merge run.
type MetadataRow struct {
	Version      string // "merged"
	BuildUUID    string // merge run identifier
	BuildCompile string // merge timestamp, RFC 3339
	DBVersion    int64
}

// GenericTable carries one non-device table's merged content to the writer:
// the union of the column sets seen across sources (first-seen order) and
// the retained rows in arrival order.
type GenericTable struct {
	Name    string
	Columns []Column
	Rows    []Row
}

// WriteSpec is everything the destination writer materializes.
type WriteSpec struct {
	// Devices holds the final merged documents in write order (first-seen
	// order, orphans last). Summary columns are recomputed from each
	// document; the document itself is stored canonically as the blob.
	Devices []devjson.Object

	// Tables holds the non-device tables (all-tables mode only).
	Tables []GenericTable

	// Metadata, when non-nil, is appended to the KISMET table, creating
	// the table if no source contributed one.
	Metadata *MetadataRow
}

// Write materializes a merged result at path.
//
// The destination is built at a temporary sibling path and renamed over the
// target only after the transaction commits, so a failed run leaves any
// pre-existing destination file untouched. All schema creation and inserts
// run in one transaction; the first failure aborts the whole write.
func Write(ctx context.Context, path string, spec WriteSpec) error {
	tmp := path + ".tmp"

	// A stale temp file from a killed run would corrupt the new database
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale temp %s: %w", tmp, err)
	}

	if err := writeTo(ctx, tmp, spec); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		os.Remove(tmp)
		return fmt.Errorf("remove old destination %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s to %s: %w", tmp, path, err)
	}

	return nil
}

// writeTo creates and populates a fresh database file at path.
func writeTo(ctx context.Context, path string, spec WriteSpec) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("create destination %s: %w", path, err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("create destination %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin destination tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := writeDevices(ctx, tx, spec.Devices); err != nil {
		return err
	}

	for _, table := range spec.Tables {
		if err := writeGenericTable(ctx, tx, table); err != nil {
			return err
		}
	}

	if spec.Metadata != nil {
		if err := writeMetadata(ctx, tx, *spec.Metadata); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit destination: %w", err)
	}

	return nil
}

// writeDevices creates the fixed devices schema and inserts the merged
// documents.
func writeDevices(ctx context.Context, tx *sql.Tx, devices []devjson.Object) error {
	if _, err := tx.ExecContext(ctx, deviceSchemaSQL); err != nil {
		return fmt.Errorf("create devices schema: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO devices
		(first_time, last_time, devkey, phyname, devmac, strongest_signal,
		 min_lat, min_lon, max_lat, max_lon, avg_lat, avg_lon, bytes_data, type, device)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare device insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range devices {
		blob, err := devjson.MarshalCanonical(doc)
		if err != nil {
			return fmt.Errorf("serialize device %s: %w", devjson.MAC(doc), err)
		}

		s := devjson.Summarize(doc)
		if _, err := stmt.ExecContext(ctx,
			s.FirstTime, s.LastTime, s.DevKey, s.PhyName, s.MAC, s.StrongestSignal,
			s.MinLat, s.MinLon, s.MaxLat, s.MaxLon, s.AvgLat, s.AvgLon,
			s.BytesData, s.Type, blob,
		); err != nil {
			return fmt.Errorf("insert device %s: %w", s.MAC, err)
		}
	}

	return nil
}

// writeGenericTable creates one concatenated table with the union column
// set and inserts its rows, null-filling columns a row's source lacked.
func writeGenericTable(ctx context.Context, tx *sql.Tx, table GenericTable) error {
	if len(table.Columns) == 0 {
		return fmt.Errorf("table %s has no captured columns", table.Name)
	}

	defs := make([]string, len(table.Columns))
	names := make([]string, len(table.Columns))
	marks := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		typ := col.Type
		if typ == "" {
			// Schema never captured for this column; opaque blob
			typ = "BLOB"
		}
		defs[i] = quoteIdent(col.Name) + " " + typ
		names[i] = quoteIdent(col.Name)
		marks[i] = "?"
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)",
		quoteIdent(table.Name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", table.Name, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table.Name), strings.Join(names, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert for %s: %w", table.Name, err)
	}
	defer stmt.Close()

	for i, row := range table.Rows {
		args := make([]any, len(table.Columns))
		for j, col := range table.Columns {
			args[j] = row.Value(col.Name)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d of %s: %w", i, table.Name, err)
		}
	}

	return nil
}

// writeMetadata appends the synthesized merge marker row, creating the
// KISMET table when no source contributed one.
func writeMetadata(ctx context.Context, tx *sql.Tx, row MetadataRow) error {
	if _, err := tx.ExecContext(ctx, metadataSchemaSQL); err != nil {
		return fmt.Errorf("create KISMET table: %w", err)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO KISMET (kismet_version, build_uuid, build_compile, db_version)
		VALUES (?, ?, ?, ?)
	`, row.Version, row.BuildUUID, row.BuildCompile, row.DBVersion)
	if err != nil {
		return fmt.Errorf("insert KISMET row: %w", err)
	}

	return nil
}
