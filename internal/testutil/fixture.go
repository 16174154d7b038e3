// Package testutil builds fixture capture databases for tests.
package testutil

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// Packet is one fixture row of the packets table. The composite identity
// columns are explicit; Signal stands in for the rest of the row.
type Packet struct {
	TsSec     int64
	TsUsec    int64
	SourceMAC string
	DestMAC   string
	Lat       float64
	Lon       float64
	Signal    int64
}

// Metadata is one fixture KISMET row.
type Metadata struct {
	Version      string
	BuildUUID    string
	BuildCompile string
	DBVersion    int64
}

// ExtraTable is an arbitrary auxiliary table for heterogeneous-schema and
// concatenation tests.
type ExtraTable struct {
	// Columns as "name TYPE" definitions, e.g. "ts_sec INT".
	Columns []string
	// Rows of values matching Columns.
	Rows [][]any
}

// Capture describes one fixture capture database.
type Capture struct {
	// Devices holds serialized device documents, written one per row to
	// the devices table's device column. Raw strings so tests can plant
	// malformed documents.
	Devices []string

	// Packets populates the packets table when non-empty.
	Packets []Packet

	// Metadata populates the KISMET table when non-nil.
	Metadata *Metadata

	// Extra adds arbitrary tables by name.
	Extra map[string]ExtraTable
}

// BuildCapture creates a capture database at path. Fails the test on any
// error.
func BuildCapture(t *testing.T, path string, c Capture) {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("create fixture %s: %v", path, err)
	}
	defer db.Close()

	mustExec(t, db, `
		CREATE TABLE devices (
			devmac TEXT,
			device BLOB
		)
	`)
	for _, doc := range c.Devices {
		mustExec(t, db, "INSERT INTO devices (devmac, device) VALUES (?, ?)",
			macOf(doc), doc)
	}

	if len(c.Packets) > 0 {
		mustExec(t, db, `
			CREATE TABLE packets (
				ts_sec INT,
				ts_usec INT,
				phyname TEXT,
				sourcemac TEXT,
				destmac TEXT,
				lat REAL,
				lon REAL,
				signal INT
			)
		`)
		for _, p := range c.Packets {
			mustExec(t, db, `
				INSERT INTO packets (ts_sec, ts_usec, phyname, sourcemac, destmac, lat, lon, signal)
				VALUES (?, ?, 'IEEE802.11', ?, ?, ?, ?, ?)
			`, p.TsSec, p.TsUsec, p.SourceMAC, p.DestMAC, p.Lat, p.Lon, p.Signal)
		}
	}

	if c.Metadata != nil {
		mustExec(t, db, `
			CREATE TABLE KISMET (
				kismet_version TEXT,
				build_uuid TEXT,
				build_compile TEXT,
				db_version INT
			)
		`)
		mustExec(t, db, `
			INSERT INTO KISMET (kismet_version, build_uuid, build_compile, db_version)
			VALUES (?, ?, ?, ?)
		`, c.Metadata.Version, c.Metadata.BuildUUID, c.Metadata.BuildCompile, c.Metadata.DBVersion)
	}

	for name, extra := range c.Extra {
		cols := ""
		marks := ""
		for i, def := range extra.Columns {
			if i > 0 {
				cols += ", "
				marks += ", "
			}
			cols += def
			marks += "?"
		}
		mustExec(t, db, fmt.Sprintf("CREATE TABLE %q (%s)", name, cols))
		for _, row := range extra.Rows {
			mustExec(t, db, fmt.Sprintf("INSERT INTO %q VALUES (%s)", name, marks), row...)
		}
	}
}

// DeviceJSON serializes a document from dotted-key fields. Convenience for
// fixtures that don't need hand-written JSON.
func DeviceJSON(t *testing.T, fields map[string]any) string {
	t.Helper()
	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal device fixture: %v", err)
	}
	return string(data)
}

// macOf extracts the hardware address from a serialized document for the
// fixture's devmac column, tolerating malformed documents.
func macOf(doc string) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return ""
	}
	mac, _ := m["kismet.device.base.macaddr"].(string)
	return mac
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("fixture exec %q: %v", query, err)
	}
}
