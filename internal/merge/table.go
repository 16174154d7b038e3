package merge

import (
	"github.com/roach88/kismerge/internal/devjson"
	"github.com/roach88/kismerge/internal/kismetdb"
)

// Recognized table names with specialized policies. Any other table is
// concatenated as-is.
const (
	TableDevices  = "devices"
	TablePackets  = "packets"
	TableMetadata = "KISMET"
)

// Outcome is the per-row decision of the table policy, reported back so
// the orchestrator can keep raw-rows-seen and final-rows-retained counts
// separate.
type Outcome int

const (
	// OutcomeInserted: first sighting, row retained as-is.
	OutcomeInserted Outcome = iota

	// OutcomeMerged: row combined into an already retained record.
	OutcomeMerged

	// OutcomeDiscarded: duplicate of a retained row, dropped.
	OutcomeDiscarded
)

// String returns the outcome name for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeMerged:
		return "merged"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// TableCounts tracks one table's per-row accounting across all sources.
type TableCounts struct {
	Seen        int64 `json:"seen"`
	Inserted    int64 `json:"inserted"`
	Merged      int64 `json:"merged"`
	Discarded   int64 `json:"discarded"`
	Unparseable int64 `json:"unparseable"`
}

// packetKey is the composite identity of one captured frame. Two packet
// rows with an identical key are the same physical event; only the first
// encountered is retained.
type packetKey struct {
	tsSec     int64
	tsUsec    int64
	sourceMAC string
	destMAC   string
	lat       float64
	lon       float64
}

// genericTable accumulates one concatenated table: the union of column
// sets seen across sources (first-seen order) and the retained rows in
// arrival order.
type genericTable struct {
	name    string
	columns []kismetdb.Column
	seen    map[string]bool // column name -> present in columns
	rows    []kismetdb.Row
}

func (g *genericTable) observeSchema(cols []kismetdb.Column) {
	for _, col := range cols {
		if g.seen[col.Name] {
			continue
		}
		g.seen[col.Name] = true
		g.columns = append(g.columns, col)
	}
}

// TableState is the accumulated result set of one merge run: merged
// devices keyed by hardware address, the packet dedup set, and the
// concatenated generic tables. It is owned exclusively by its run and
// passed explicitly - no state survives across runs.
type TableState struct {
	devices     map[string]devjson.Object
	deviceOrder []string
	orphans     []devjson.Object

	packetSeen map[packetKey]struct{}

	metadataRetained bool

	tables     map[string]*genericTable
	tableOrder []string

	counts map[string]*TableCounts
}

// NewTableState creates the empty accumulated state for one run.
func NewTableState() *TableState {
	return &TableState{
		devices:    make(map[string]devjson.Object),
		packetSeen: make(map[packetKey]struct{}),
		tables:     make(map[string]*genericTable),
		counts:     make(map[string]*TableCounts),
	}
}

// countsFor returns the mutable counter block for a table, creating it on
// first touch.
func (s *TableState) countsFor(table string) *TableCounts {
	c, ok := s.counts[table]
	if !ok {
		c = &TableCounts{}
		s.counts[table] = c
	}
	return c
}

// CountUnparseable records one dropped row for a table.
func (s *TableState) CountUnparseable(table string) {
	s.countsFor(table).Unparseable++
}

// ApplyDevice routes one parsed device document through the device policy.
//
// First sighting of a hardware address inserts the document as-is; later
// sightings merge into the stored record and replace it. A document with
// an empty address is an orphan: inserted unconditionally and never
// matched against anything, not even other orphans.
func (s *TableState) ApplyDevice(doc devjson.Object) Outcome {
	c := s.countsFor(TableDevices)
	c.Seen++

	mac := devjson.MAC(doc)
	if mac == "" {
		s.orphans = append(s.orphans, doc)
		c.Inserted++
		return OutcomeInserted
	}

	existing, ok := s.devices[mac]
	if !ok {
		s.devices[mac] = doc
		s.deviceOrder = append(s.deviceOrder, mac)
		c.Inserted++
		return OutcomeInserted
	}

	s.devices[mac] = MergeDevice(existing, doc)
	c.Merged++
	return OutcomeMerged
}

// ApplyRow routes one non-device row through the per-table policy.
// cols is the row's source schema, used to keep the destination's union
// schema current. Never fails for a well-formed row.
func (s *TableState) ApplyRow(table string, cols []kismetdb.Column, row kismetdb.Row) Outcome {
	c := s.countsFor(table)
	c.Seen++

	switch table {
	case TablePackets:
		key := packetKeyOf(row)
		if _, dup := s.packetSeen[key]; dup {
			c.Discarded++
			return OutcomeDiscarded
		}
		s.packetSeen[key] = struct{}{}

	case TableMetadata:
		// Singleton: the table itself is the identity
		if s.metadataRetained {
			c.Discarded++
			return OutcomeDiscarded
		}
		s.metadataRetained = true
	}

	g, ok := s.tables[table]
	if !ok {
		g = &genericTable{name: table, seen: make(map[string]bool)}
		s.tables[table] = g
		s.tableOrder = append(s.tableOrder, table)
	}
	g.observeSchema(cols)
	g.rows = append(g.rows, row)

	c.Inserted++
	return OutcomeInserted
}

// packetKeyOf extracts the composite identity from a packet row. Missing
// or mistyped key columns read as zero values; the dedup is exact-match,
// so that only groups genuinely indistinguishable rows.
func packetKeyOf(row kismetdb.Row) packetKey {
	return packetKey{
		tsSec:     asInt64(row.Value("ts_sec")),
		tsUsec:    asInt64(row.Value("ts_usec")),
		sourceMAC: asString(row.Value("sourcemac")),
		destMAC:   asString(row.Value("destmac")),
		lat:       asFloat64(row.Value("lat")),
		lon:       asFloat64(row.Value("lon")),
	}
}

// Devices returns the final device documents in write order: merged
// records in first-seen order, then orphans in arrival order.
func (s *TableState) Devices() []devjson.Object {
	out := make([]devjson.Object, 0, len(s.deviceOrder)+len(s.orphans))
	for _, mac := range s.deviceOrder {
		out = append(out, s.devices[mac])
	}
	out = append(out, s.orphans...)
	return out
}

// DeviceCount returns the number of retained device rows (unique
// addresses plus orphans).
func (s *TableState) DeviceCount() int {
	return len(s.deviceOrder) + len(s.orphans)
}

// OrphanCount returns the number of retained empty-address rows.
func (s *TableState) OrphanCount() int {
	return len(s.orphans)
}

// GenericTables returns the accumulated non-device tables in first-seen
// order, ready for the destination writer.
func (s *TableState) GenericTables() []kismetdb.GenericTable {
	out := make([]kismetdb.GenericTable, 0, len(s.tableOrder))
	for _, name := range s.tableOrder {
		g := s.tables[name]
		out = append(out, kismetdb.GenericTable{
			Name:    g.name,
			Columns: g.columns,
			Rows:    g.rows,
		})
	}
	return out
}

// HasMetadata reports whether any source contributed a metadata row.
func (s *TableState) HasMetadata() bool {
	return s.metadataRetained
}

// HasGenericRows reports whether any concatenated table retained rows.
func (s *TableState) HasGenericRows() bool {
	for _, g := range s.tables {
		if len(g.rows) > 0 {
			return true
		}
	}
	return false
}

// Counts returns a copy of the per-table accounting.
func (s *TableState) Counts() map[string]TableCounts {
	out := make(map[string]TableCounts, len(s.counts))
	for name, c := range s.counts {
		out[name] = *c
	}
	return out
}

// asInt64 reads a driver value as int64, tolerating float-typed storage.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// asFloat64 reads a driver value as float64, tolerating int-typed storage.
func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// asString reads a driver value as string, tolerating blob-typed storage.
func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}
