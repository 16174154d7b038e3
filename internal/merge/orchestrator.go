package merge

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/kismerge/internal/devjson"
	"github.com/roach88/kismerge/internal/kismetdb"
)

// Clock supplies the merge timestamp for the destination's metadata row.
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options configures one merge run.
type Options struct {
	// Sources are the input capture paths, in the order that defines
	// every first-one-wins rule. Must be resolved (no patterns) and
	// non-empty.
	Sources []string

	// Destination is the output capture path. Written only after all
	// sources are consumed, via a temporary sibling file.
	Destination string

	// AllTables routes every table through the policy instead of only
	// the devices table.
	AllTables bool

	// RunIDs overrides the run identifier generator (for tests).
	// Defaults to UUIDv7Generator.
	RunIDs RunIDGenerator

	// Clock overrides the metadata timestamp source (for tests).
	Clock Clock

	// Logger receives progress and warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// Report summarizes a completed run for the caller.
type Report struct {
	Destination    string                 `json:"destination"`
	RunID          string                 `json:"run_id"`
	FilesProcessed int                    `json:"files_processed"`
	FilesSkipped   int                    `json:"files_skipped"`
	UniqueDevices  int                    `json:"unique_devices"`
	OrphanDevices  int                    `json:"orphan_devices,omitempty"`
	Tables         map[string]TableCounts `json:"tables"`
}

// Run executes one merge: open each source in order, stream its tables
// through the per-table policy, then materialize the accumulated state
// into the destination.
//
// An unreadable source is skipped with a warning; a malformed device row
// is dropped, counted, and warned about. Only an empty accumulated result
// (NO_DATA) or a destination failure ends the run in error. Each run is
// independent; no state is shared across invocations.
func Run(ctx context.Context, opts Options) (*Report, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = UUIDv7Generator{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}

	if len(opts.Sources) == 0 {
		return nil, NewInputResolutionError()
	}

	state := NewTableState()
	processed := 0
	skipped := 0

	for _, path := range opts.Sources {
		log.Debug("reading source", "path", path)

		if err := consumeSource(ctx, state, path, opts.AllTables, log); err != nil {
			log.Warn("skipping unreadable source", "path", path, "error", err)
			skipped++
			continue
		}
		processed++
	}

	// Finalize: nothing retained from any source means no output at all
	empty := state.DeviceCount() == 0
	if opts.AllTables {
		empty = empty && !state.HasGenericRows()
	}
	if empty {
		return nil, NewNoDataError()
	}

	runID := runIDs.Generate()
	spec := kismetdb.WriteSpec{
		Devices: state.Devices(),
	}
	if opts.AllTables {
		spec.Tables = state.GenericTables()
	}
	// Device-centric output always carries the synthesized marker; the
	// all-tables output keeps the first source's metadata row and only
	// synthesizes one when no source had any.
	if !opts.AllTables || !state.HasMetadata() {
		spec.Metadata = &kismetdb.MetadataRow{
			Version:      "merged",
			BuildUUID:    runID,
			BuildCompile: clock.Now().UTC().Format(time.RFC3339),
			DBVersion:    6,
		}
	}

	log.Debug("writing destination",
		"path", opts.Destination,
		"devices", state.DeviceCount(),
		"run_id", runID)

	if err := kismetdb.Write(ctx, opts.Destination, spec); err != nil {
		return nil, NewDestinationWriteError(opts.Destination, err)
	}

	report := &Report{
		Destination:    opts.Destination,
		RunID:          runID,
		FilesProcessed: processed,
		FilesSkipped:   skipped,
		UniqueDevices:  state.DeviceCount() - state.OrphanCount(),
		OrphanDevices:  state.OrphanCount(),
		Tables:         state.Counts(),
	}

	log.Info("merge complete",
		"destination", opts.Destination,
		"files", processed,
		"skipped", skipped,
		"devices", state.DeviceCount())

	return report, nil
}

// consumeSource streams one source's tables into the accumulated state.
// Returns an error only when the source as a whole is unreadable; per-row
// problems are counted and logged inside.
func consumeSource(ctx context.Context, state *TableState, path string, allTables bool, log *slog.Logger) error {
	src, err := kismetdb.OpenSource(path)
	if err != nil {
		return NewSourceUnreadableError(path, err)
	}
	defer src.Close()

	tables, err := src.Tables(ctx)
	if err != nil {
		return NewSourceUnreadableError(path, err)
	}

	for _, table := range tables {
		switch {
		case table == TableDevices:
			if err := consumeDevices(ctx, state, src, log); err != nil {
				return err
			}
		case allTables:
			if err := consumeGeneric(ctx, state, src, table); err != nil {
				return err
			}
		}
	}

	return nil
}

// consumeDevices streams the devices table, parsing each row's document.
// Malformed documents are dropped, counted, and warned about; the table
// read continues.
func consumeDevices(ctx context.Context, state *TableState, src *kismetdb.Source, log *slog.Logger) error {
	var fileDevices int64

	err := src.ForEachRow(ctx, TableDevices, func(row kismetdb.Row) error {
		doc, err := parseDeviceRow(row)
		if err != nil {
			state.CountUnparseable(TableDevices)
			perr := NewRecordUnparseableError(src.Path(), TableDevices, err)
			log.Warn("dropping unparseable device record", "error", perr)
			return nil
		}

		state.ApplyDevice(doc)
		fileDevices++
		return nil
	})
	if err != nil {
		return NewSourceUnreadableError(src.Path(), err)
	}

	log.Debug("devices read", "path", src.Path(), "count", fileDevices)
	return nil
}

// parseDeviceRow decodes the serialized document held in a device row's
// device column.
func parseDeviceRow(row kismetdb.Row) (devjson.Object, error) {
	var data []byte
	switch v := row.Value("device").(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil, &MergeError{
			Code:    ErrCodeRecordUnparseable,
			Message: "device column is missing or not a blob",
		}
	}
	return devjson.DecodeObject(data)
}

// consumeGeneric streams any non-device table through the policy,
// capturing its schema for the destination's union schema.
func consumeGeneric(ctx context.Context, state *TableState, src *kismetdb.Source, table string) error {
	cols, err := src.Columns(ctx, table)
	if err != nil {
		return NewSourceUnreadableError(src.Path(), err)
	}

	err = src.ForEachRow(ctx, table, func(row kismetdb.Row) error {
		state.ApplyRow(table, cols, row)
		return nil
	})
	if err != nil {
		return NewSourceUnreadableError(src.Path(), err)
	}

	return nil
}
