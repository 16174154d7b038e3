package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kismerge/internal/devjson"
	"github.com/roach88/kismerge/internal/kismetdb"
	"github.com/roach88/kismerge/internal/merge"
	"github.com/roach88/kismerge/internal/testutil"
)

// Pinned run identity: golden files embed nothing derived from these, but
// keeping them fixed makes any accidental leak into the output obvious.
const (
	scenarioRunID = "01900000-0000-7000-8000-000000000000"
)

var scenarioInstant = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// Result holds everything a scenario's assertions and goldens consume.
type Result struct {
	// Report is the orchestrator's run summary.
	Report *merge.Report

	// Devices are the merged documents read back from the destination, in
	// row order.
	Devices []devjson.Object
}

// Run materializes the scenario's captures, merges them, and reads the
// result back. Fails the test on any step a well-formed scenario should
// never trip over.
func Run(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	dir := t.TempDir()
	sources := make([]string, len(scenario.Sources))
	for i, src := range scenario.Sources {
		path := filepath.Join(dir, fmt.Sprintf("source-%d.kismet", i))
		testutil.BuildCapture(t, path, buildFixture(t, src))
		sources[i] = path
	}

	dest := filepath.Join(dir, "merged.kismet")
	report, err := merge.Run(context.Background(), merge.Options{
		Sources:     sources,
		Destination: dest,
		AllTables:   scenario.AllTables,
		RunIDs:      merge.NewFixedGenerator(scenarioRunID),
		Clock:       testutil.NewFixedClock(scenarioInstant),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err, "scenario %s: merge failed", scenario.Name)

	result := &Result{
		Report:  report,
		Devices: readMergedDevices(t, dest),
	}

	verifyExpectations(t, scenario, result)
	return result
}

// buildFixture converts a scenario source into a fixture capture.
func buildFixture(t *testing.T, src SourceSpec) testutil.Capture {
	t.Helper()

	c := testutil.Capture{}
	for _, fields := range src.Devices {
		c.Devices = append(c.Devices, testutil.DeviceJSON(t, fields))
	}
	for _, p := range src.Packets {
		c.Packets = append(c.Packets, testutil.Packet{
			TsSec:     p.TsSec,
			TsUsec:    p.TsUsec,
			SourceMAC: p.SourceMAC,
			DestMAC:   p.DestMAC,
			Lat:       p.Lat,
			Lon:       p.Lon,
			Signal:    p.Signal,
		})
	}
	return c
}

// readMergedDevices decodes every device document from the destination.
func readMergedDevices(t *testing.T, path string) []devjson.Object {
	t.Helper()

	src, err := kismetdb.OpenSource(path)
	require.NoError(t, err)
	defer src.Close()

	docs := []devjson.Object{}
	err = src.ForEachRow(context.Background(), "devices", func(row kismetdb.Row) error {
		blob, ok := row.Value("device").([]byte)
		require.True(t, ok, "device column should be a blob")
		doc, err := devjson.DecodeObject(blob)
		require.NoError(t, err)
		docs = append(docs, doc)
		return nil
	})
	require.NoError(t, err)
	return docs
}

// verifyExpectations checks the scenario's expected counts against the
// result.
func verifyExpectations(t *testing.T, scenario *Scenario, result *Result) {
	t.Helper()

	e := scenario.Expect
	if e == nil {
		return
	}

	if e.Devices != nil {
		assert.Len(t, result.Devices, *e.Devices, "scenario %s: device count", scenario.Name)
	}
	if e.Orphans != nil {
		assert.Equal(t, *e.Orphans, result.Report.OrphanDevices, "scenario %s: orphan count", scenario.Name)
	}
	if e.Merged != nil {
		assert.Equal(t, *e.Merged, result.Report.Tables["devices"].Merged, "scenario %s: merge events", scenario.Name)
	}
	if e.PacketsKept != nil {
		assert.Equal(t, *e.PacketsKept, result.Report.Tables["packets"].Inserted, "scenario %s: packets kept", scenario.Name)
	}
}
