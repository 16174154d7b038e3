package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kismerge/internal/testutil"
)

func buildPair(t *testing.T, dir string) (a, b string) {
	t.Helper()
	a = filepath.Join(dir, "a.kismet")
	b = filepath.Join(dir, "b.kismet")

	testutil.BuildCapture(t, a, testutil.Capture{Devices: []string{
		testutil.DeviceJSON(t, map[string]any{
			"kismet.device.base.macaddr":       "AA:BB:CC:DD:EE:FF",
			"kismet.device.base.first_time":    100,
			"kismet.device.base.last_time":     200,
			"kismet.device.base.packets.total": 5,
		}),
	}})
	testutil.BuildCapture(t, b, testutil.Capture{Devices: []string{
		testutil.DeviceJSON(t, map[string]any{
			"kismet.device.base.macaddr":       "AA:BB:CC:DD:EE:FF",
			"kismet.device.base.first_time":    150,
			"kismet.device.base.last_time":     300,
			"kismet.device.base.packets.total": 7,
		}),
		testutil.DeviceJSON(t, map[string]any{
			"kismet.device.base.macaddr": "11:22:33:44:55:66",
		}),
	}})
	return a, b
}

func execute(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return out.String(), err
}

func TestMergeCommand_TextReport(t *testing.T) {
	dir := t.TempDir()
	a, b := buildPair(t, dir)
	out := filepath.Join(dir, "merged.kismet")

	stdout, err := execute(t, "merge", a, b, "-o", out)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Merged 2 file(s) into "+out)
	assert.Contains(t, stdout, "Unique devices: 2")
	assert.Contains(t, stdout, "devices: 3 seen, 2 inserted, 1 merged")
	assert.Contains(t, stdout, "Run ID: ")
	assert.FileExists(t, out)
}

func TestMergeCommand_JSONReport(t *testing.T) {
	dir := t.TempDir()
	a, b := buildPair(t, dir)
	out := filepath.Join(dir, "merged.kismet")

	stdout, err := execute(t, "--format", "json", "merge", a, b, "-o", out)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), data["files_processed"])
	assert.Equal(t, float64(2), data["unique_devices"])
	assert.Equal(t, out, data["destination"])
}

func TestMergeCommand_GlobInput(t *testing.T) {
	dir := t.TempDir()
	buildPair(t, dir)
	out := filepath.Join(dir, "merged.kismet")

	stdout, err := execute(t, "merge", filepath.Join(dir, "*.kismet"), "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Merged 2 file(s)")
}

func TestMergeCommand_NoInputsResolved(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "merge", filepath.Join(dir, "*.kismet"),
		"-o", filepath.Join(dir, "merged.kismet"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMergeCommand_NoDataIsFailure(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.kismet")
	testutil.BuildCapture(t, empty, testutil.Capture{})

	_, err := execute(t, "merge", empty, "-o", filepath.Join(dir, "merged.kismet"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestMergeCommand_OutputFlagRequired(t *testing.T) {
	dir := t.TempDir()
	a, _ := buildPair(t, dir)

	_, err := execute(t, "merge", a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output")
}

func TestMergeCommand_AllTables(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.kismet")
	out := filepath.Join(dir, "merged.kismet")

	testutil.BuildCapture(t, a, testutil.Capture{
		Devices: []string{testutil.DeviceJSON(t, map[string]any{
			"kismet.device.base.macaddr": "AA:BB:CC:DD:EE:FF",
		})},
		Packets: []testutil.Packet{
			{TsSec: 100, TsUsec: 500, SourceMAC: "AA", DestMAC: "BB", Lat: 1, Lon: 2, Signal: -60},
		},
	})

	stdout, err := execute(t, "merge", a, "-o", out, "--all-tables")
	require.NoError(t, err)
	assert.Contains(t, stdout, "packets: 1 seen, 1 inserted")
}
