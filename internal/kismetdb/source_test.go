package kismetdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/kismerge/internal/testutil"
)

func buildTestCapture(t *testing.T, c testutil.Capture) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.kismet")
	testutil.BuildCapture(t, path, c)
	return path
}

func TestOpenSource_MissingFile(t *testing.T) {
	_, err := OpenSource(filepath.Join(t.TempDir(), "nope.kismet"))
	if err == nil {
		t.Fatal("OpenSource() succeeded on a missing file")
	}
}

func TestOpenSource_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.kismet")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := OpenSource(path)
	if err == nil {
		t.Fatal("OpenSource() succeeded on a non-database file")
	}
}

func TestOpenSource_DoesNotCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.kismet")
	_, _ = OpenSource(path)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("read-only open created %s", path)
	}
}

func TestTables(t *testing.T) {
	path := buildTestCapture(t, testutil.Capture{
		Devices:  []string{`{"kismet.device.base.macaddr": "AA:BB:CC:DD:EE:FF"}`},
		Packets:  []testutil.Packet{{TsSec: 100, SourceMAC: "AA", DestMAC: "BB"}},
		Metadata: &testutil.Metadata{Version: "2023.07.R1", DBVersion: 6},
	})

	s, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource() failed: %v", err)
	}
	defer s.Close()

	tables, err := s.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables() failed: %v", err)
	}

	want := map[string]bool{"devices": false, "packets": false, "KISMET": false}
	for _, name := range tables {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("table %q missing from Tables() result %v", name, tables)
		}
	}
}

func TestColumns(t *testing.T) {
	path := buildTestCapture(t, testutil.Capture{
		Devices: []string{`{}`},
	})

	s, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource() failed: %v", err)
	}
	defer s.Close()

	cols, err := s.Columns(context.Background(), "devices")
	if err != nil {
		t.Fatalf("Columns() failed: %v", err)
	}

	if len(cols) != 2 {
		t.Fatalf("got %d columns, want 2: %v", len(cols), cols)
	}
	if cols[0].Name != "devmac" || cols[0].Type != "TEXT" {
		t.Errorf("cols[0] = %+v, want devmac TEXT", cols[0])
	}
	if cols[1].Name != "device" || cols[1].Type != "BLOB" {
		t.Errorf("cols[1] = %+v, want device BLOB", cols[1])
	}
}

func TestForEachRow_StorageOrder(t *testing.T) {
	path := buildTestCapture(t, testutil.Capture{
		Devices: []string{
			`{"kismet.device.base.macaddr": "11:11:11:11:11:11"}`,
			`{"kismet.device.base.macaddr": "22:22:22:22:22:22"}`,
			`{"kismet.device.base.macaddr": "33:33:33:33:33:33"}`,
		},
	})

	s, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource() failed: %v", err)
	}
	defer s.Close()

	var macs []string
	err = s.ForEachRow(context.Background(), "devices", func(row Row) error {
		mac, _ := row.Value("devmac").(string)
		macs = append(macs, mac)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachRow() failed: %v", err)
	}

	want := []string{"11:11:11:11:11:11", "22:22:22:22:22:22", "33:33:33:33:33:33"}
	if len(macs) != len(want) {
		t.Fatalf("got %d rows, want %d", len(macs), len(want))
	}
	for i := range want {
		if macs[i] != want[i] {
			t.Errorf("row %d: got %q, want %q", i, macs[i], want[i])
		}
	}
}

func TestForEachRow_CallbackErrorStopsScan(t *testing.T) {
	path := buildTestCapture(t, testutil.Capture{
		Devices: []string{`{}`, `{}`, `{}`},
	})

	s, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource() failed: %v", err)
	}
	defer s.Close()

	stop := context.Canceled // any sentinel works; it must come back unchanged
	count := 0
	err = s.ForEachRow(context.Background(), "devices", func(Row) error {
		count++
		return stop
	})
	if err != stop {
		t.Errorf("ForEachRow() returned %v, want callback error unchanged", err)
	}
	if count != 1 {
		t.Errorf("callback ran %d times after error, want 1", count)
	}
}

func TestRow_ValueMissingColumn(t *testing.T) {
	row := Row{Columns: []string{"a"}, Values: []any{int64(1)}}
	if got := row.Value("b"); got != nil {
		t.Errorf("Value(missing) = %v, want nil", got)
	}
}

func TestCountRows(t *testing.T) {
	path := buildTestCapture(t, testutil.Capture{
		Devices: []string{`{}`, `{}`},
	})

	s, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource() failed: %v", err)
	}
	defer s.Close()

	n, err := s.CountRows(context.Background(), "devices")
	if err != nil {
		t.Fatalf("CountRows() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("CountRows() = %d, want 2", n)
	}
}
