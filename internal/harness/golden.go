package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kismerge/internal/devjson"
)

// AssertGolden compares the merged device documents against the scenario's
// golden file at testdata/golden/{scenario.Name}.golden.
//
// The snapshot is serialized canonically (sorted keys, fixed number
// formatting), so the comparison is byte-stable across runs and platforms.
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) {
	t.Helper()

	devices := make(devjson.Array, len(result.Devices))
	for i, doc := range result.Devices {
		devices[i] = doc
	}
	snapshot := devjson.Object{
		"devices":  devices,
		"scenario": devjson.Str(scenario.Name),
	}

	data, err := devjson.MarshalCanonical(snapshot)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, append(data, '\n'))
}
