package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a declarative merge conformance test: the input
// captures to build, the merge mode, and the expected result counts.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Sources are the input captures, in merge order.
	Sources []SourceSpec `yaml:"sources"`

	// AllTables enables the every-table merge mode.
	AllTables bool `yaml:"all_tables,omitempty"`

	// Expect holds the expected result counts. Unset fields are not
	// checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// SourceSpec describes one fixture capture.
type SourceSpec struct {
	// Devices holds one field map per device row. Dotted capture keys,
	// e.g. "kismet.device.base.macaddr".
	Devices []map[string]any `yaml:"devices,omitempty"`

	// Packets holds the packets table rows, when the scenario needs one.
	Packets []PacketSpec `yaml:"packets,omitempty"`
}

// PacketSpec is one fixture packet row.
type PacketSpec struct {
	TsSec     int64   `yaml:"ts_sec"`
	TsUsec    int64   `yaml:"ts_usec"`
	SourceMAC string  `yaml:"source_mac"`
	DestMAC   string  `yaml:"dest_mac"`
	Lat       float64 `yaml:"lat,omitempty"`
	Lon       float64 `yaml:"lon,omitempty"`
	Signal    int64   `yaml:"signal,omitempty"`
}

// ExpectClause holds expected result counts. Pointer fields so that zero
// is a checkable expectation distinct from "not checked".
type ExpectClause struct {
	// Devices is the expected total retained device rows.
	Devices *int `yaml:"devices,omitempty"`

	// Orphans is the expected number of empty-address rows among them.
	Orphans *int `yaml:"orphans,omitempty"`

	// Merged is the expected number of merge events on the devices table.
	Merged *int64 `yaml:"merged,omitempty"`

	// PacketsKept is the expected number of retained packet rows.
	PacketsKept *int64 `yaml:"packets_kept,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently weakening a scenario.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Sources) == 0 {
		return fmt.Errorf("sources list is required and must be non-empty")
	}

	for i, src := range s.Sources {
		if len(src.Devices) == 0 && len(src.Packets) == 0 {
			return fmt.Errorf("sources[%d]: at least one device or packet is required", i)
		}
		for j, dev := range src.Devices {
			if len(dev) == 0 {
				return fmt.Errorf("sources[%d].devices[%d]: field map must be non-empty", i, j)
			}
		}
		if len(src.Packets) > 0 && !s.AllTables {
			return fmt.Errorf("sources[%d]: packets require all_tables mode", i)
		}
	}

	return nil
}
