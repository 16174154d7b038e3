package devjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDevice() Object {
	return Object{
		KeyMACAddr:      Str("AA:BB:CC:DD:EE:FF"),
		KeyDevKey:       Str("4202770D_AABBCCDDEEFF"),
		KeyPhyName:      Str("IEEE802.11"),
		KeyType:         Str("Wi-Fi AP"),
		KeyFirstTime:    Int(100),
		KeyLastTime:     Int(200),
		KeyPacketsTotal: Int(5),
		KeyPacketsData:  Int(3),
		KeyDataSize:     Int(1024),
		KeySignal: Object{
			KeySignalMax:  Int(-40),
			KeySignalMin:  Int(-80),
			KeySignalLast: Int(-50),
		},
		KeyLocation: Object{
			KeyLocAvg: Object{
				KeyGeopoint: Array{Float(-71.05), Float(42.36)},
			},
			KeyLocMin: Object{
				KeyGeopoint: Array{Float(-71.10), Float(42.30)},
			},
			KeyLocMax: Object{
				KeyGeopoint: Array{Float(-71.00), Float(42.40)},
			},
		},
	}
}

func TestMAC(t *testing.T) {
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", MAC(testDevice()))
	assert.Equal(t, "", MAC(Object{}))
	assert.Equal(t, "", MAC(Object{KeyMACAddr: Int(42)}), "mistyped address is absent")
}

func TestSummarize_FullDocument(t *testing.T) {
	s := Summarize(testDevice())

	assert.Equal(t, int64(100), s.FirstTime)
	assert.Equal(t, int64(200), s.LastTime)
	assert.Equal(t, "4202770D_AABBCCDDEEFF", s.DevKey)
	assert.Equal(t, "IEEE802.11", s.PhyName)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", s.MAC)
	assert.Equal(t, "Wi-Fi AP", s.Type)
	assert.Equal(t, int64(-40), s.StrongestSignal)
	assert.Equal(t, int64(1024), s.BytesData)

	// geopoint is [lon, lat]
	assert.Equal(t, -71.05, s.AvgLon)
	assert.Equal(t, 42.36, s.AvgLat)
	assert.Equal(t, -71.10, s.MinLon)
	assert.Equal(t, 42.30, s.MinLat)
	assert.Equal(t, -71.00, s.MaxLon)
	assert.Equal(t, 42.40, s.MaxLat)
}

func TestSummarize_SparseDocument(t *testing.T) {
	s := Summarize(Object{
		KeyMACAddr: Str("11:22:33:44:55:66"),
	})

	assert.Equal(t, "11:22:33:44:55:66", s.MAC)
	assert.Zero(t, s.FirstTime)
	assert.Zero(t, s.StrongestSignal)
	assert.Zero(t, s.AvgLat)
	assert.Zero(t, s.AvgLon)
	assert.Empty(t, s.Type)
}

func TestSummarize_MalformedGeopoint(t *testing.T) {
	doc := Object{
		KeyLocation: Object{
			KeyLocAvg: Object{
				KeyGeopoint: Array{Float(-71.05)}, // missing lat
			},
			KeyLocMin: Object{
				KeyGeopoint: Str("not an array"),
			},
		},
	}

	s := Summarize(doc)
	assert.Equal(t, -71.05, s.AvgLon)
	assert.Zero(t, s.AvgLat)
	assert.Zero(t, s.MinLon)
	assert.Zero(t, s.MinLat)
}

func TestHasAvgLocation(t *testing.T) {
	tests := []struct {
		name string
		loc  Object
		want bool
	}{
		{"populated fix", Object{KeyLocAvg: Object{KeyGeopoint: Array{Float(1), Float(2)}}}, true},
		{"empty fix object", Object{KeyLocAvg: Object{}}, false},
		{"absent", Object{}, false},
		{"null fix", Object{KeyLocAvg: Null{}}, false},
		{"nonzero scalar", Object{KeyLocAvg: Int(1)}, true},
		{"zero scalar", Object{KeyLocAvg: Int(0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, HasAvgLocation(tt.loc))
		})
	}
}
