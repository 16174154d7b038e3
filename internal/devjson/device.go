package devjson

// Dotted field names of the recognized device sub-schema. These must match
// the capture format's key names exactly; existing captures are the
// compatibility contract.
const (
	KeyMACAddr      = "kismet.device.base.macaddr"
	KeyDevKey       = "kismet.device.base.key"
	KeyPhyName      = "kismet.device.base.phyname"
	KeyFirstTime    = "kismet.device.base.first_time"
	KeyLastTime     = "kismet.device.base.last_time"
	KeyPacketsTotal = "kismet.device.base.packets.total"
	KeyPacketsData  = "kismet.device.base.packets.data"
	KeyDataSize     = "kismet.device.base.datasize"
	KeyType         = "kismet.device.base.type"
	KeySignal       = "kismet.device.base.signal"
	KeyLocation     = "kismet.device.base.location"

	KeySignalMax  = "kismet.common.signal.max_signal"
	KeySignalMin  = "kismet.common.signal.min_signal"
	KeySignalLast = "kismet.common.signal.last_signal"

	KeyLocAvg   = "kismet.common.location.avg_loc"
	KeyLocMin   = "kismet.common.location.min_loc"
	KeyLocMax   = "kismet.common.location.max_loc"
	KeyGeopoint = "kismet.common.location.geopoint"
)

// MAC returns the document's hardware address, or "" when absent.
// An empty MAC marks an orphan record: preserved, never deduplicated.
func MAC(doc Object) string {
	mac, _ := doc.Str(KeyMACAddr)
	return mac
}

// Summary holds the flattened columns of the destination devices table,
// extracted from a merged document. Field absence flattens to the zero
// value, matching the capture format's own summary rows.
type Summary struct {
	FirstTime       int64
	LastTime        int64
	DevKey          string
	PhyName         string
	MAC             string
	StrongestSignal int64
	MinLat          float64
	MinLon          float64
	MaxLat          float64
	MaxLon          float64
	AvgLat          float64
	AvgLon          float64
	BytesData       int64
	Type            string
}

// Summarize extracts the flattened summary columns from a device document.
// Tolerant of absent blocks: a device without a signal block has
// StrongestSignal 0, one without location fixes has zero coordinates.
func Summarize(doc Object) Summary {
	var s Summary

	s.FirstTime, _ = doc.Int64(KeyFirstTime)
	s.LastTime, _ = doc.Int64(KeyLastTime)
	s.DevKey, _ = doc.Str(KeyDevKey)
	s.PhyName, _ = doc.Str(KeyPhyName)
	s.MAC, _ = doc.Str(KeyMACAddr)
	s.BytesData, _ = doc.Int64(KeyDataSize)
	s.Type, _ = doc.Str(KeyType)

	if signal, ok := doc.Obj(KeySignal); ok {
		s.StrongestSignal, _ = signal.Int64(KeySignalMax)
	}

	if loc, ok := doc.Obj(KeyLocation); ok {
		if avg, ok := loc.Obj(KeyLocAvg); ok {
			s.AvgLon, s.AvgLat = geopoint(avg)
		}
		if minLoc, ok := loc.Obj(KeyLocMin); ok {
			s.MinLon, s.MinLat = geopoint(minLoc)
		}
		if maxLoc, ok := loc.Obj(KeyLocMax); ok {
			s.MaxLon, s.MaxLat = geopoint(maxLoc)
		}
	}

	return s
}

// HasAvgLocation reports whether a location block carries a populated
// averaged fix. The merge policy adopts a location block wholesale only
// from a side that has one.
func HasAvgLocation(loc Object) bool {
	v, present := loc[KeyLocAvg]
	if !present {
		return false
	}
	switch fix := v.(type) {
	case Object:
		return len(fix) > 0
	case Null:
		return false
	default:
		// Non-object avg_loc counts as populated if truthy-numeric
		if n, ok := loc.Float64(KeyLocAvg); ok {
			return n != 0
		}
		return false
	}
}

// geopoint unpacks a location fix's [lon, lat] pair, zero-filling short or
// malformed arrays.
func geopoint(fix Object) (lon, lat float64) {
	arr, ok := fix.Arr(KeyGeopoint)
	if !ok {
		return 0, 0
	}
	coord := func(i int) float64 {
		if i >= len(arr) {
			return 0
		}
		switch v := arr[i].(type) {
		case Int:
			return float64(v)
		case Float:
			return float64(v)
		default:
			return 0
		}
	}
	return coord(0), coord(1)
}
