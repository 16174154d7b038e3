package merge

import (
	"github.com/roach88/kismerge/internal/devjson"
)

// MergeDevice combines two documents describing the same device.
//
// Neither input is mutated; the result is a fresh document. Field rules:
//
//   - packet/data/byte counters: sum of both sides
//   - first_time: minimum non-zero value
//   - last_time: maximum value
//   - signal block: max of maxes, min of mins, last_signal from the side
//     whose record-level last_time is later (ties favor incoming)
//   - location block: adopted wholesale from incoming only when incoming
//     has a populated averaged fix and existing does not
//   - unrecognized fields: existing side wins; fields only incoming has
//     are adopted
//
// Every rule except the unrecognized-field passthrough is associative and
// commutative over any grouping of the same inputs. The most-recent-wins
// comparison always uses each input's own record-level last_time, captured
// before any field is written; consulting a partially merged intermediate
// would break that invariant.
//
// Malformed fields (non-numeric counters, mistyped blocks) read as absent
// and never fail the merge.
func MergeDevice(existing, incoming devjson.Object) devjson.Object {
	existingLast, _ := existing.Int64(devjson.KeyLastTime)
	incomingLast, _ := incoming.Int64(devjson.KeyLastTime)
	incomingOwnsLast := incomingLast >= existingLast

	merged := existing.Clone()

	mergeCounters(merged, existing, incoming)
	mergeFirstTime(merged, existing, incoming)

	// last_time: max, absent treated as 0
	merged[devjson.KeyLastTime] = devjson.Int(max(existingLast, incomingLast))

	mergeSignal(merged, existing, incoming, incomingOwnsLast)
	mergeLocation(merged, existing, incoming)
	mergePassthrough(merged, incoming)

	return merged
}

// counterKeys are the additive volume fields.
var counterKeys = []string{
	devjson.KeyPacketsTotal,
	devjson.KeyPacketsData,
	devjson.KeyDataSize,
}

func mergeCounters(merged, existing, incoming devjson.Object) {
	for _, key := range counterKeys {
		a, _ := existing.Int64(key)
		b, _ := incoming.Int64(key)
		merged[key] = devjson.Int(a + b)
	}
}

func mergeFirstTime(merged, existing, incoming devjson.Object) {
	in, _ := incoming.Int64(devjson.KeyFirstTime)
	if in <= 0 {
		// A zero first-seen means the source never observed one; it must
		// not drag the merged value down to 0.
		return
	}
	ex, _ := existing.Int64(devjson.KeyFirstTime)
	if ex == 0 || in < ex {
		merged[devjson.KeyFirstTime] = devjson.Int(in)
	}
}

func mergeSignal(merged, existing, incoming devjson.Object, incomingOwnsLast bool) {
	inSig, inOK := incoming.Obj(devjson.KeySignal)
	if !inOK {
		return // keep existing's block, present or not
	}

	exSig, exOK := existing.Obj(devjson.KeySignal)
	if !exOK {
		merged[devjson.KeySignal] = inSig.Clone()
		return
	}

	// merged already holds a clone of existing's block
	outSig, _ := merged.Obj(devjson.KeySignal)

	if inMax, ok := inSig.Int64(devjson.KeySignalMax); ok {
		exMax, exHas := exSig.Int64(devjson.KeySignalMax)
		if !exHas || inMax > exMax {
			outSig[devjson.KeySignalMax] = devjson.Int(inMax)
		}
	}

	if inMin, ok := inSig.Int64(devjson.KeySignalMin); ok {
		exMin, exHas := exSig.Int64(devjson.KeySignalMin)
		if !exHas || inMin < exMin {
			outSig[devjson.KeySignalMin] = devjson.Int(inMin)
		}
	}

	if incomingOwnsLast {
		if last, present := inSig[devjson.KeySignalLast]; present {
			outSig[devjson.KeySignalLast] = devjson.CloneValue(last)
		}
	}
}

func mergeLocation(merged, existing, incoming devjson.Object) {
	inLoc, ok := incoming.Obj(devjson.KeyLocation)
	if !ok || !devjson.HasAvgLocation(inLoc) {
		return
	}

	exLoc, exOK := existing.Obj(devjson.KeyLocation)
	if exOK && devjson.HasAvgLocation(exLoc) {
		return
	}

	// Incoming has a valid fix, existing does not: adopt wholesale. Fixes
	// are never geometrically averaged across merges.
	merged[devjson.KeyLocation] = inLoc.Clone()
}

// mergePassthrough adopts fields only the incoming side carries. Recognized
// fields were already handled; the signal and location blocks are excluded
// because their adoption rules are conditional, not presence-based.
func mergePassthrough(merged, incoming devjson.Object) {
	for key, val := range incoming {
		switch key {
		case devjson.KeySignal, devjson.KeyLocation:
			continue
		}
		if _, present := merged[key]; !present {
			merged[key] = devjson.CloneValue(val)
		}
	}
}
