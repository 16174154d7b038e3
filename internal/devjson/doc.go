// Package devjson models the serialized device documents stored in Kismet
// capture databases.
//
// A device document is a loosely typed tree of dotted, namespaced fields
// ("kismet.device.base.macaddr" and friends). The merge engine only
// understands a small sub-schema of it; everything else must survive a merge
// untouched. To make that safe, devjson represents documents as a sealed
// variant type with tolerant accessors: a missing or mistyped field reads as
// absent rather than failing, per the capture format's forward-compatibility
// expectations.
//
// Serialization back to the destination store goes through MarshalCanonical,
// which produces byte-identical output for equal documents regardless of map
// iteration order.
package devjson
