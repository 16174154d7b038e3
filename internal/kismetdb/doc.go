// Package kismetdb reads and writes Kismet capture databases.
//
// Capture files are SQLite databases holding a heterogeneous set of tables:
// devices (one serialized document per row), packets, data, alerts,
// snapshots, the KISMET metadata singleton, and arbitrary others. Source
// handles read a capture without modifying it; Write materializes a merged
// result into a fresh destination file in a single transaction, building at
// a temporary path and renaming into place so a failed run never clobbers a
// pre-existing destination.
package kismetdb
