// Package merge implements the consolidation engine: the per-field device
// merge policy, the per-table identity and conflict rules, and the
// orchestrator that drives N source captures into one destination.
//
// A run is single-threaded and stateless on entry. Sources are processed
// strictly in the order supplied; that order defines every first-one-wins
// rule, while sum/min/max/most-recent-wins fields converge to the same value
// under any ordering. Nothing is written to the destination until every
// source has been consumed, so a run that fails early leaves any
// pre-existing destination file untouched.
package merge
