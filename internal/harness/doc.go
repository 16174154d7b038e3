// Package harness runs declarative merge scenarios for conformance tests.
//
// A scenario is a YAML file describing a set of input captures and the
// expected shape of the merged result. The harness materializes the
// captures as fixture databases, runs a full merge with a pinned run id
// and clock, and reads the merged device documents back out. Golden files
// hold the canonical serialization of the result, so any change to the
// merge policy's observable output shows up as a golden diff.
package harness
