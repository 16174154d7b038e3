package testutil

import "time"

// FixedClock returns a predetermined instant from Now.
//
// The destination writer stamps the synthesized metadata row with the merge
// time; pinning the clock keeps that row, and golden files derived from it,
// deterministic across runs.
type FixedClock struct {
	Instant time.Time
}

// NewFixedClock creates a clock pinned to the given instant.
func NewFixedClock(instant time.Time) *FixedClock {
	return &FixedClock{Instant: instant}
}

// Now returns the pinned instant.
func (c *FixedClock) Now() time.Time {
	return c.Instant
}
