// Package search implements the Match Engine (§4.2): two interchangeable
// backends — a portable CPU Aho-Corasick walker and a worker-pool PFAC
// simulation of the GPU backend — both driven by a pattern.StateTable and
// producing the same RawMatch sequence for the same input.
package search

import "github.com/Will-Banksy/carvekit/pattern"

// RawMatch is one confirmed pattern occurrence: the pattern's fingerprint
// and its absolute [start, end] byte range in the underlying stream.
// Offsets are inclusive on both ends, matching spec.md §3's invariant that
// start_offset <= end_offset < stream_length.
type RawMatch struct {
	PatternID   uint64
	StartOffset uint64
	EndOffset   uint64
}

// Searcher is the Match Engine's backend contract: search one Block's
// bytes, given the block's absolute base offset and how many leading bytes
// are overlap carried over from the previous block (so the backend can
// avoid re-reporting a match it already found last call).
//
// CPUSearcher carries state between calls (in-flight walkers spanning a
// block boundary), so a Searcher must be driven with strictly increasing,
// contiguous blocks - it is not safe for concurrent use by multiple readers
// of the same stream.
type Searcher interface {
	// Search scans data (already including the leading overlap bytes) and
	// returns matches whose end_offset lies at or after dataOffset+overlap
	// - i.e. matches not already reported for the previous block's tail. A
	// match straddling the boundary may start inside the overlap.
	Search(data []byte, dataOffset uint64, overlap int) ([]RawMatch, error)
}

// NewSearcher builds the default backend (CPU-AC) over table. GPU-PFAC
// binding is an explicit non-goal (§1); PFACSearcher (pfac.go)
// stands in as the "GPU-shaped" backend, exercising the same failureless,
// per-position-worker algorithm on CPU goroutines rather than compute
// shaders.
func NewSearcher(table *pattern.StateTable) Searcher {
	return NewCPUSearcher(table)
}
