package search

import "github.com/Will-Banksy/carvekit/pattern"

// walker tracks one in-flight match attempt: the automaton state it's
// currently in, the fingerprint accumulated so far, and where it started.
type walker struct {
	state    uint32
	id       uint64
	startIdx uint64
}

// CPUSearcher is the portable fallback backend (§4.2 "CPU backend"),
// grounded on original_source's AcCpu: rather than a single state variable,
// it keeps one walker per currently in-flight start offset, advancing every
// walker one byte at a time and spawning a fresh walker at each position
// (state 0's own transition, if any). This is what "Aho-Corasick with
// failure links stripped" looks like when a candidate can begin at every
// position: each walker is independent and failureless, only the driving
// loop is sequential.
type CPUSearcher struct {
	table   *pattern.StateTable
	walkers []walker
}

// NewCPUSearcher builds a CPU-AC backend over table.
func NewCPUSearcher(table *pattern.StateTable) *CPUSearcher {
	return &CPUSearcher{table: table}
}

// Search implements Searcher.
func (s *CPUSearcher) Search(data []byte, dataOffset uint64, overlap int) ([]RawMatch, error) {
	// The overlap prefix was already scanned as the tail of the previous
	// block; walkers spawned there are carried over in s.walkers, so only
	// the byte positions past it can spawn new walkers or produce matches
	// attributable to this call.
	body := data[overlap:]
	bodyOffset := dataOffset + uint64(overlap)

	var matches []RawMatch

	for i := 0; i < len(body); i++ {
		b := body[i]
		absPos := bodyOffset + uint64(i)

		// Advance every in-flight walker. Iterate backward so removing a
		// finished/failed walker by index doesn't skip its neighbour.
		for j := len(s.walkers) - 1; j >= 0; j-- {
			w := &s.walkers[j]
			next, elem := s.table.LookupElem(w.state, b)

			if next == pattern.FailState {
				s.removeWalker(j)
				continue
			}

			w.id = pattern.FingerprintAdd(w.id, elem)

			if next == pattern.TerminalState {
				matches = append(matches, RawMatch{
					PatternID:   w.id,
					StartOffset: w.startIdx,
					EndOffset:   absPos,
				})
				s.removeWalker(j)
				continue
			}

			w.state = next
		}

		// Spawn a new walker starting at this position, if state 0 has any
		// transition on this byte.
		next, elem := s.table.LookupElem(0, b)
		if next == pattern.FailState {
			continue
		}
		id := pattern.FingerprintAdd(pattern.FingerprintInit(), elem)
		if next == pattern.TerminalState {
			// A single-byte pattern matches immediately at this position.
			matches = append(matches, RawMatch{PatternID: id, StartOffset: absPos, EndOffset: absPos})
			continue
		}
		s.walkers = append(s.walkers, walker{state: next, id: id, startIdx: absPos})
	}

	return matches, nil
}

func (s *CPUSearcher) removeWalker(i int) {
	last := len(s.walkers) - 1
	s.walkers[i] = s.walkers[last]
	s.walkers = s.walkers[:last]
}
