// Package pairing implements the Pair Matcher (§4.4): turning a stream of
// search.RawMatch header/footer hits into CarveCandidate ranges,
// one candidate per header hit, using the nearest-in-range footer.
//
// Grounded on original_source's search/pairing.rs - its MatchPair/
// preprocess_config shape is where pattern.IDEntry and this package's
// per-type bucketing come from - but deliberately not its PairNext/
// PairLast distinction: per DESIGN.md's Open Question decisions this
// implementation always applies nearest-footer-wins, matching spec.md
// §4.4's own, simplified tie-break rule.
package pairing

import (
	"sort"

	"github.com/Will-Banksy/carvekit/pattern"
	"github.com/Will-Banksy/carvekit/search"
)

// TerminatorKind distinguishes why a CarveCandidate's range ends where it
// does.
type TerminatorKind int

const (
	// Footer means an in-range footer match closed the candidate.
	Footer TerminatorKind = iota
	// MaxLength means no footer closed the candidate; it was cut off at
	// the header's configured max_length instead.
	MaxLength
)

// CarveCandidate is one candidate file range: a header hit paired with
// whatever closed it (§3).
type CarveCandidate struct {
	FileType         *pattern.FileTypeSpec
	HeaderOffset     uint64
	TerminatorOffset uint64
	TerminatorKind   TerminatorKind
}

// Pair runs the Pair Matcher over matches using idx (built by
// pattern.BuildIndex) to resolve each match's pattern_id back to a file
// type and header/footer role. Per §4.4, headers may overlap and each
// produces its own candidate - duplicates are not suppressed here, the
// Validator Framework decides.
func Pair(matches []search.RawMatch, idx pattern.IDIndex) []CarveCandidate {
	type bucket struct {
		headers []search.RawMatch
		footers []search.RawMatch
	}
	buckets := make(map[*pattern.FileTypeSpec]*bucket)

	for _, m := range matches {
		entry, ok := idx[m.PatternID]
		if !ok {
			continue // pattern not registered to any file type - shouldn't happen, but not this package's job to flag
		}
		b, ok := buckets[entry.Type]
		if !ok {
			b = &bucket{}
			buckets[entry.Type] = b
		}
		switch entry.Part {
		case pattern.Header:
			b.headers = append(b.headers, m)
		case pattern.Footer:
			b.footers = append(b.footers, m)
		}
	}

	var out []CarveCandidate
	for ft, b := range buckets {
		sort.Slice(b.footers, func(i, j int) bool {
			return b.footers[i].StartOffset < b.footers[j].StartOffset
		})

		for _, h := range b.headers {
			cand, ok := pairOne(ft, h, b.footers)
			if ok {
				out = append(out, cand)
			}
		}
	}

	return out
}

// pairOne applies §4.4's rules to a single header hit against its file
// type's sorted footer hits.
func pairOne(ft *pattern.FileTypeSpec, header search.RawMatch, sortedFooters []search.RawMatch) (CarveCandidate, bool) {
	if !ft.HasFooter() {
		return CarveCandidate{
			FileType:         ft,
			HeaderOffset:     header.StartOffset,
			TerminatorOffset: header.StartOffset + ft.MaxLength,
			TerminatorKind:   MaxLength,
		}, true
	}

	footer, found := nearestFooterInRange(header, ft.MaxLength, sortedFooters)
	if found {
		return CarveCandidate{
			FileType:         ft,
			HeaderOffset:     header.StartOffset,
			TerminatorOffset: footer.EndOffset,
			TerminatorKind:   Footer,
		}, true
	}

	if ft.RequiresFooter {
		return CarveCandidate{}, false
	}

	return CarveCandidate{
		FileType:         ft,
		HeaderOffset:     header.StartOffset,
		TerminatorOffset: header.StartOffset + ft.MaxLength,
		TerminatorKind:   MaxLength,
	}, true
}

// nearestFooterInRange finds the footer with the smallest start offset
// strictly greater than header's start offset, bounded by maxLength when
// maxLength is nonzero (a zero max_length on a footer-bearing type means
// unbounded range - the footer may appear anywhere downstream).
func nearestFooterInRange(header search.RawMatch, maxLength uint64, sortedFooters []search.RawMatch) (search.RawMatch, bool) {
	lo := header.StartOffset + 1
	var hi uint64
	unbounded := maxLength == 0
	if !unbounded {
		hi = header.StartOffset + maxLength
	}

	// sortedFooters is sorted ascending by StartOffset; the first one at or
	// past lo is the nearest candidate.
	i := sort.Search(len(sortedFooters), func(i int) bool {
		return sortedFooters[i].StartOffset >= lo
	})
	if i >= len(sortedFooters) {
		return search.RawMatch{}, false
	}

	f := sortedFooters[i]
	if !unbounded && f.EndOffset > hi {
		return search.RawMatch{}, false
	}
	return f, true
}
