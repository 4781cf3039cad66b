package search

import (
	"reflect"
	"testing"

	"github.com/Will-Banksy/carvekit/pattern"
)

func buildTable(t *testing.T, patterns ...pattern.Pattern) *pattern.StateTable {
	t.Helper()
	b := pattern.NewStateTableBuilder(true)
	for _, p := range patterns {
		b.AddPattern(p)
	}
	tbl, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return tbl
}

func patternFromBytes(bs ...byte) pattern.Pattern {
	elems := make([]pattern.Elem, len(bs))
	for i, b := range bs {
		elems[i] = pattern.Byte(b)
	}
	return pattern.New(elems)
}

func TestCPUSearcherSingle(t *testing.T) {
	buffer := []byte{
		1, 2, 3, 8, 4,
		1, 2, 3, 1, 1,
		2, 1, 2, 3, 0,
		5, 9, 1, 2, 3,
	}

	p := patternFromBytes(1, 2, 3)
	tbl := buildTable(t, p)
	s := NewCPUSearcher(tbl)

	got, err := s.Search(buffer, 0, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	want := []RawMatch{
		{PatternID: p.ID(), StartOffset: 0, EndOffset: 2},
		{PatternID: p.ID(), StartOffset: 5, EndOffset: 7},
		{PatternID: p.ID(), StartOffset: 11, EndOffset: 13},
		{PatternID: p.ID(), StartOffset: 17, EndOffset: 19},
	}

	if !reflect.DeepEqual(sortedByStart(got), want) {
		t.Errorf("Search() = %+v, want %+v", got, want)
	}
}

func TestCPUSearcherWildcard(t *testing.T) {
	buffer := []byte{
		1, 2, 3, 8, 4,
		1, 2, 3, 1, 1,
		2, 1, 2, 3, 0,
		5, 9, 1, 2,
	}

	p := pattern.FromLiteral([]byte{1, 2, 3, '.'}, '.')
	tbl := buildTable(t, p)
	s := NewCPUSearcher(tbl)

	got, err := s.Search(buffer, 0, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	want := []RawMatch{
		{PatternID: p.ID(), StartOffset: 0, EndOffset: 3},
		{PatternID: p.ID(), StartOffset: 5, EndOffset: 8},
		{PatternID: p.ID(), StartOffset: 11, EndOffset: 14},
	}

	if len(got) != len(want) {
		t.Fatalf("Search() got %d matches, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if sortedByStart(got)[i] != want[i] {
			t.Errorf("match %d: got %+v, want %+v", i, sortedByStart(got)[i], want[i])
		}
	}
}

func TestCPUSearcherBlockBoundary(t *testing.T) {
	// A pattern straddling a block boundary must be found exactly once when
	// the caller supplies max_pattern_length-1 bytes of overlap.
	full := []byte{9, 9, 1, 2, 3, 9, 9, 9}
	p := patternFromBytes(1, 2, 3)
	overlap := p.Len() - 1

	tbl := buildTable(t, p)
	s := NewCPUSearcher(tbl)

	var all []RawMatch

	block1 := full[:4] // 9,9,1,2 - pattern not yet complete
	m1, err := s.Search(block1, 0, 0)
	if err != nil {
		t.Fatalf("Search block1 failed: %v", err)
	}
	all = append(all, m1...)

	// block2 starts overlap bytes before offset 4; the reader re-sends those
	// bytes as context, but the walker's own in-flight state already
	// persists in s regardless of what the re-sent bytes contain.
	block2Offset := uint64(4 - overlap)
	block2 := full[4-overlap:]
	m2, err := s.Search(block2, block2Offset, overlap)
	if err != nil {
		t.Fatalf("Search block2 failed: %v", err)
	}
	all = append(all, m2...)

	if len(all) != 1 {
		t.Fatalf("expected exactly one match across block boundary, got %d: %+v", len(all), all)
	}
	if all[0].StartOffset != 2 || all[0].EndOffset != 4 {
		t.Errorf("unexpected match bounds: %+v", all[0])
	}
}

func sortedByStart(matches []RawMatch) []RawMatch {
	out := make([]RawMatch, len(matches))
	copy(out, matches)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].StartOffset > out[j].StartOffset; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func BenchmarkCPUSearcher(b *testing.B) {
	p := patternFromBytes(0x89, 'P', 'N', 'G')
	bld := pattern.NewStateTableBuilder(true)
	bld.AddPattern(p)
	tbl, err := bld.Build()
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}

	input := make([]byte, 1<<20)
	for i := range input {
		input[i] = byte(i * 13)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := NewCPUSearcher(tbl)
		if _, err := s.Search(input, 0, 0); err != nil {
			b.Fatalf("Search failed: %v", err)
		}
	}
}
