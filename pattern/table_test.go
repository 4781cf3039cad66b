package pattern

import "testing"

// walk drives a StateTable like a single PFAC worker starting at state 0,
// returning the offset (relative to the start of input) it matched at, or
// -1 if it never reached TerminalState before failing or exhausting input.
func walk(t *StateTable, input []byte) int {
	state := uint32(0)
	for i, b := range input {
		state = t.Lookup(state, b)
		if state == TerminalState {
			return i
		}
		if state == FailState {
			return -1
		}
	}
	return -1
}

func TestStateTableSinglePattern(t *testing.T) {
	b := NewStateTableBuilder(false)
	b.AddPattern(Bytes("PK\x03\x04"))
	tbl, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := walk(tbl, []byte("PK\x03\x04")); got != 3 {
		t.Errorf("expected match at offset 3, got %d", got)
	}
	if got := walk(tbl, []byte("PK\x03\x05")); got != -1 {
		t.Errorf("expected no match, got offset %d", got)
	}
}

func TestStateTableWildcard(t *testing.T) {
	b := NewStateTableBuilder(false)
	b.AddPattern(FromLiteral([]byte{0xFF, '.', 0x01}, '.'))
	tbl, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, mid := range []byte{0x00, 0x42, 0xFE} {
		got := walk(tbl, []byte{0xFF, mid, 0x01})
		if got != 2 {
			t.Errorf("wildcard byte %#x: expected match at offset 2, got %d", mid, got)
		}
	}
}

func TestStateTableConcreteBeforeWildcard(t *testing.T) {
	// Two patterns sharing a prefix: one fully concrete, one with a
	// wildcard in the position where the other has a specific byte.
	// Per §4.1, the concrete-byte transition always wins over wildcard.
	b := NewStateTableBuilder(false)
	b.AddPattern(Bytes("\xAA\xBB\xCC")) // fully concrete
	b.AddPattern(FromLiteral([]byte{0xAA, '.', 0xDD}, '.'))
	tbl, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := walk(tbl, []byte{0xAA, 0xBB, 0xCC}); got != 2 {
		t.Errorf("concrete pattern: expected match at offset 2, got %d", got)
	}
	if got := walk(tbl, []byte{0xAA, 0xEE, 0xDD}); got != 2 {
		t.Errorf("wildcard pattern via non-colliding byte: expected match at offset 2, got %d", got)
	}
	// At position 1, 0xBB collides with pattern one's concrete edge; taking
	// it forecloses pattern two's match since the trie has already
	// committed to the concrete branch, so BB DD never matches pattern two.
	if got := walk(tbl, []byte{0xAA, 0xBB, 0xDD}); got != -1 {
		t.Errorf("expected concrete edge to shadow the wildcard pattern, got match at %d", got)
	}
}

func TestStateTableSuffixSharing(t *testing.T) {
	b := NewStateTableBuilder(true)
	b.AddPattern(Bytes("AAAZ"))
	b.AddPattern(Bytes("BBBZ"))
	tbl, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := walk(tbl, []byte("AAAZ")); got != 3 {
		t.Errorf("expected match at offset 3, got %d", got)
	}
	if got := walk(tbl, []byte("BBBZ")); got != 3 {
		t.Errorf("expected match at offset 3, got %d", got)
	}
}

func TestStateTableMultiplePatternsIndependent(t *testing.T) {
	b := NewStateTableBuilder(true)
	png := Bytes("\x89PNG\r\n\x1a\n")
	jpeg := Bytes("\xff\xd8\xff")
	b.AddPattern(png)
	b.AddPattern(jpeg)
	tbl, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := walk(tbl, []byte("\x89PNG\r\n\x1a\n")); got != png.Len()-1 {
		t.Errorf("png: expected match at offset %d, got %d", png.Len()-1, got)
	}
	if got := walk(tbl, []byte("\xff\xd8\xff")); got != jpeg.Len()-1 {
		t.Errorf("jpeg: expected match at offset %d, got %d", jpeg.Len()-1, got)
	}
}

func TestStateTableEmptyBuilderErrors(t *testing.T) {
	b := NewStateTableBuilder(true)
	if _, err := b.Build(); err == nil {
		t.Fatalf("expected error building table with no patterns, got nil")
	}
}

func TestStateTableMaxPatternLength(t *testing.T) {
	b := NewStateTableBuilder(true)
	b.AddPattern(Bytes("ab"))
	b.AddPattern(Bytes("abcdef"))
	tbl, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if tbl.MaxPatternLength != 6 {
		t.Errorf("MaxPatternLength = %d, want 6", tbl.MaxPatternLength)
	}
}

func TestFromFileTypes(t *testing.T) {
	types := []FileTypeSpec{
		{
			Name:    "png",
			Headers: []Pattern{Bytes("\x89PNG\r\n\x1a\n")},
			Footers: []Pattern{Bytes("IEND\xaeB`\x82")},
		},
	}
	tbl, err := FromFileTypes(types).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := walk(tbl, []byte("\x89PNG\r\n\x1a\n")); got == -1 {
		t.Errorf("expected png header to match")
	}
	if got := walk(tbl, []byte("IEND\xaeB`\x82")); got == -1 {
		t.Errorf("expected png footer to match")
	}
}

func BenchmarkStateTableLookup(b *testing.B) {
	bld := NewStateTableBuilder(true)
	bld.AddPattern(Bytes("\x89PNG\r\n\x1a\n"))
	bld.AddPattern(Bytes("\xff\xd8\xff"))
	bld.AddPattern(Bytes("PK\x03\x04"))
	tbl, err := bld.Build()
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}

	input := make([]byte, 4096)
	for i := range input {
		input[i] = byte(i * 7)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		state := uint32(0)
		for _, by := range input {
			state = tbl.Lookup(state, by)
			if state == TerminalState {
				state = 0
			}
		}
	}
}
