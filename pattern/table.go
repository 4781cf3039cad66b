package pattern

import "fmt"

// TerminalState is the sentinel transition value meaning "a pattern has
// just been fully matched" - it is never a real row index. FailState (the
// zero value) means "no transition, abandon this walker".
const (
	FailState     uint32 = 0
	TerminalState uint32 = 0xFFFFFFFF
)

// wildcardCol is the extra column (beyond the 256 concrete byte values)
// that holds a state's wildcard transition, per §4.1.
const wildcardCol = 256

// numCols is the table's column count: 256 concrete byte values plus the
// wildcard column.
const numCols = 257

// StateTable is the compiled, read-only, dense transition grid described
// in §3: addressed by (input_byte in [0,256], state in [0,N]). Built once
// by StateTableBuilder.Build, then shared read-only between concurrent
// Match Engine backends.
type StateTable struct {
	// rows[state][col] is the next-state index, FailState, or TerminalState.
	rows [][numCols]uint32
	// MaxPatternLength is the longest pattern folded into this table, used
	// to size the Streaming Reader's block overlap (§4.3).
	MaxPatternLength int
}

// Lookup returns the transition for (state, b): the concrete-byte column is
// consulted first, falling back to the wildcard column only when the
// concrete cell is FailState - concrete bytes take priority over wildcards,
// per §4.1's documented disambiguation rule.
func (t *StateTable) Lookup(state uint32, b byte) uint32 {
	row := &t.rows[state]
	if v := row[b]; v != FailState {
		return v
	}
	return row[wildcardCol]
}

// LookupElem behaves like Lookup, but also reports which element the
// transition actually consumed - Byte(b) for a concrete-byte edge, or
// Wildcard when the concrete cell was empty and the wildcard column fired.
// Callers that need to reconstruct a pattern's fingerprint incrementally
// (search.CPUSearcher, search.PFACSearcher) use this instead of Lookup so
// their fold agrees with the fingerprint computed at registration time.
func (t *StateTable) LookupElem(state uint32, b byte) (next uint32, consumed Elem) {
	row := &t.rows[state]
	if v := row[b]; v != FailState {
		return v, Byte(b)
	}
	return row[wildcardCol], Wildcard
}

// NumStates returns the number of rows (states) in the table.
func (t *StateTable) NumStates() int {
	return len(t.rows)
}

// nodeIR and connIR are the builder's intermediate trie representation,
// mirroring the teacher algorithm's two-phase "build trie, then flatten to
// a dense table" construction (original_source's AcTableBuilder/NodeIR).
type connIR struct {
	to    uint32
	value uint32 // 0-255 concrete byte value, or wildcardCol for a wildcard edge
}

type nodeIR struct {
	next []connIR
}

// StateTableBuilder incrementally compiles a trie from added patterns,
// stripping failure links as it goes (every non-matching transition stays
// FailState - this is what makes the result "failureless", suitable for
// both the CPU-AC and GPU-PFAC backends without further preprocessing).
type StateTableBuilder struct {
	nodes       []nodeIR
	startIdx    uint32
	endIdx      uint32
	doSuffixOpt bool
	suffixIdx   map[uint64]uint32
	maxPatLen   int
}

// NewStateTableBuilder creates an empty builder. When doSuffixOpt is true,
// distinct patterns sharing a common suffix share trie nodes for that
// suffix, bounding the table to spec.md §4.1's "row count <= 1 + sum of
// pattern lengths" contract even when patterns overlap heavily.
func NewStateTableBuilder(doSuffixOpt bool) *StateTableBuilder {
	return &StateTableBuilder{
		nodes:       []nodeIR{{}, {}}, // index 0 = start, index 1 = shared terminal sentinel node
		startIdx:    0,
		endIdx:      1,
		doSuffixOpt: doSuffixOpt,
		suffixIdx:   make(map[uint64]uint32),
	}
}

// FromFileTypes builds a table covering every header and footer pattern
// across a set of FileTypeSpecs, the shape the Match Engine is actually
// initialized with.
func FromFileTypes(types []FileTypeSpec) *StateTableBuilder {
	b := NewStateTableBuilder(true)
	for _, ft := range types {
		for _, h := range ft.Headers {
			b.AddPattern(h)
		}
		for _, f := range ft.Footers {
			b.AddPattern(f)
		}
	}
	return b
}

// AddPattern walks (or extends) the trie with one pattern's elements.
func (b *StateTableBuilder) AddPattern(p Pattern) {
	elems := p.Elems()
	node := b.startIdx

	for i, e := range elems {
		col := elemCol(e)

		if next, ok := findEdge(&b.nodes[node], col); ok {
			node = next
			continue
		}

		var nextNode uint32
		if i == len(elems)-1 {
			nextNode = b.endIdx
		} else if b.doSuffixOpt {
			suffixHash := FingerprintElems(elems[i+1:])
			if existing, ok := b.suffixIdx[suffixHash]; ok {
				nextNode = existing
			} else {
				nextNode = b.newNode()
				b.suffixIdx[suffixHash] = nextNode
			}
		} else {
			nextNode = b.newNode()
		}

		b.nodes[node].next = append(b.nodes[node].next, connIR{to: nextNode, value: col})
		node = nextNode
	}

	if len(elems) > b.maxPatLen {
		b.maxPatLen = len(elems)
	}
}

func (b *StateTableBuilder) newNode() uint32 {
	b.nodes = append(b.nodes, nodeIR{})
	return uint32(len(b.nodes) - 1)
}

func elemCol(e Elem) uint32 {
	if e.IsWildcard() {
		return wildcardCol
	}
	return uint32(e)
}

func findEdge(n *nodeIR, col uint32) (uint32, bool) {
	for _, c := range n.next {
		if c.value == col {
			return c.to, true
		}
	}
	return 0, false
}

// Build flattens the trie into a dense StateTable. It returns an error if
// the pattern set was empty - spec.md §3's invariant 4 requires state 0 to
// always have at least one non-zero transition, which an empty pattern set
// cannot satisfy.
func (b *StateTableBuilder) Build() (*StateTable, error) {
	if len(b.nodes[b.startIdx].next) == 0 {
		return nil, fmt.Errorf("state table: no patterns registered (empty pattern set)")
	}

	rows := make([][numCols]uint32, len(b.nodes))
	for i, node := range b.nodes {
		if uint32(i) == b.endIdx {
			continue // terminal sentinel is never a real current-state row
		}
		for _, c := range node.next {
			dest := c.to
			if dest == b.endIdx {
				dest = TerminalState
			}
			rows[i][c.value] = dest
		}
	}

	return &StateTable{rows: rows, MaxPatternLength: b.maxPatLen}, nil
}

// MaxPatternLength returns the longest pattern added to the builder so far.
func (b *StateTableBuilder) MaxPatternLength() int {
	return b.maxPatLen
}
