package ioblock

// Block is a contiguous chunk of bytes plus its absolute starting offset
// and logical length (§3's Block type). Ownership moves from Reader to the
// Match Engine and is dropped after use; a Block's Data slice is only valid
// until the next call to Reader.Next, since the Reader reuses its two
// internal buffers.
type Block struct {
	// Data holds the block's bytes, including any leading overlap carried
	// over from the previous block. len(Data) may be less than the
	// configured block size on the final block.
	Data []byte
	// Offset is Data[0]'s absolute position in the underlying stream.
	Offset uint64
	// Overlap is how many leading bytes of Data were already present in
	// the previous block (and so already searched by it) - 0 for the first
	// block.
	Overlap int
}

// Len reports the block's logical length, i.e. len(Data).
func (b Block) Len() int {
	return len(b.Data)
}
