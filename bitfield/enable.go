package bitfield

// EnableWord is the PLIC per-context enable word covering sources 0-31.
// Bit n enables source n.
type EnableWord uint32

// With returns the word with the bit for src set. Sources outside the word
// are ignored.
func (w EnableWord) With(src uint32) EnableWord {
	if src >= 32 {
		return w
	}
	return w | 1<<src
}

// Has reports whether src is enabled.
func (w EnableWord) Has(src uint32) bool {
	return src < 32 && w&(1<<src) != 0
}
