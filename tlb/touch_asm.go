//go:build amd64 || riscv64

package tlb

// TouchPages loads one word from each of count pages starting at base. When
// descending is set the walk starts at the last page and moves down.
// count == 0 touches nothing.
//
// Implemented in touch_$GOARCH.s.
//
//go:noescape
func TouchPages(base uintptr, count uint32, descending bool)
