//go:build !amd64 && !riscv64

package tlb

import (
	"sync/atomic"
	"unsafe"
)

// TouchPages loads one word from each of count pages starting at base. When
// descending is set the walk starts at the last page and moves down.
// count == 0 touches nothing.
//
// Atomic loads keep the compiler from dropping the otherwise unused reads.
//
//go:nosplit
//go:noinline
func TouchPages(base uintptr, count uint32, descending bool) {
	if count == 0 {
		return
	}
	addr := base
	step := uintptr(PageSize)
	if descending {
		addr = base + uintptr(count-1)*PageSize
		step = -step
	}
	for n := count; n > 0; n-- {
		atomic.LoadUint32((*uint32)(unsafe.Pointer(addr)))
		addr += step
	}
}
