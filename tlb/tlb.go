// Package tlb provides the page-touch primitive the benchmark times, and the
// page-aligned memory region it walks.
//
// TouchPages performs exactly one word load per 4 KiB page at a fixed stride,
// with nothing in the loop body but the load and loop control, so its cost is
// dominated by address translation rather than by the instruction stream.
package tlb

// PageSize is the translation granule the benchmark targets.
const PageSize = 4096

// Addresses returns the addresses TouchPages loads from, in order. It is the
// reference for the traversal; TouchPages itself never builds this slice.
func Addresses(base uintptr, count uint32, descending bool) []uintptr {
	if count == 0 {
		return nil
	}
	out := make([]uintptr, 0, count)
	addr := base
	step := uintptr(PageSize)
	if descending {
		addr = base + uintptr(count-1)*PageSize
		step = -step
	}
	for n := count; n > 0; n-- {
		out = append(out, addr)
		addr += step
	}
	return out
}
