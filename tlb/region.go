package tlb

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrNoPages is returned when a region of zero pages is requested.
var ErrNoPages = errors.New("tlb: region needs at least one page")

// Region is a block of exactly Pages() naturally aligned pages, plus one spare
// page of alignment slack. It is owned by one measurement for its whole life
// and never resized.
type Region struct {
	mem    []byte
	base   uintptr
	pages  uint32
	locked bool
}

// NewRegion maps pages+1 anonymous pages, aligns the base up to a page
// boundary, locks the pages in memory if the limits allow it, and writes the
// first word of every page so each one is backed by its own frame.
func NewRegion(pages uint32) (*Region, error) {
	if pages == 0 {
		return nil, ErrNoPages
	}
	size := (int(pages) + 1) * PageSize
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mapping %d pages: %w", pages+1, err)
	}

	r := &Region{mem: mem, pages: pages}
	start := uintptr(unsafe.Pointer(&mem[0]))
	r.base = (start + PageSize - 1) &^ (PageSize - 1)

	// Locking keeps the probe from measuring page faults instead of TLB
	// misses. RLIMIT_MEMLOCK may forbid it; the region still works.
	r.locked = unix.Mlock(mem) == nil

	off := r.base - start
	for i := uint32(0); i < pages; i++ {
		*(*uint32)(unsafe.Pointer(&mem[off+uintptr(i)*PageSize])) = i + 1
	}
	return r, nil
}

// Base returns the page-aligned address of the first page.
func (r *Region) Base() uintptr {
	return r.base
}

// Pages returns the number of usable pages.
func (r *Region) Pages() uint32 {
	return r.pages
}

// Locked reports whether the pages are locked in memory.
func (r *Region) Locked() bool {
	return r.locked
}

// Touch walks the region with TouchPages.
func (r *Region) Touch(descending bool) {
	TouchPages(r.base, r.pages, descending)
}

// Close unmaps the region. The region must not be touched afterwards.
func (r *Region) Close() error {
	if r.mem == nil {
		return nil
	}
	if r.locked {
		unix.Munlock(r.mem)
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	r.base = 0
	return err
}
