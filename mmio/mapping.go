package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mapping is a Bus over a block of memory: either plain memory (tests, device
// models) or device registers mapped from /dev/mem.
//
// 32-bit accesses go through sync/atomic, which the compiler never elides or
// reorders. Byte accesses go through non-inlinable helpers for the same
// reason.
type Mapping struct {
	mem   []byte
	unmap func([]byte) error
}

// NewMapping returns a Bus over mem. mem must be 4-byte aligned.
func NewMapping(mem []byte) *Mapping {
	return &Mapping{mem: mem}
}

// OpenDevMem maps size bytes of physical address space starting at base.
// base must be page aligned.
func OpenDevMem(base, size uintptr) (*Mapping, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening /dev/mem: %w", err)
	}
	defer f.Close()

	mem, err := unix.Mmap(int(f.Fd()), int64(base), int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mapping %#x+%#x from /dev/mem: %w", base, size, err)
	}
	return &Mapping{mem: mem, unmap: unix.Munmap}, nil
}

// Close releases a /dev/mem mapping. It is a no-op for plain memory.
func (m *Mapping) Close() error {
	if m.unmap == nil || m.mem == nil {
		return nil
	}
	err := m.unmap(m.mem)
	m.mem = nil
	return err
}

// Size returns the number of bytes covered.
func (m *Mapping) Size() uintptr {
	return uintptr(len(m.mem))
}

func (m *Mapping) addr(off uintptr, width uintptr) unsafe.Pointer {
	if off+width > uintptr(len(m.mem)) {
		panic(fmt.Sprintf("mmio: access at %#x+%d outside mapping of %#x bytes", off, width, len(m.mem)))
	}
	return unsafe.Pointer(&m.mem[off])
}

// Read32 implements Bus.
func (m *Mapping) Read32(off uintptr) uint32 {
	return atomic.LoadUint32((*uint32)(m.addr(off, 4)))
}

// Write32 implements Bus.
func (m *Mapping) Write32(off uintptr, v uint32) {
	atomic.StoreUint32((*uint32)(m.addr(off, 4)), v)
}

// Read8 implements Bus8.
func (m *Mapping) Read8(off uintptr) uint8 {
	return load8((*uint8)(m.addr(off, 1)))
}

// Write8 implements Bus8.
func (m *Mapping) Write8(off uintptr, v uint8) {
	store8((*uint8)(m.addr(off, 1)), v)
}

//go:noinline
//go:nosplit
func load8(p *uint8) uint8 {
	return *p
}

//go:noinline
//go:nosplit
func store8(p *uint8, v uint8) {
	*p = v
}

var _ Bus8 = (*Mapping)(nil)
