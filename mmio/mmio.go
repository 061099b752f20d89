// Package mmio is the only path by which drivers touch device registers.
//
// Every access goes through a Bus. Implementations must behave like volatile
// accesses: each call reaches the device exactly once, in program order, and
// is never cached or merged with a neighbouring access.
package mmio

import (
	"fmt"
	"sort"
)

// Bus is a 32-bit register space addressed by byte offset.
type Bus interface {
	Read32(off uintptr) uint32
	Write32(off uintptr, v uint32)
}

// Bus8 is a Bus that also supports single-byte register access, as needed by
// byte-wide devices such as the ns16550 UART.
type Bus8 interface {
	Bus
	Read8(off uintptr) uint8
	Write8(off uintptr, v uint8)
}

// window offsets every access to an underlying bus.
type window struct {
	bus  Bus
	base uintptr
}

// Window returns a view of bus whose offset 0 is base. Drivers use it to
// address registers by their device-relative offsets.
func Window(bus Bus, base uintptr) Bus8 {
	return &window{bus: bus, base: base}
}

func (w *window) Read32(off uintptr) uint32     { return w.bus.Read32(w.base + off) }
func (w *window) Write32(off uintptr, v uint32) { w.bus.Write32(w.base+off, v) }
func (w *window) Read8(off uintptr) uint8       { return Read8(w.bus, w.base+off) }
func (w *window) Write8(off uintptr, v uint8)   { Write8(w.bus, w.base+off, v) }

// Read8 reads a byte register. Buses without byte access are read through
// the aligned 32-bit word containing off.
func Read8(bus Bus, off uintptr) uint8 {
	if b, ok := bus.(Bus8); ok {
		return b.Read8(off)
	}
	shift := (off & 3) * 8
	return uint8(bus.Read32(off&^3) >> shift)
}

// Write8 writes a byte register. Buses without byte access get a
// read-modify-write of the containing 32-bit word.
func Write8(bus Bus, off uintptr, v uint8) {
	if b, ok := bus.(Bus8); ok {
		b.Write8(off, v)
		return
	}
	shift := (off & 3) * 8
	word := bus.Read32(off &^ 3)
	word = word&^(0xFF<<shift) | uint32(v)<<shift
	bus.Write32(off&^3, word)
}

type region struct {
	base uintptr
	size uintptr
	dev  Bus
}

// Map routes absolute physical addresses to the device buses mapped at them.
// Accesses to unmapped addresses read as zero and drop writes.
type Map struct {
	regions []region
}

// Add maps dev at [base, base+size).
func (m *Map) Add(base, size uintptr, dev Bus) error {
	if size == 0 {
		return fmt.Errorf("mmio: empty region at %#x", base)
	}
	for _, r := range m.regions {
		if base < r.base+r.size && r.base < base+size {
			return fmt.Errorf("mmio: region [%#x, %#x) overlaps [%#x, %#x)", base, base+size, r.base, r.base+r.size)
		}
	}
	m.regions = append(m.regions, region{base: base, size: size, dev: dev})
	sort.Slice(m.regions, func(i, j int) bool { return m.regions[i].base < m.regions[j].base })
	return nil
}

func (m *Map) find(addr uintptr) (Bus, uintptr, bool) {
	i := sort.Search(len(m.regions), func(i int) bool {
		return m.regions[i].base+m.regions[i].size > addr
	})
	if i == len(m.regions) || addr < m.regions[i].base {
		return nil, 0, false
	}
	return m.regions[i].dev, addr - m.regions[i].base, true
}

// Read32 implements Bus.
func (m *Map) Read32(addr uintptr) uint32 {
	dev, off, ok := m.find(addr)
	if !ok {
		return 0
	}
	return dev.Read32(off)
}

// Write32 implements Bus.
func (m *Map) Write32(addr uintptr, v uint32) {
	if dev, off, ok := m.find(addr); ok {
		dev.Write32(off, v)
	}
}

// Read8 implements Bus8.
func (m *Map) Read8(addr uintptr) uint8 {
	dev, off, ok := m.find(addr)
	if !ok {
		return 0
	}
	return Read8(dev, off)
}

// Write8 implements Bus8.
func (m *Map) Write8(addr uintptr, v uint8) {
	if dev, off, ok := m.find(addr); ok {
		Write8(dev, off, v)
	}
}

var (
	_ Bus8 = (*Map)(nil)
	_ Bus8 = (*window)(nil)
)
