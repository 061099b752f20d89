package virt

import (
	"io"
	"sync"

	"github.com/creinwar/freertos-xvisor-guest/console"
)

// UART models the transmit side of an ns16550. The transmitter is always
// ready; every byte written to THR goes straight to the output.
type UART struct {
	mu   sync.Mutex
	out  io.Writer
	regs [8]uint8
}

// NewUART returns a UART writing to out.
func NewUART(out io.Writer) *UART {
	return &UART{out: out}
}

// Read8 implements mmio.Bus8.
func (u *UART) Read8(off uintptr) uint8 {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch off {
	case console.UART_LSR:
		return console.LSR_THRE | 1<<6 // THR empty, transmitter idle
	case console.UART_RBR:
		return 0
	}
	if off < uintptr(len(u.regs)) {
		return u.regs[off]
	}
	return 0
}

// Write8 implements mmio.Bus8.
func (u *UART) Write8(off uintptr, v uint8) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if off == console.UART_THR {
		u.out.Write([]byte{v})
		return
	}
	if off < uintptr(len(u.regs)) {
		u.regs[off] = v
	}
}

// Read32 implements mmio.Bus as a byte access to the low lane.
func (u *UART) Read32(off uintptr) uint32 { return uint32(u.Read8(off)) }

// Write32 implements mmio.Bus as a byte access to the low lane.
func (u *UART) Write32(off uintptr, v uint32) { u.Write8(off, uint8(v)) }
