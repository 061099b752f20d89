// Package plic drives the RISC-V Platform-Level Interrupt Controller of the
// virt board, for hart 0 in supervisor mode.
package plic

import (
	"github.com/creinwar/freertos-xvisor-guest/bitfield"
	"github.com/creinwar/freertos-xvisor-guest/mmio"
)

// Register offsets relative to the PLIC base (0x0c000000 on virt).
const (
	PRIORITY_BASE  = 0x000000 // Source priority, one word per source (n*4)
	ENABLE_BASE    = 0x002000 // Enable bits for sources 0-31, first context
	CLAIM_COMPLETE = 0x200004 // Read to claim, write the id back to complete

	// RegisterSpan covers every register this driver touches.
	RegisterSpan = CLAIM_COMPLETE + 4

	// MaxSource is the highest source id the single enable word covers.
	MaxSource = 31
)

// NoInterrupt is returned by Claim when nothing is pending.
const NoInterrupt = 0

// PLIC is a PLIC reached through a register window.
type PLIC struct {
	regs mmio.Bus
}

// New returns a driver for the PLIC whose registers start at offset 0 of regs.
func New(regs mmio.Bus) *PLIC {
	return &PLIC{regs: regs}
}

// SetPriority sets the priority of src. Priority 0 never interrupts.
func (p *PLIC) SetPriority(src, prio uint32) {
	p.regs.Write32(PRIORITY_BASE+uintptr(src)*4, prio)
}

// Priority reads back the priority of src.
func (p *PLIC) Priority(src uint32) uint32 {
	return p.regs.Read32(PRIORITY_BASE + uintptr(src)*4)
}

// Enable routes src to this context. The enable word is written whole with
// only src set, matching the boot-time bring-up of a single timer source.
func (p *PLIC) Enable(src uint32) {
	p.regs.Write32(ENABLE_BASE, uint32(bitfield.EnableWord(0).With(src)))
}

// Enabled reads back the enable word.
func (p *PLIC) Enabled() bitfield.EnableWord {
	return bitfield.EnableWord(p.regs.Read32(ENABLE_BASE))
}

// Claim acknowledges the highest-priority pending interrupt and returns its
// id, or NoInterrupt.
//
//go:nosplit
func (p *PLIC) Claim() uint32 {
	return p.regs.Read32(CLAIM_COMPLETE)
}

// Complete signals that handling of id has finished.
//
//go:nosplit
func (p *PLIC) Complete(id uint32) {
	p.regs.Write32(CLAIM_COMPLETE, id)
}
