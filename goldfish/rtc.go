// Package goldfish drives the goldfish real-time clock found on the QEMU and
// xvisor RISC-V virt boards. It is the time base for both the scheduler tick
// and the benchmark's own timestamps.
package goldfish

import (
	"github.com/creinwar/freertos-xvisor-guest/bitfield"
	"github.com/creinwar/freertos-xvisor-guest/mmio"
)

// Register offsets, taken from xvisor's goldfish RTC emulator.
const (
	TIME_LOW        = 0x00 // Current time, low 32 bits
	TIME_HIGH       = 0x04 // Current time, high 32 bits
	ALARM_LOW       = 0x08 // Alarm threshold, low 32 bits (writing commits the alarm)
	ALARM_HIGH      = 0x0c // Alarm threshold, high 32 bits
	IRQ_ENABLED     = 0x10 // Interrupt enable, 0 or 1
	CLEAR_ALARM     = 0x14 // Write 1 to stop the running alarm
	ALARM_STATUS    = 0x18 // 1 while an alarm is running
	CLEAR_INTERRUPT = 0x1c // Write 1 to lower the pending interrupt

	// RegisterSpan is the size of the register window.
	RegisterSpan = 0x20
)

// RTC is a goldfish RTC reached through a register window. It has no state of
// its own beyond the device registers, and no operation can fail.
type RTC struct {
	regs mmio.Bus
}

// New returns a driver for the RTC whose registers start at offset 0 of regs.
func New(regs mmio.Bus) *RTC {
	return &RTC{regs: regs}
}

// ReadTime returns the current 64-bit time.
//
// The two halves are latched independently. If the low half wraps between
// reading the high half and reading the low half, the composed value is 2^32
// ticks off, so the high half is re-read until two consecutive reads agree
// before the low half is sampled. The high half moves at most once per call
// at any realistic tick rate, so the loop runs at most twice.
//
//go:nosplit
func (r *RTC) ReadTime() uint64 {
	high := r.regs.Read32(TIME_HIGH)
	for {
		candidate := r.regs.Read32(TIME_HIGH)
		if candidate == high {
			break
		}
		high = candidate
	}
	return bitfield.JoinTime(high, r.regs.Read32(TIME_LOW))
}

// SetAlarm arms an absolute alarm. The high half goes first: the device
// commits the threshold on the low write, so a new high half can never be
// paired with a stale low half.
func (r *RTC) SetAlarm(threshold uint64) {
	t := bitfield.SplitTime(threshold)
	r.regs.Write32(ALARM_HIGH, t.High)
	r.regs.Write32(ALARM_LOW, t.Low)
}

// Alarm reads back the alarm threshold registers.
func (r *RTC) Alarm() uint64 {
	return bitfield.JoinTime(r.regs.Read32(ALARM_HIGH), r.regs.Read32(ALARM_LOW))
}

// AlarmStatus reports whether an alarm is running.
func (r *RTC) AlarmStatus() bool {
	return r.regs.Read32(ALARM_STATUS) != 0
}

// ClearAlarm stops the running alarm.
func (r *RTC) ClearAlarm() {
	r.regs.Write32(CLEAR_ALARM, 1)
}

// InterruptEnabled reports whether the alarm interrupt is enabled.
func (r *RTC) InterruptEnabled() bool {
	return r.regs.Read32(IRQ_ENABLED) != 0
}

// EnableInterrupt enables the alarm interrupt.
func (r *RTC) EnableInterrupt() {
	r.regs.Write32(IRQ_ENABLED, 1)
}

// DisableInterrupt disables the alarm interrupt and drops anything pending,
// so re-enabling later cannot deliver a stale alarm.
func (r *RTC) DisableInterrupt() {
	r.regs.Write32(IRQ_ENABLED, 0)
	r.regs.Write32(CLEAR_INTERRUPT, 1)
}

// ClearInterrupt lowers the pending interrupt.
func (r *RTC) ClearInterrupt() {
	r.regs.Write32(CLEAR_INTERRUPT, 1)
}

// Registers is a snapshot of the readable registers.
type Registers struct {
	Time             uint64
	Alarm            uint64
	InterruptEnabled bool
	AlarmRunning     bool
}

// Dump snapshots the readable registers.
func (r *RTC) Dump() Registers {
	return Registers{
		Time:             r.ReadTime(),
		Alarm:            r.Alarm(),
		InterruptEnabled: r.InterruptEnabled(),
		AlarmRunning:     r.AlarmStatus(),
	}
}
