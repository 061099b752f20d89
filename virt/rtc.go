package virt

import (
	"sync"

	"github.com/creinwar/freertos-xvisor-guest/bitfield"
	"github.com/creinwar/freertos-xvisor-guest/goldfish"
)

// Line is an interrupt input of the PLIC.
type Line interface {
	SetLevel(src uint32, high bool)
}

// RTC models the goldfish real-time clock. Each half of the time register is
// sampled independently when read, so a reader that does not retry can see a
// torn value, as on hardware.
type RTC struct {
	now  func() uint64
	line Line
	src  uint32

	mu        sync.Mutex
	alarm     uint64
	alarmHigh uint32
	running   bool
	enabled   bool
	pending   bool
}

// NewRTC returns an RTC reading time from now and raising source src on line.
func NewRTC(now func() uint64, line Line, src uint32) *RTC {
	return &RTC{now: now, line: line, src: src}
}

// Read32 implements mmio.Bus.
func (r *RTC) Read32(off uintptr) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch off {
	case goldfish.TIME_LOW:
		return bitfield.UnpackTime(r.now()).Low
	case goldfish.TIME_HIGH:
		return bitfield.UnpackTime(r.now()).High
	case goldfish.ALARM_LOW:
		return bitfield.UnpackTime(r.alarm).Low
	case goldfish.ALARM_HIGH:
		return bitfield.UnpackTime(r.alarm).High
	case goldfish.IRQ_ENABLED:
		return b2u(r.enabled)
	case goldfish.ALARM_STATUS:
		return b2u(r.running)
	}
	return 0
}

// Write32 implements mmio.Bus.
func (r *RTC) Write32(off uintptr, v uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch off {
	case goldfish.ALARM_HIGH:
		r.alarmHigh = v
	case goldfish.ALARM_LOW:
		// The low write commits the alarm.
		r.alarm = bitfield.PackTime(bitfield.Time{Low: v, High: r.alarmHigh})
		r.running = true
		r.check()
	case goldfish.IRQ_ENABLED:
		r.enabled = v&1 != 0
		r.update()
	case goldfish.CLEAR_ALARM:
		r.running = false
	case goldfish.CLEAR_INTERRUPT:
		r.pending = false
		r.update()
	}
}

// Poll fires the alarm if its time has come.
func (r *RTC) Poll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.check()
}

// Deadline returns the armed alarm, if any.
func (r *RTC) Deadline() (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alarm, r.running
}

// check fires a due alarm. r.mu must be held.
func (r *RTC) check() {
	if r.running && r.now() >= r.alarm {
		r.running = false
		r.pending = true
		r.update()
	}
}

// update drives the interrupt line. r.mu must be held.
func (r *RTC) update() {
	r.line.SetLevel(r.src, r.pending && r.enabled)
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
