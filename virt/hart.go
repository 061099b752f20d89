package virt

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/creinwar/freertos-xvisor-guest/bitfield"
	"github.com/creinwar/freertos-xvisor-guest/trap"
)

// Hart delivers supervisor interrupts to a trap handler one at a time. It
// holds the sip register; the handler runs with further delivery masked, so
// interrupts never nest.
type Hart struct {
	log *logrus.Entry

	mu      sync.Mutex
	sip     uint64
	handler func(scause uint64)
	halted  error
	traps   uint64

	kick chan struct{}
}

// NewHart returns a hart with nothing pending and no handler.
func NewHart(log *logrus.Entry) *Hart {
	return &Hart{
		log:  log.WithField("component", "hart"),
		kick: make(chan struct{}, 1),
	}
}

// SetHandler installs the trap handler, the equivalent of writing stvec.
func (h *Hart) SetHandler(fn func(scause uint64)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = fn
}

// Raise sets the sip bit for code.
func (h *Hart) Raise(code uint64) {
	h.mu.Lock()
	h.sip |= 1 << code
	h.mu.Unlock()
	select {
	case h.kick <- struct{}{}:
	default:
	}
}

// SetExternal drives the external interrupt input from the PLIC.
func (h *Hart) SetExternal(high bool) {
	if high {
		h.Raise(trap.CAUSE_SUPERVISOR_EXTERNAL)
		return
	}
	h.ClearPending(trap.CAUSE_SUPERVISOR_EXTERNAL)
}

// ClearPending implements trap.Pending.
func (h *Hart) ClearPending(code uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sip &^= 1 << code
}

// RaiseSoftware implements rtos.Yielder.
func (h *Hart) RaiseSoftware() {
	h.Raise(trap.CAUSE_SUPERVISOR_SOFTWARE)
}

// Halt implements trap.Halter. The hart stops taking interrupts for good;
// the reason stays available through Halted for inspection.
func (h *Hart) Halt(reason error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.halted == nil {
		h.halted = reason
		h.log.WithError(reason).Error("hart halted")
	}
}

// Halted returns the reason the hart halted, or nil.
func (h *Hart) Halted() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.halted
}

// Pending returns the sip register.
func (h *Hart) Pending() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sip
}

// Traps returns the number of traps delivered.
func (h *Hart) Traps() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.traps
}

// next picks the interrupt to take, external before software before timer,
// or reports that none can be taken.
func (h *Hart) next() (uint64, func(uint64), bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.halted != nil || h.handler == nil {
		return 0, nil, false
	}
	for _, code := range []uint64{
		trap.CAUSE_SUPERVISOR_EXTERNAL,
		trap.CAUSE_SUPERVISOR_SOFTWARE,
		trap.CAUSE_SUPERVISOR_TIMER,
	} {
		if h.sip&(1<<code) == 0 {
			continue
		}
		scause, err := bitfield.PackCause(bitfield.Cause{Code: code, Interrupt: true})
		if err != nil {
			h.halted = fmt.Errorf("encoding scause for code %d: %w", code, err)
			h.log.WithError(h.halted).Error("hart halted")
			return 0, nil, false
		}
		h.traps++
		return scause, h.handler, true
	}
	return 0, nil, false
}

// Run takes interrupts until ctx is done. A halted hart keeps running but
// takes nothing.
func (h *Hart) Run(ctx context.Context) error {
	for {
		for {
			scause, handler, ok := h.next()
			if !ok {
				break
			}
			handler(scause)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.kick:
		}
	}
}

var (
	_ trap.Pending = (*Hart)(nil)
	_ trap.Halter  = (*Hart)(nil)
)
