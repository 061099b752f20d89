// Package trap routes supervisor interrupts into the scheduler: the periodic
// goldfish RTC alarm (through the PLIC) becomes a scheduler tick, and the
// software interrupt becomes a yield.
//
// The dispatcher never touches measurement state. Faults in interrupt context
// are not reported back to task context; they halt the hart.
package trap

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/creinwar/freertos-xvisor-guest/bitfield"
	"github.com/creinwar/freertos-xvisor-guest/rtos"
)

// Supervisor interrupt codes (scause with the interrupt bit stripped).
const (
	CAUSE_SUPERVISOR_SOFTWARE = 1 // Yield request
	CAUSE_SUPERVISOR_TIMER    = 5 // Unused; the tick comes from the RTC
	CAUSE_SUPERVISOR_EXTERNAL = 9 // Routed through the PLIC
)

// DefaultTimerSource is the PLIC source id of the goldfish RTC on virt.
const DefaultTimerSource = 11

var (
	// ErrUnexpectedSource means the PLIC handed out a source other than the
	// timer. The board is miswired; this is fatal.
	ErrUnexpectedSource = errors.New("trap: unexpected interrupt source")

	// ErrUnknownCause means a trap arrived that is neither a software nor an
	// external interrupt. This is fatal.
	ErrUnknownCause = errors.New("trap: unrecognized trap cause")
)

// Pending clears bits of the supervisor interrupt-pending register (sip).
type Pending interface {
	ClearPending(code uint64)
}

// Halter stops the hart. On hardware Halt never returns.
type Halter interface {
	Halt(reason error)
}

// TimeSource is the alarm side of the goldfish RTC.
type TimeSource interface {
	ReadTime() uint64
	SetAlarm(threshold uint64)
	ClearAlarm()
	ClearInterrupt()
}

// Controller is the claim/complete side of the PLIC.
type Controller interface {
	Claim() uint32
	Complete(id uint32)
}

// Config fixes the timer wiring.
type Config struct {
	// TimerSource is the PLIC source id the RTC is wired to.
	TimerSource uint32
	// TickInterval is the number of RTC units per scheduler tick.
	TickInterval uint64
}

// Stats counts what the dispatcher has done.
type Stats struct {
	Ticks     uint64 // timer interrupts handled
	Yields    uint64 // software interrupts handled
	Switches  uint64 // context switches requested by the tick
	LastArmed uint64 // alarm threshold most recently armed
	LastNow   uint64 // time read just before that arming
}

// Dispatcher is the supervisor interrupt handler.
type Dispatcher struct {
	cfg   Config
	rtc   TimeSource
	ctl   Controller
	sched rtos.Scheduler
	sip   Pending
	halt  Halter
	log   *logrus.Entry

	ticks     atomic.Uint64
	yields    atomic.Uint64
	switches  atomic.Uint64
	lastArmed atomic.Uint64
	lastNow   atomic.Uint64
}

// NewDispatcher returns a dispatcher for the given wiring.
func NewDispatcher(cfg Config, rtc TimeSource, ctl Controller, sched rtos.Scheduler, sip Pending, halt Halter, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		cfg:   cfg,
		rtc:   rtc,
		ctl:   ctl,
		sched: sched,
		sip:   sip,
		halt:  halt,
		log:   log.WithField("component", "trap"),
	}
}

// Dispatch handles one trap. It runs in interrupt context with interrupts
// masked and never nests.
func (d *Dispatcher) Dispatch(scause uint64) {
	cause := bitfield.UnpackCause(scause)
	d.sip.ClearPending(cause.Code)

	if !cause.Interrupt {
		d.fatal(fmt.Errorf("%w: exception code %d", ErrUnknownCause, cause.Code))
		return
	}

	switch cause.Code {
	case CAUSE_SUPERVISOR_SOFTWARE:
		d.yields.Add(1)
		d.sched.SwitchContext()
	case CAUSE_SUPERVISOR_EXTERNAL:
		d.external()
	default:
		d.fatal(fmt.Errorf("%w: interrupt code %d", ErrUnknownCause, cause.Code))
	}
}

// external handles a PLIC-routed interrupt. The alarm is cleared and
// re-armed before the claim is completed, so the PLIC cannot hand out a
// second interrupt for the stale alarm.
func (d *Dispatcher) external() {
	id := d.ctl.Claim()
	if id != d.cfg.TimerSource {
		d.ctl.Complete(id)
		d.fatal(fmt.Errorf("%w: claimed %d, timer is %d", ErrUnexpectedSource, id, d.cfg.TimerSource))
		return
	}

	d.rtc.ClearAlarm()
	d.rtc.ClearInterrupt()

	d.ticks.Add(1)
	if d.sched.Tick() {
		d.switches.Add(1)
		d.sched.SwitchContext()
	}

	// Re-arm from the current time, not the previous threshold, so handler
	// latency does not accumulate into drift.
	now := d.rtc.ReadTime()
	next := now + d.cfg.TickInterval
	d.rtc.SetAlarm(next)
	d.lastNow.Store(now)
	d.lastArmed.Store(next)

	d.ctl.Complete(id)
}

func (d *Dispatcher) fatal(err error) {
	d.log.WithError(err).Error("halting hart")
	d.halt.Halt(err)
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Ticks:     d.ticks.Load(),
		Yields:    d.yields.Load(),
		Switches:  d.switches.Load(),
		LastArmed: d.lastArmed.Load(),
		LastNow:   d.lastNow.Load(),
	}
}
