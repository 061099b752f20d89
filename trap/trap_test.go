package trap

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/creinwar/freertos-xvisor-guest/goldfish"
	"github.com/creinwar/freertos-xvisor-guest/mmio"
	"github.com/creinwar/freertos-xvisor-guest/plic"
)

const (
	scauseSoftware = 1<<63 | CAUSE_SUPERVISOR_SOFTWARE
	scauseExternal = 1<<63 | CAUSE_SUPERVISOR_EXTERNAL
	scauseTimer    = 1<<63 | CAUSE_SUPERVISOR_TIMER
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// machine records every collaborator call in one ordered log.
type machine struct {
	events  []string
	now     uint64
	claimID uint32
	tickDue bool
	halted  []error
}

func (m *machine) record(format string, args ...any) {
	m.events = append(m.events, fmt.Sprintf(format, args...))
}

func (m *machine) ReadTime() uint64      { m.record("read_time"); return m.now }
func (m *machine) SetAlarm(v uint64)     { m.record("set_alarm %d", v) }
func (m *machine) ClearAlarm()           { m.record("clear_alarm") }
func (m *machine) ClearInterrupt()       { m.record("clear_interrupt") }
func (m *machine) Claim() uint32         { m.record("claim"); return m.claimID }
func (m *machine) Complete(id uint32)    { m.record("complete %d", id) }
func (m *machine) Tick() bool            { m.record("tick"); return m.tickDue }
func (m *machine) SwitchContext()        { m.record("switch") }
func (m *machine) ClearPending(c uint64) { m.record("clear_sip %d", c) }
func (m *machine) Halt(reason error)     { m.record("halt"); m.halted = append(m.halted, reason) }

func newTestDispatcher(m *machine) *Dispatcher {
	cfg := Config{TimerSource: DefaultTimerSource, TickInterval: 1000}
	return NewDispatcher(cfg, m, m, m, m, m, testLogger())
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name    string
		scause  uint64
		claimID uint32
		tickDue bool
		want    []string
		wantErr error
	}{
		{
			name:    "timer tick without switch",
			scause:  scauseExternal,
			claimID: 11,
			want: []string{
				"clear_sip 9", "claim", "clear_alarm", "clear_interrupt", "tick",
				"read_time", "set_alarm 6000", "complete 11",
			},
		},
		{
			name:    "timer tick with switch",
			scause:  scauseExternal,
			claimID: 11,
			tickDue: true,
			want: []string{
				"clear_sip 9", "claim", "clear_alarm", "clear_interrupt", "tick", "switch",
				"read_time", "set_alarm 6000", "complete 11",
			},
		},
		{
			name:   "software interrupt yields",
			scause: scauseSoftware,
			want:   []string{"clear_sip 1", "switch"},
		},
		{
			name:    "unexpected source halts after completing",
			scause:  scauseExternal,
			claimID: 7,
			want:    []string{"clear_sip 9", "claim", "complete 7", "halt"},
			wantErr: ErrUnexpectedSource,
		},
		{
			name:    "spurious claim halts",
			scause:  scauseExternal,
			claimID: plic.NoInterrupt,
			want:    []string{"clear_sip 9", "claim", "complete 0", "halt"},
			wantErr: ErrUnexpectedSource,
		},
		{
			name:    "timer interrupt cause is not handled",
			scause:  scauseTimer,
			want:    []string{"clear_sip 5", "halt"},
			wantErr: ErrUnknownCause,
		},
		{
			name:    "exception halts",
			scause:  CAUSE_SUPERVISOR_EXTERNAL,
			want:    []string{"clear_sip 9", "halt"},
			wantErr: ErrUnknownCause,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &machine{now: 5000, claimID: tt.claimID, tickDue: tt.tickDue}
			newTestDispatcher(m).Dispatch(tt.scause)

			if diff := cmp.Diff(tt.want, m.events); diff != "" {
				t.Errorf("Dispatch(0x%x) call sequence mismatch (-want +got):\n%s", tt.scause, diff)
			}
			switch {
			case tt.wantErr == nil && len(m.halted) != 0:
				t.Errorf("unexpected halt: %v", m.halted)
			case tt.wantErr != nil && (len(m.halted) != 1 || !errors.Is(m.halted[0], tt.wantErr)):
				t.Errorf("halt reasons = %v, want one %v", m.halted, tt.wantErr)
			}
		})
	}
}

// Any claimed id other than the timer must never reach the scheduler.
func TestUnexpectedSourceNeverTicks(t *testing.T) {
	for id := uint32(0); id <= plic.MaxSource; id++ {
		if id == DefaultTimerSource {
			continue
		}
		m := &machine{claimID: id, tickDue: true}
		newTestDispatcher(m).Dispatch(scauseExternal)
		for _, ev := range m.events {
			if ev == "tick" || ev == "switch" {
				t.Errorf("id %d reached %q", id, ev)
			}
		}
		if len(m.halted) != 1 {
			t.Errorf("id %d: halted %d times, want 1", id, len(m.halted))
		}
	}
}

type nopScheduler struct{ ticks int }

func (s *nopScheduler) Tick() bool     { s.ticks++; return false }
func (s *nopScheduler) SwitchContext() {}

type nopCPU struct{}

func (nopCPU) ClearPending(uint64) {}
func (nopCPU) Halt(error)          {}

// Re-arming against the real register layout: each alarm is strictly in the
// future of the time read while handling, and reads back exactly.
func TestRearmMonotonic(t *testing.T) {
	rtcMem := mmio.NewMapping(make([]byte, goldfish.RegisterSpan))
	plicMem := mmio.NewMapping(make([]byte, plic.RegisterSpan))
	rtc := goldfish.New(rtcMem)
	ctl := plic.New(plicMem)
	sched := &nopScheduler{}

	cfg := Config{TimerSource: DefaultTimerSource, TickInterval: 1_000_000}
	d := NewDispatcher(cfg, rtc, ctl, sched, nopCPU{}, nopCPU{}, testLogger())

	now := uint64(0xFFFF_F000)
	for round := 0; round < 5; round++ {
		rtcMem.Write32(goldfish.TIME_LOW, uint32(now))
		rtcMem.Write32(goldfish.TIME_HIGH, uint32(now>>32))
		plicMem.Write32(plic.CLAIM_COMPLETE, DefaultTimerSource)

		d.Dispatch(scauseExternal)

		st := d.Stats()
		if st.LastNow != now {
			t.Errorf("round %d: re-armed from %d, want current time %d", round, st.LastNow, now)
		}
		if st.LastArmed <= st.LastNow {
			t.Errorf("round %d: armed %d not after now %d", round, st.LastArmed, st.LastNow)
		}
		if got := rtc.Alarm(); got != st.LastArmed {
			t.Errorf("round %d: alarm registers read back %d, want %d", round, got, st.LastArmed)
		}
		now += cfg.TickInterval + uint64(round)*137 // handler latency
	}
	if st := d.Stats(); st.Ticks != 5 || sched.ticks != 5 {
		t.Errorf("ticks: dispatcher %d, scheduler %d; want 5, 5", st.Ticks, sched.ticks)
	}
}

func TestSetupTimer(t *testing.T) {
	m := &machine{now: 40}
	plicMem := mmio.NewMapping(make([]byte, plic.RegisterSpan))
	rtc := &enablingTimer{machine: m}

	SetupTimer(Config{TimerSource: 11, TickInterval: 10}, rtc, plic.New(plicMem), testLogger())

	want := []string{"clear_alarm", "clear_interrupt", "read_time", "set_alarm 50", "enable_interrupt"}
	if diff := cmp.Diff(want, m.events); diff != "" {
		t.Errorf("SetupTimer RTC sequence mismatch (-want +got):\n%s", diff)
	}
	if got := plicMem.Read32(11 * 4); got != 1 {
		t.Errorf("PLIC priority for 11 = %d, want 1", got)
	}
	if got := plicMem.Read32(0x2000); got != 1<<11 {
		t.Errorf("PLIC enable word = 0x%x, want 0x%x", got, 1<<11)
	}
}

type enablingTimer struct{ *machine }

func (e *enablingTimer) EnableInterrupt() { e.record("enable_interrupt") }
