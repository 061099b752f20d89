package goldfish

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/creinwar/freertos-xvisor-guest/mmio"
)

type access struct {
	Write bool
	Off   uintptr
	Val   uint32
}

// scriptedBus replays queued values for each register offset and records
// every access in order.
type scriptedBus struct {
	reads map[uintptr][]uint32
	log   []access
}

func (b *scriptedBus) Read32(off uintptr) uint32 {
	var v uint32
	if q := b.reads[off]; len(q) > 0 {
		v = q[0]
		if len(q) > 1 {
			b.reads[off] = q[1:]
		}
	}
	b.log = append(b.log, access{Off: off, Val: v})
	return v
}

func (b *scriptedBus) Write32(off uintptr, v uint32) {
	b.log = append(b.log, access{Write: true, Off: off, Val: v})
}

func TestReadTime(t *testing.T) {
	tests := []struct {
		name  string
		highs []uint32
		low   uint32
		want  uint64
		reads int // number of TIME_HIGH reads
	}{
		{
			name:  "stable high half",
			highs: []uint32{7, 7},
			low:   0x1234,
			want:  7<<32 | 0x1234,
			reads: 2,
		},
		{
			name:  "low wraps between the high reads",
			highs: []uint32{0, 1, 1},
			low:   0x00000003,
			want:  1<<32 | 0x00000003,
			reads: 3,
		},
		{
			name:  "wrap at the top of a later epoch",
			highs: []uint32{0xFFFF, 0x10000, 0x10000},
			low:   0,
			want:  0x10000 << 32,
			reads: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &scriptedBus{reads: map[uintptr][]uint32{
				TIME_HIGH: tt.highs,
				TIME_LOW:  {tt.low},
			}}
			got := New(bus).ReadTime()
			if got != tt.want {
				t.Errorf("ReadTime() = 0x%x, want 0x%x", got, tt.want)
			}
			if torn := uint64(tt.highs[0])<<32 | uint64(tt.low); tt.highs[0] != tt.highs[len(tt.highs)-1] && got == torn {
				t.Errorf("ReadTime() returned the torn value 0x%x", torn)
			}

			highReads := 0
			for _, a := range bus.log {
				if !a.Write && a.Off == TIME_HIGH {
					highReads++
				}
			}
			if highReads != tt.reads {
				t.Errorf("TIME_HIGH read %d times, want %d", highReads, tt.reads)
			}
			if last := bus.log[len(bus.log)-1]; last.Off != TIME_LOW {
				t.Errorf("last access was %+v, want the TIME_LOW read", last)
			}
		})
	}
}

func TestSetAlarmWritesHighThenLow(t *testing.T) {
	bus := &scriptedBus{}
	New(bus).SetAlarm(0x00000002_80000000)

	want := []access{
		{Write: true, Off: ALARM_HIGH, Val: 0x2},
		{Write: true, Off: ALARM_LOW, Val: 0x80000000},
	}
	if diff := cmp.Diff(want, bus.log); diff != "" {
		t.Errorf("SetAlarm access order mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterAccessors(t *testing.T) {
	tests := []struct {
		name string
		op   func(*RTC)
		want []access
	}{
		{"ClearAlarm", (*RTC).ClearAlarm, []access{{Write: true, Off: CLEAR_ALARM, Val: 1}}},
		{"ClearInterrupt", (*RTC).ClearInterrupt, []access{{Write: true, Off: CLEAR_INTERRUPT, Val: 1}}},
		{"EnableInterrupt", (*RTC).EnableInterrupt, []access{{Write: true, Off: IRQ_ENABLED, Val: 1}}},
		{"DisableInterrupt", (*RTC).DisableInterrupt, []access{
			{Write: true, Off: IRQ_ENABLED, Val: 0},
			{Write: true, Off: CLEAR_INTERRUPT, Val: 1},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &scriptedBus{}
			tt.op(New(bus))
			if diff := cmp.Diff(tt.want, bus.log); diff != "" {
				t.Errorf("%s accesses mismatch (-want +got):\n%s", tt.name, diff)
			}
		})
	}
}

func TestAlarmReadBack(t *testing.T) {
	rtc := New(mmio.NewMapping(make([]byte, RegisterSpan)))
	for _, v := range []uint64{0, 1, 0xFFFFFFFF, 0x1_00000000, 0xDEADBEEF_CAFEF00D} {
		rtc.SetAlarm(v)
		if got := rtc.Alarm(); got != v {
			t.Errorf("Alarm() after SetAlarm(0x%x) = 0x%x", v, got)
		}
	}
}

func TestStatusFlags(t *testing.T) {
	bus := &scriptedBus{reads: map[uintptr][]uint32{
		IRQ_ENABLED:  {1},
		ALARM_STATUS: {0},
	}}
	rtc := New(bus)
	if !rtc.InterruptEnabled() {
		t.Errorf("InterruptEnabled() = false, want true")
	}
	if rtc.AlarmStatus() {
		t.Errorf("AlarmStatus() = true, want false")
	}
}
