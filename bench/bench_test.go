package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

// events is a shared log of what the collaborators saw, in order.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, s)
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

type fakeRegion struct{ ev *events }

func (r fakeRegion) Touch(descending bool) {
	if descending {
		r.ev.add("touch desc")
	} else {
		r.ev.add("touch asc")
	}
}

type fakeWaiter struct{ ev *events }

func (w fakeWaiter) Wait() { w.ev.add("wait") }

// recorder is a Console that keeps every line.
type recorder struct {
	ev    *events
	mu    sync.Mutex
	lines []string
}

func (r *recorder) SendLine(line string) {
	if r.ev != nil {
		r.ev.add("line")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// script returns a clock that yields the given readings, then repeats the
// last one.
func script(ev *events, readings ...uint64) Clock {
	var mu sync.Mutex
	i := 0
	return ClockFunc(func() uint64 {
		if ev != nil {
			ev.add("now")
		}
		mu.Lock()
		defer mu.Unlock()
		v := readings[i]
		if i < len(readings)-1 {
			i++
		}
		return v
	})
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// eventually polls cond until it holds or a second has passed.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFormatRound(t *testing.T) {
	tests := []struct {
		name       string
		diff, prev uint64
		want       string
	}{
		{name: "first round", diff: 37, prev: 0, want: "cycles: 37, diff to prev: +37"},
		{name: "slower", diff: 60, prev: 37, want: "cycles: 60, diff to prev: +23"},
		{name: "faster", diff: 30, prev: 60, want: "cycles: 30, diff to prev: -30"},
		{name: "equal", diff: 5, prev: 5, want: "cycles: 5, diff to prev: +0"},
		{name: "full range", diff: 0, prev: ^uint64(0), want: fmt.Sprintf("cycles: 0, diff to prev: -%d", ^uint64(0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatRound(tt.diff, tt.prev); got != tt.want {
				t.Errorf("FormatRound(%d, %d) = %q, want %q", tt.diff, tt.prev, got, tt.want)
			}
		})
	}
}

func TestCalibrate(t *testing.T) {
	first, second := Calibrate(script(nil, 0x10, 0x25))
	if got, want := FormatCalibration(first, second), "cyc1 = 0x10, cyc2 = 0x25, diff = 0x15"; got != want {
		t.Errorf("FormatCalibration = %q, want %q", got, want)
	}
}

func TestCounterGatedEndToEnd(t *testing.T) {
	ev := &events{}
	con := &recorder{ev: ev}
	p := NewCounterGated(2, true, quietLog())
	p.Region = fakeRegion{ev}
	p.Clock = script(ev, 100, 137, 500, 560)
	p.Wait = fakeWaiter{ev}
	p.Console = con

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()

	eventually(t, "done banner", func() bool {
		lines := con.all()
		return len(lines) > 0 && lines[len(lines)-1] == BannerDone
	})

	// Parked: nothing returns until cancelled.
	select {
	case err := <-errc:
		t.Fatalf("Run returned %v before cancel", err)
	case <-time.After(10 * time.Millisecond):
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want %v", err, context.Canceled)
	}

	wantLines := []string{
		BannerStart,
		"cycles: 37, diff to prev: +37",
		"cycles: 60, diff to prev: +23",
		BannerDone,
	}
	if diff := cmp.Diff(wantLines, con.all()); diff != "" {
		t.Errorf("console mismatch (-want +got):\n%s", diff)
	}

	round := []string{"touch asc", "wait", "now", "touch desc", "now", "line"}
	wantEvents := []string{"line"}
	wantEvents = append(wantEvents, round...)
	wantEvents = append(wantEvents, round...)
	wantEvents = append(wantEvents, "line")
	if diff := cmp.Diff(wantEvents, ev.all()); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestCounterGatedCancelled(t *testing.T) {
	ev := &events{}
	p := NewCounterGated(5, true, quietLog())
	p.Region = fakeRegion{ev}
	p.Clock = script(ev, 0)
	p.Wait = fakeWaiter{ev}
	p.Console = &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want %v", err, context.Canceled)
	}
	if got := ev.all(); len(got) != 0 {
		t.Errorf("cancelled run still touched collaborators: %v", got)
	}
}

// send blocks until v is in the queue.
func send(t *testing.T, h *Handoff, v uint32) {
	t.Helper()
	eventually(t, fmt.Sprintf("room for 0x%x", v), func() bool { return h.Queue.Send(v) })
}

func TestHandoffDesync(t *testing.T) {
	const sentinel, good = 0xA5A5A5A5, 3

	logger, hook := logtest.NewNullLogger()
	con := &recorder{}
	h := NewHandoff(sentinel, false, logrus.NewEntry(logger))
	h.Region = fakeRegion{&events{}}
	h.Clock = script(nil, 0, 10, 20, 35, 40, 50, 60, 75)
	h.Console = con

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- h.Probe(ctx) }()

	for i := 0; i < good; i++ {
		send(t, h, sentinel)
	}
	send(t, h, 0xdeadbeef)
	eventually(t, "desync", func() bool { return h.Desyncs() == 1 })

	if got := h.Rounds(); got != good {
		t.Errorf("Rounds() = %d after %d good tokens, want %d", got, good, good)
	}

	// Still alive.
	send(t, h, sentinel)
	eventually(t, "round after desync", func() bool { return h.Rounds() == good+1 })

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Probe() = %v, want %v", err, context.Canceled)
	}

	wantLines := []string{
		BannerStart,
		"cycles: 10, diff to prev: +10",
		"cycles: 15, diff to prev: +5",
		"cycles: 10, diff to prev: -5",
		"desync: got 0xdeadbeef, want 0xa5a5a5a5",
		"cycles: 15, diff to prev: +5",
	}
	if diff := cmp.Diff(wantLines, con.all()); diff != "" {
		t.Errorf("console mismatch (-want +got):\n%s", diff)
	}

	var warnings int
	for _, e := range hook.AllEntries() {
		if e.Level != logrus.WarnLevel {
			continue
		}
		warnings++
		if err, _ := e.Data[logrus.ErrorKey].(error); !errors.Is(err, ErrDesync) {
			t.Errorf("warning carries error %v, want %v", e.Data[logrus.ErrorKey], ErrDesync)
		}
	}
	if warnings != 1 {
		t.Errorf("logged %d desync warnings, want 1", warnings)
	}
	if got := h.Sent(); got != good+2 {
		t.Errorf("Sent() = %d, want %d", got, good+2)
	}
}

func TestHandoffDirectionAlternates(t *testing.T) {
	for _, initial := range []bool{false, true} {
		t.Run(fmt.Sprintf("initial_descending_%v", initial), func(t *testing.T) {
			const sentinel = 1
			ev := &events{}
			h := NewHandoff(sentinel, initial, quietLog())
			h.Region = fakeRegion{ev}
			h.Clock = script(nil, 0)
			h.Console = &recorder{}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go h.Probe(ctx)

			for i := 0; i < 4; i++ {
				send(t, h, sentinel)
			}
			eventually(t, "four rounds", func() bool { return h.Rounds() == 4 })

			name := map[bool]string{false: "touch asc", true: "touch desc"}
			want := []string{name[initial], name[!initial], name[initial], name[!initial]}
			if diff := cmp.Diff(want, ev.all()); diff != "" {
				t.Errorf("probe directions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandoffRun(t *testing.T) {
	ev := &events{}
	var yields int
	h := NewHandoff(0xA5A5A5A5, false, quietLog())
	h.Region = fakeRegion{ev}
	var tick uint64
	var mu sync.Mutex
	h.Clock = ClockFunc(func() uint64 {
		mu.Lock()
		defer mu.Unlock()
		tick += 7
		return tick
	})
	h.Console = &recorder{}
	h.Yield = func() { yields++ }

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.Run(ctx) }()

	eventually(t, "rounds", func() bool { return h.Rounds() >= 6 })
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want %v", err, context.Canceled)
	}
	if h.Desyncs() != 0 {
		t.Errorf("Desyncs() = %d, want 0", h.Desyncs())
	}

	// Priming and probing never overlap: touches alternate prime, probe.
	touches := ev.all()
	rounds := len(touches) / 2
	for i := 0; i < rounds; i++ {
		if touches[2*i] != "touch asc" {
			t.Errorf("touch %d = %q, want priming walk", 2*i, touches[2*i])
		}
		want := "touch asc"
		if i%2 == 1 {
			want = "touch desc"
		}
		if touches[2*i+1] != want {
			t.Errorf("probe %d = %q, want %q", i, touches[2*i+1], want)
		}
	}
	if yields == 0 {
		t.Error("priming task never yielded")
	}
}

type fakeIndicator struct {
	after    int
	polls    int
	armed    int
	disarmed int
}

func (f *fakeIndicator) Arm()           { f.armed++ }
func (f *fakeIndicator) Occurred() bool { return f.polls >= f.after }
func (f *fakeIndicator) Disarm()        { f.disarmed++ }

func TestSwitchWait(t *testing.T) {
	ind := &fakeIndicator{after: 5}
	w := &SwitchWait{Indicator: ind, Poll: func() { ind.polls++ }}
	w.Wait()

	if ind.polls != 5 {
		t.Errorf("polled %d times, want 5", ind.polls)
	}
	if ind.armed != 1 || ind.disarmed != 1 {
		t.Errorf("armed %d, disarmed %d times, want 1 and 1", ind.armed, ind.disarmed)
	}
}

func TestGapWait(t *testing.T) {
	tests := []struct {
		name      string
		readings  []uint64
		threshold uint64
		wantPolls int
	}{
		{name: "gap on first pair", readings: []uint64{0, 5000}, threshold: 1000, wantPolls: 0},
		{name: "steady then gap", readings: []uint64{0, 10, 20, 30, 2000}, threshold: 1000, wantPolls: 3},
		{name: "gap equal to threshold is not enough", readings: []uint64{0, 1000, 2001}, threshold: 1000, wantPolls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			polls := 0
			w := &GapWait{Clock: script(nil, tt.readings...), Threshold: tt.threshold, Poll: func() { polls++ }}
			w.Wait()
			if polls != tt.wantPolls {
				t.Errorf("polled %d times, want %d", polls, tt.wantPolls)
			}
		})
	}
}
