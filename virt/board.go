// Package virt simulates the parts of the RISC-V virt machine the benchmark
// runs on: a goldfish RTC wired to PLIC source 11, the PLIC, an ns16550 UART
// and the interrupt entry of a single hart.
//
// Device registers are reached through an mmio.Map at the same physical
// addresses the drivers use on the real board, so the drivers run unchanged.
package virt

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/creinwar/freertos-xvisor-guest/console"
	"github.com/creinwar/freertos-xvisor-guest/goldfish"
	"github.com/creinwar/freertos-xvisor-guest/mmio"
	"github.com/creinwar/freertos-xvisor-guest/plic"
)

// Layout places the devices.
type Layout struct {
	RTCBase     uintptr
	PLICBase    uintptr
	UARTBase    uintptr
	TimerSource uint32
}

// DefaultLayout is the QEMU virt memory map.
var DefaultLayout = Layout{
	RTCBase:     0x10003000,
	PLICBase:    0x0c000000,
	UARTBase:    0x10000000,
	TimerSource: 11,
}

// DefaultPollInterval is how often Run checks the RTC alarm.
const DefaultPollInterval = 20 * time.Microsecond

// Board is a simulated virt machine.
type Board struct {
	Layout Layout
	Bus    *mmio.Map

	RTC  *RTC
	PLIC *PLIC
	UART *UART
	Hart *Hart

	// PollInterval is how often Run checks the RTC alarm.
	PollInterval time.Duration

	log *logrus.Entry
}

// NewBoard builds a board. now is the RTC time source in nanoseconds; nil
// means the host's monotonic clock. UART output goes to out.
func NewBoard(layout Layout, now func() uint64, out io.Writer, log *logrus.Entry) (*Board, error) {
	if now == nil {
		start := time.Now()
		now = func() uint64 { return uint64(time.Since(start)) }
	}
	log = log.WithField("component", "board")

	b := &Board{
		Layout:       layout,
		Bus:          &mmio.Map{},
		PollInterval: DefaultPollInterval,
		log:          log,
	}
	b.Hart = NewHart(log)
	b.PLIC = NewPLIC(b.Hart.SetExternal)
	b.RTC = NewRTC(now, b.PLIC, layout.TimerSource)
	b.UART = NewUART(out)

	for _, d := range []struct {
		name string
		base uintptr
		size uintptr
		dev  mmio.Bus
	}{
		{"rtc", layout.RTCBase, goldfish.RegisterSpan, b.RTC},
		{"plic", layout.PLICBase, plic.RegisterSpan, b.PLIC},
		{"uart", layout.UARTBase, console.RegisterSpan, b.UART},
	} {
		if err := b.Bus.Add(d.base, d.size, d.dev); err != nil {
			return nil, fmt.Errorf("mapping %s: %w", d.name, err)
		}
		log.WithFields(logrus.Fields{"device": d.name, "base": fmt.Sprintf("%#x", d.base)}).Debug("device mapped")
	}
	return b, nil
}

// Window returns the register window of the device at base.
func (b *Board) Window(base uintptr) mmio.Bus8 {
	return mmio.Window(b.Bus, base)
}

// Run runs the hart and the RTC until ctx is done.
func (b *Board) Run(ctx context.Context) error {
	b.log.Info("board running")
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Hart.Run(ctx) })
	g.Go(func() error {
		t := time.NewTicker(b.PollInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				b.RTC.Poll()
			}
		}
	})
	return g.Wait()
}
