package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/creinwar/freertos-xvisor-guest/config"
	"github.com/creinwar/freertos-xvisor-guest/console"
	"github.com/creinwar/freertos-xvisor-guest/goldfish"
	"github.com/creinwar/freertos-xvisor-guest/mmio"
	"github.com/creinwar/freertos-xvisor-guest/plic"
	"github.com/creinwar/freertos-xvisor-guest/virt"
)

// machine is the set of drivers a command works with.
type machine struct {
	board   *virt.Board // nil unless simulated
	rtc     *goldfish.RTC
	plic    *plic.PLIC
	console console.Console
	closers []io.Closer
}

// openMachine attaches drivers to the configured board.
func openMachine(conf *config.Config, log *logrus.Entry) (*machine, error) {
	layout := virt.Layout{
		RTCBase:     uintptr(conf.RTCBase),
		PLICBase:    uintptr(conf.PLICBase),
		UARTBase:    uintptr(conf.UARTBase),
		TimerSource: conf.TimerSource,
	}

	switch conf.Board {
	case config.BoardVirt:
		b, err := virt.NewBoard(layout, nil, os.Stdout, log)
		if err != nil {
			return nil, err
		}
		uart := console.NewNS16550(b.Window(layout.UARTBase))
		uart.Init()
		return &machine{
			board:   b,
			rtc:     goldfish.New(b.Window(layout.RTCBase)),
			plic:    plic.New(b.Window(layout.PLICBase)),
			console: uart,
		}, nil

	case config.BoardDevMem:
		m := &machine{console: console.NewWriter(os.Stdout, log)}
		rtcRegs, err := mmio.OpenDevMem(layout.RTCBase, goldfish.RegisterSpan)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, rtcRegs)
		plicRegs, err := mmio.OpenDevMem(layout.PLICBase, plic.RegisterSpan)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.closers = append(m.closers, plicRegs)
		m.rtc = goldfish.New(rtcRegs)
		m.plic = plic.New(plicRegs)
		return m, nil
	}
	return nil, fmt.Errorf("%w: board %q", config.ErrInvalid, conf.Board)
}

// Close releases register mappings.
func (m *machine) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	return first
}

// pinCPU confines every thread of the process to cpu and runs goroutines
// one at a time, the host stand-in for a single-hart machine.
func pinCPU(cpu int, log *logrus.Entry) error {
	runtime.GOMAXPROCS(1)

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	tasks, err := os.ReadDir("/proc/self/task")
	if err != nil {
		return fmt.Errorf("listing threads: %w", err)
	}
	for _, t := range tasks {
		tid, err := strconv.Atoi(filepath.Base(t.Name()))
		if err != nil {
			continue
		}
		if err := unix.SchedSetaffinity(tid, &set); err != nil {
			return fmt.Errorf("pinning thread %d to cpu %d: %w", tid, cpu, err)
		}
	}
	log.WithFields(logrus.Fields{"cpu": cpu, "threads": len(tasks)}).Info("pinned to cpu")
	return nil
}
