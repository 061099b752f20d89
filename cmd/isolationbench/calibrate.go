package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/creinwar/freertos-xvisor-guest/bench"
	"github.com/creinwar/freertos-xvisor-guest/config"
	"github.com/creinwar/freertos-xvisor-guest/cycles"
)

// Calibrate implements subcommands.Command for the "calibrate" command.
type Calibrate struct {
	count int
}

// Name implements subcommands.Command.Name.
func (*Calibrate) Name() string {
	return "calibrate"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Calibrate) Synopsis() string {
	return "print the cost of two back-to-back clock reads"
}

// Usage implements subcommands.Command.Usage.
func (*Calibrate) Usage() string {
	return "calibrate [flags]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *Calibrate) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.count, "n", 1, "number of samples per clock.")
}

// Execute implements subcommands.Command.Execute.
func (c *Calibrate) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	log := args[1].(*logrus.Entry)

	m, err := openMachine(conf, log)
	if err != nil {
		return fatalf(log, "opening board: %v", err)
	}
	defer m.Close()

	clocks := []struct {
		name  string
		clock bench.Clock
	}{
		{cycles.Name(), bench.ClockFunc(cycles.Read)},
		{"rtc", bench.ClockFunc(m.rtc.ReadTime)},
	}
	for _, cl := range clocks {
		for i := 0; i < c.count; i++ {
			line := bench.FormatCalibration(bench.Calibrate(cl.clock))
			m.console.SendLine(fmt.Sprintf("%s: %s", cl.name, line))
		}
	}
	return subcommands.ExitSuccess
}
