package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/creinwar/freertos-xvisor-guest/bitfield"
	"github.com/creinwar/freertos-xvisor-guest/config"
)

// Regs implements subcommands.Command for the "regs" command.
type Regs struct{}

// Name implements subcommands.Command.Name.
func (*Regs) Name() string {
	return "regs"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Regs) Synopsis() string {
	return "dump the RTC and PLIC registers"
}

// Usage implements subcommands.Command.Usage.
func (*Regs) Usage() string {
	return "regs [flags]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Regs) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Regs) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	log := args[1].(*logrus.Entry)

	m, err := openMachine(conf, log)
	if err != nil {
		return fatalf(log, "opening board: %v", err)
	}
	defer m.Close()

	for _, l := range dumpLines(conf, m) {
		m.console.SendLine(l)
	}
	return subcommands.ExitSuccess
}

// dumpLines formats the register dump. 64-bit RTC values are also shown as
// the register halves they are read from.
func dumpLines(conf *config.Config, m *machine) []string {
	r := m.rtc.Dump()
	t, a := bitfield.UnpackTime(r.Time), bitfield.UnpackTime(r.Alarm)
	src := conf.TimerSource
	return []string{
		fmt.Sprintf("rtc  @ %#010x", conf.RTCBase),
		fmt.Sprintf("  time              %#018x (high %#010x low %#010x)", r.Time, t.High, t.Low),
		fmt.Sprintf("  alarm             %#018x (high %#010x low %#010x)", r.Alarm, a.High, a.Low),
		fmt.Sprintf("  irq enabled       %v", r.InterruptEnabled),
		fmt.Sprintf("  alarm running     %v", r.AlarmRunning),
		fmt.Sprintf("plic @ %#010x", conf.PLICBase),
		fmt.Sprintf("  priority[%d]      %d", src, m.plic.Priority(src)),
		fmt.Sprintf("  enable            %#010x (source %d: %v)", uint32(m.plic.Enabled()), src, m.plic.Enabled().Has(src)),
	}
}
