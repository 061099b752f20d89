package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"runtime"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/creinwar/freertos-xvisor-guest/bench"
	"github.com/creinwar/freertos-xvisor-guest/config"
	"github.com/creinwar/freertos-xvisor-guest/cycles"
	"github.com/creinwar/freertos-xvisor-guest/rtos"
	"github.com/creinwar/freertos-xvisor-guest/tlb"
	"github.com/creinwar/freertos-xvisor-guest/trap"
)

// taskPriority is shared by every benchmark task and the idle task, so a
// lone probe still gets switched out on every time slice.
const taskPriority = rtos.IdlePriority

// Run implements subcommands.Command for the "run" command.
type Run struct {
	noAdversary bool
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "run the isolation benchmark on the simulated board"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] - prime, wait for a scheduling event, probe, report.
Results are written to stdout until interrupted.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.noAdversary, "no-adversary", false, "do not run the adversary task.")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	log := args[1].(*logrus.Entry)

	if conf.Board != config.BoardVirt {
		return fatalf(log, "run needs the simulated board: traps cannot be taken from %q", conf.Board)
	}
	if conf.CPU >= 0 {
		if err := pinCPU(conf.CPU, log); err != nil {
			return fatalf(log, "%v", err)
		}
	}

	m, err := openMachine(conf, log)
	if err != nil {
		return fatalf(log, "opening board: %v", err)
	}
	defer m.Close()

	region, err := tlb.NewRegion(conf.Pages)
	if err != nil {
		return fatalf(log, "probe region: %v", err)
	}
	defer region.Close()
	log.WithFields(logrus.Fields{
		"pages":  region.Pages(),
		"base":   region.Base(),
		"locked": region.Locked(),
	}).Info("probe region mapped")

	clock := bench.ClockFunc(cycles.Read)
	if conf.Clock == config.ClockRTC {
		clock = m.rtc.ReadTime
	}

	m.console.SendLine(bench.BannerBench)
	m.console.SendLine(bench.FormatCalibration(bench.Calibrate(clock)))

	k := rtos.NewKernel(log)
	k.SetYielder(m.board.Hart)
	tcfg := trap.Config{TimerSource: conf.TimerSource, TickInterval: conf.TickInterval}
	d := trap.NewDispatcher(tcfg, m.rtc, m.plic, k, m.board.Hart, m.board.Hart, log)
	m.board.Hart.SetHandler(d.Dispatch)

	proto, err := newProtocol(conf, region, clock, m, k, log)
	if err != nil {
		return fatalf(log, "%v", err)
	}
	if err := proto.Spawn(k, taskPriority); err != nil {
		return fatalf(log, "creating tasks: %v", err)
	}
	if !r.noAdversary {
		adv, err := tlb.NewRegion(conf.AdversaryPages)
		if err != nil {
			return fatalf(log, "adversary region: %v", err)
		}
		defer adv.Close()
		if err := bench.NewAdversary(adv, k.Yield, log).Spawn(k, taskPriority); err != nil {
			return fatalf(log, "creating tasks: %v", err)
		}
	}

	trap.SetupTimer(tcfg, m.rtc, m.plic, log)

	ctx, stop := signal.NotifyContext(ctx, unix.SIGINT, unix.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.board.Run(ctx) })
	g.Go(func() error { return k.Start(ctx) })
	err = g.Wait()

	st := d.Stats()
	log.WithFields(logrus.Fields{
		"ticks":    st.Ticks,
		"yields":   st.Yields,
		"switches": st.Switches,
		"traps":    m.board.Hart.Traps(),
	}).Info("stopped")
	if reason := m.board.Hart.Halted(); reason != nil {
		return fatalf(log, "hart halted: %v", reason)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fatalf(log, "%v", err)
	}
	return subcommands.ExitSuccess
}

// newProtocol builds the configured measurement protocol.
func newProtocol(conf *config.Config, region *tlb.Region, clock bench.Clock, m *machine, k *rtos.Kernel, log *logrus.Entry) (bench.Protocol, error) {
	switch conf.Strategy {
	case config.StrategyCounter:
		p := bench.NewCounterGated(conf.Rounds, conf.ProbeDescending, log)
		p.Region = region
		p.Clock = clock
		p.Console = m.console
		switch conf.Wait {
		case config.WaitGap:
			p.Wait = &bench.GapWait{Clock: clock, Threshold: conf.TimesliceThreshold, Poll: runtime.Gosched}
		default:
			var ind bench.Indicator = k.Indicator()
			if csr, ok := cycles.NewSwitchCSR(); ok {
				ind = csr
			}
			p.Wait = &bench.SwitchWait{Indicator: ind, Poll: runtime.Gosched}
		}
		return p, nil

	case config.StrategyHandoff:
		h := bench.NewHandoff(conf.Sentinel, conf.InitialDescending, log)
		h.Region = region
		h.Clock = clock
		h.Console = m.console
		h.Yield = k.Yield
		return h, nil
	}
	return nil, config.ErrInvalid
}
