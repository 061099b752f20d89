package bench

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/creinwar/freertos-xvisor-guest/console"
	"github.com/creinwar/freertos-xvisor-guest/rtos"
)

// CounterGated runs a fixed number of rounds in a single task. Between
// priming and probing it spins in Wait until the scheduler has run something
// else.
type CounterGated struct {
	Region  Toucher
	Clock   Clock
	Wait    Waiter
	Console console.Console

	// Rounds is the number of measurements to take.
	Rounds int
	// ProbeDescending selects the probing direction. Descending probes
	// overlap most with what priming left behind.
	ProbeDescending bool

	log *logrus.Entry
}

// NewCounterGated returns a protocol with no collaborators set.
func NewCounterGated(rounds int, probeDescending bool, log *logrus.Entry) *CounterGated {
	return &CounterGated{
		Rounds:          rounds,
		ProbeDescending: probeDescending,
		log:             log.WithField("component", "bench"),
	}
}

// Run takes Rounds measurements and then parks until ctx is done, leaving
// the results for read-out. It returns ctx.Err().
func (p *CounterGated) Run(ctx context.Context) error {
	p.log.WithFields(logrus.Fields{"rounds": p.Rounds, "descending": p.ProbeDescending}).Info("counter-gated probe starting")
	p.Console.SendLine(BannerStart)

	var prev uint64
	for i := 0; i < p.Rounds; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r := p.round(i)
		diff := r.Diff()
		p.Console.SendLine(FormatRound(diff, prev))
		prev = diff
	}

	p.Console.SendLine(BannerDone)
	p.log.Info("counter-gated probe done, parking")
	<-ctx.Done()
	return ctx.Err()
}

// round primes, waits for the adversary and times the probe.
func (p *CounterGated) round(i int) Round {
	p.Region.Touch(false)
	p.Wait.Wait()

	pre := p.Clock.Now()
	p.Region.Touch(p.ProbeDescending)
	post := p.Clock.Now()

	return Round{Index: i, Pre: pre, Post: post}
}

// Spawn registers the probe task.
func (p *CounterGated) Spawn(k TaskCreator, prio int) error {
	_, err := k.CreateTask("probe", prio, func(ctx context.Context, _ *rtos.Task) error {
		return p.Run(ctx)
	})
	return err
}

var _ Protocol = (*CounterGated)(nil)
