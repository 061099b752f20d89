package bench

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/creinwar/freertos-xvisor-guest/rtos"
)

// Adversary is the task the probe is isolated from. Every time it is switched
// in it walks its own region, displacing whatever translations it can, and
// gives the CPU back.
type Adversary struct {
	Region Toucher
	// Yield, if set, is called after each walk.
	Yield func()

	log *logrus.Entry
}

// NewAdversary returns an adversary walking region.
func NewAdversary(region Toucher, yield func(), log *logrus.Entry) *Adversary {
	return &Adversary{Region: region, Yield: yield, log: log.WithField("component", "bench")}
}

// Run is the adversary's task body.
func (a *Adversary) Run(ctx context.Context, t *rtos.Task) error {
	a.log.WithField("task", t.Name).Debug("adversary starting")
	var walks uint64
	for {
		select {
		case <-ctx.Done():
			a.log.WithField("walks", walks).Debug("adversary stopped")
			return ctx.Err()
		case <-t.Scheduled():
		}
		a.Region.Touch(walks%2 == 1)
		walks++
		if a.Yield != nil {
			a.Yield()
		}
	}
}

// Spawn registers the adversary task.
func (a *Adversary) Spawn(k TaskCreator, prio int) error {
	_, err := k.CreateTask("adversary", prio, a.Run)
	return err
}
