// Package bench measures how much of a task's TLB state survives an
// intervening scheduling event.
//
// Every round primes a page region (ascending walk), lets something else run,
// then times a second walk of the same pages. The time of that probe walk is
// reported on the console together with its change from the previous round.
// Two protocols decide what "something else runs" means: CounterGated spins
// until the scheduler has switched at least once, and Handoff splits priming
// and probing into two tasks that pass a token through a single-slot queue.
//
// Nothing but the probe walk executes between the two clock reads of a
// round. Formatting, logging and queue traffic all happen outside it.
package bench

import (
	"context"

	"github.com/creinwar/freertos-xvisor-guest/rtos"
)

// Console banners.
const (
	BannerBench = "Starting isolation benchmark"
	BannerStart = "[probe_task] Starting"
	BannerDone  = "[probe_task] Done!"
)

// Clock is the measurement time base.
type Clock interface {
	Now() uint64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() uint64

// Now implements Clock.
func (f ClockFunc) Now() uint64 { return f() }

// Toucher walks the measured page region. *tlb.Region implements it.
type Toucher interface {
	Touch(descending bool)
}

// TaskCreator is the task-creation side of the scheduler.
type TaskCreator interface {
	CreateTask(name string, prio int, fn rtos.TaskFunc) (*rtos.Task, error)
}

// Protocol is one way of synchronizing priming and probing.
type Protocol interface {
	// Run executes the protocol in the calling goroutine until ctx is done.
	Run(ctx context.Context) error
	// Spawn registers the protocol's tasks with a scheduler.
	Spawn(k TaskCreator, prio int) error
}

// Round is one prime, probe, measure cycle.
type Round struct {
	Index int
	Pre   uint64
	Post  uint64
}

// Diff returns the probe time.
func (r Round) Diff() uint64 {
	return r.Post - r.Pre
}
