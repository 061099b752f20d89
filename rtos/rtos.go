// Package rtos is the scheduler the benchmark runs under: the tick and
// context-switch entry points the timer interrupt drives, task creation, and
// the single-slot handoff queue.
//
// The core only depends on the Scheduler and Queue surfaces. Kernel is a small
// tick-driven round-robin scheduler that provides them when running on a host.
package rtos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Scheduler is what the timer interrupt drives each period.
type Scheduler interface {
	// Tick advances the tick count and reports whether a context switch is due.
	Tick() bool
	// SwitchContext selects the next task to run.
	SwitchContext()
}

// Yielder raises the software interrupt a task uses to give up the CPU.
type Yielder interface {
	RaiseSoftware()
}

// ErrStarted is returned by CreateTask once the kernel is running.
var ErrStarted = errors.New("rtos: kernel already started")

const (
	// IdlePriority is the lowest priority. The idle task runs at it, so any
	// other task created at IdlePriority time-slices with the idle task.
	IdlePriority = 0

	// IdleTaskName names the idle task.
	IdleTaskName = "IDLE"
)

// TaskFunc is the body of a task. It runs until ctx is done or it returns.
type TaskFunc func(ctx context.Context, t *Task) error

// Task is a task handle.
type Task struct {
	Name     string
	Priority int

	fn   TaskFunc
	wake chan struct{}
	done bool // guarded by Kernel.mu
}

// Scheduled returns a channel that receives each time the task is switched in.
func (t *Task) Scheduled() <-chan struct{} {
	return t.wake
}

// Kernel is a round-robin, tick-driven scheduler. Tasks of the highest
// priority share the CPU in time slices of SliceTicks ticks. The idle task is
// always present, so there is never nothing to run.
type Kernel struct {
	log *logrus.Entry

	// SliceTicks is the number of ticks per time slice. Zero means one.
	SliceTicks uint64

	ticks    atomic.Uint64
	switches atomic.Uint64

	mu      sync.Mutex
	tasks   []*Task
	current int
	started bool
	yielder Yielder
}

// NewKernel returns a kernel holding only the idle task.
func NewKernel(log *logrus.Entry) *Kernel {
	k := &Kernel{log: log.WithField("component", "kernel"), current: -1}
	k.tasks = []*Task{newTask(IdleTaskName, IdlePriority, idleTask)}
	return k
}

func newTask(name string, prio int, fn TaskFunc) *Task {
	return &Task{Name: name, Priority: prio, fn: fn, wake: make(chan struct{}, 1)}
}

// idleTask never finishes on its own.
func idleTask(ctx context.Context, _ *Task) error {
	<-ctx.Done()
	return ctx.Err()
}

// SetYielder routes Yield through a software interrupt. Without one, Yield
// switches directly.
func (k *Kernel) SetYielder(y Yielder) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.yielder = y
}

// CreateTask registers a task. Tasks are only created before Start.
func (k *Kernel) CreateTask(name string, prio int, fn TaskFunc) (*Task, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started {
		return nil, fmt.Errorf("creating task %q: %w", name, ErrStarted)
	}
	t := newTask(name, prio, fn)
	k.tasks = append(k.tasks, t)
	k.log.WithFields(logrus.Fields{"task": name, "priority": prio}).Debug("task created")
	return t, nil
}

// Start runs every task until ctx is done or a task fails, and returns the
// first task error. A task that returns nil leaves the run queue.
func (k *Kernel) Start(ctx context.Context) error {
	k.mu.Lock()
	if k.started {
		k.mu.Unlock()
		return ErrStarted
	}
	k.started = true
	tasks := append([]*Task(nil), k.tasks...)
	k.mu.Unlock()

	k.log.WithField("tasks", len(tasks)).Info("starting scheduler")
	k.SwitchContext()

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error {
			err := t.fn(ctx, t)
			k.finish(t)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("task %q: %w", t.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Tick implements Scheduler.
func (k *Kernel) Tick() bool {
	n := k.ticks.Add(1)
	slice := k.SliceTicks
	if slice == 0 {
		slice = 1
	}
	if n%slice != 0 {
		return false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.runnable()) > 1
}

// SwitchContext implements Scheduler.
func (k *Kernel) SwitchContext() {
	k.mu.Lock()
	runnable := k.runnable()
	if len(runnable) == 0 {
		k.mu.Unlock()
		k.switches.Add(1)
		return
	}
	next := runnable[0]
	for _, idx := range runnable {
		if idx > k.current {
			next = idx
			break
		}
	}
	k.current = next
	t := k.tasks[next]
	k.mu.Unlock()

	k.switches.Add(1)
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// finish takes t off the run queue.
func (k *Kernel) finish(t *Task) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t.done = true
}

// runnable returns the indices of the unfinished tasks at the highest
// priority. k.mu must be held.
func (k *Kernel) runnable() []int {
	top := 0
	var idx []int
	for i, t := range k.tasks {
		switch {
		case t.done:
		case len(idx) == 0 || t.Priority > top:
			top = t.Priority
			idx = append(idx[:0], i)
		case t.Priority == top:
			idx = append(idx, i)
		}
	}
	return idx
}

// Yield gives up the rest of the current time slice.
func (k *Kernel) Yield() {
	k.mu.Lock()
	y := k.yielder
	k.mu.Unlock()
	if y != nil {
		y.RaiseSoftware()
		return
	}
	k.SwitchContext()
}

// Ticks returns the number of ticks so far.
func (k *Kernel) Ticks() uint64 {
	return k.ticks.Load()
}

// SwitchCount returns the number of context switches so far.
func (k *Kernel) SwitchCount() uint64 {
	return k.switches.Load()
}

// Current returns the name of the task most recently switched in.
func (k *Kernel) Current() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.current < 0 {
		return ""
	}
	return k.tasks[k.current].Name
}

// SwitchIndicator latches whether a context switch happened since it was
// armed, in the manner of the platform's context-switch status register.
type SwitchIndicator struct {
	k     *Kernel
	armed uint64
}

// Indicator returns a fresh indicator for k.
func (k *Kernel) Indicator() *SwitchIndicator {
	return &SwitchIndicator{k: k}
}

// Arm starts watching for the next context switch.
func (s *SwitchIndicator) Arm() {
	s.armed = s.k.switches.Load()
}

// Occurred reports whether a switch happened since Arm.
//
//go:nosplit
func (s *SwitchIndicator) Occurred() bool {
	return s.k.switches.Load() != s.armed
}

// Disarm stops watching.
func (s *SwitchIndicator) Disarm() {
	s.armed = s.k.switches.Load()
}

var _ Scheduler = (*Kernel)(nil)
