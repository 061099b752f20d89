package bench

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/creinwar/freertos-xvisor-guest/console"
	"github.com/creinwar/freertos-xvisor-guest/rtos"
)

// ErrDesync is logged when the probing task receives something other than
// the sentinel. The round is skipped and the protocol continues.
var ErrDesync = errors.New("bench: handoff desynchronized")

// Handoff runs priming and probing as two tasks. The priming task walks the
// region and passes a sentinel through a single-slot queue; the probing task
// blocks on the queue, then times its own walk. The probing direction flips
// every round.
type Handoff struct {
	Region  Toucher
	Clock   Clock
	Console console.Console

	// Queue carries the token from priming to probing.
	Queue *rtos.Queue[uint32]
	// Sentinel is the token value the probing task expects.
	Sentinel uint32
	// Yield, if set, is called by the priming task after each send.
	Yield func()

	descending bool
	drained    chan struct{}

	sent    atomic.Uint64
	rounds  atomic.Uint64
	desyncs atomic.Uint64

	log *logrus.Entry
}

// NewHandoff returns a protocol whose first probe walks in the direction
// given by initialDescending.
func NewHandoff(sentinel uint32, initialDescending bool, log *logrus.Entry) *Handoff {
	h := &Handoff{
		Sentinel:   sentinel,
		descending: initialDescending,
		drained:    make(chan struct{}, 1),
		log:        log.WithField("component", "bench"),
	}
	h.Queue = rtos.NewQueue(func(uint32) { h.sent.Add(1) })
	return h
}

// Prime is the priming task. It does not prime again until the probing task
// has consumed the previous token.
func (h *Handoff) Prime(ctx context.Context) error {
	h.log.Info("priming task starting")
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.Region.Touch(false)
		if !h.Queue.Send(h.Sentinel) {
			h.log.Debug("handoff slot still full")
		}
		if h.Yield != nil {
			h.Yield()
		}
		select {
		case <-h.drained:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Probe is the probing task.
func (h *Handoff) Probe(ctx context.Context) error {
	h.log.WithField("descending", h.descending).Info("probing task starting")
	h.Console.SendLine(BannerStart)

	var prev uint64
	for {
		got, err := h.Queue.Receive(ctx)
		if err != nil {
			return err
		}
		if got != h.Sentinel {
			h.desyncs.Add(1)
			h.log.WithError(ErrDesync).WithFields(logrus.Fields{
				"got":  got,
				"want": h.Sentinel,
			}).Warn("skipping round")
			h.Console.SendLine(FormatDesync(got, h.Sentinel))
			h.release()
			continue
		}

		pre := h.Clock.Now()
		h.Region.Touch(h.descending)
		post := h.Clock.Now()

		h.descending = !h.descending
		r := Round{Index: int(h.rounds.Add(1) - 1), Pre: pre, Post: post}
		diff := r.Diff()
		h.Console.SendLine(FormatRound(diff, prev))
		prev = diff
		h.release()
	}
}

// release lets the priming task start the next round.
func (h *Handoff) release() {
	select {
	case h.drained <- struct{}{}:
	default:
	}
}

// Run implements Protocol by running both tasks until ctx is done.
func (h *Handoff) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.Prime(ctx) })
	g.Go(func() error { return h.Probe(ctx) })
	return g.Wait()
}

// Spawn registers the priming and probing tasks at the same priority.
func (h *Handoff) Spawn(k TaskCreator, prio int) error {
	if _, err := k.CreateTask("prime", prio, func(ctx context.Context, _ *rtos.Task) error {
		return h.Prime(ctx)
	}); err != nil {
		return err
	}
	_, err := k.CreateTask("probe", prio, func(ctx context.Context, _ *rtos.Task) error {
		return h.Probe(ctx)
	})
	return err
}

// Sent returns the number of tokens that made it into the queue.
func (h *Handoff) Sent() uint64 { return h.sent.Load() }

// Rounds returns the number of rounds measured.
func (h *Handoff) Rounds() uint64 { return h.rounds.Load() }

// Desyncs returns the number of rounds skipped for a wrong token.
func (h *Handoff) Desyncs() uint64 { return h.desyncs.Load() }

var _ Protocol = (*Handoff)(nil)
