package bench

// Waiter blocks the probing task until the adversary has had a chance to run.
// Implementations spin; they never yield the CPU on their own.
type Waiter interface {
	Wait()
}

// Indicator is a latch that records whether a context switch happened since
// it was armed. *rtos.SwitchIndicator and cycles.SwitchCSR implement it.
type Indicator interface {
	Arm()
	Occurred() bool
	Disarm()
}

// SwitchWait spins until a context switch has been observed.
type SwitchWait struct {
	Indicator Indicator
	// Poll, if set, runs between samples of the indicator.
	Poll func()
}

// Wait implements Waiter.
func (w *SwitchWait) Wait() {
	w.Indicator.Arm()
	for !w.Indicator.Occurred() {
		if w.Poll != nil {
			w.Poll()
		}
	}
	w.Indicator.Disarm()
}

// GapWait spins until two consecutive clock samples are further apart than
// Threshold, which only happens when the task was descheduled in between.
type GapWait struct {
	Clock     Clock
	Threshold uint64
	// Poll, if set, runs between clock samples.
	Poll func()
}

// Wait implements Waiter.
func (w *GapWait) Wait() {
	prev := w.Clock.Now()
	for {
		cur := w.Clock.Now()
		if cur-prev > w.Threshold {
			return
		}
		prev = cur
		if w.Poll != nil {
			w.Poll()
		}
	}
}

var (
	_ Waiter = (*SwitchWait)(nil)
	_ Waiter = (*GapWait)(nil)
)
