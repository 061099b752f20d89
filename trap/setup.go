package trap

import "github.com/sirupsen/logrus"

// Timer is the RTC as seen by the timer bring-up.
type Timer interface {
	TimeSource
	EnableInterrupt()
}

// Router is the PLIC as seen by the timer bring-up.
type Router interface {
	SetPriority(src, prio uint32)
	Enable(src uint32)
}

// SetupTimer starts the periodic tick: it drops any stale alarm state, arms
// the first alarm one interval from now, routes the RTC source through the
// PLIC and finally enables the RTC interrupt.
func SetupTimer(cfg Config, rtc Timer, plic Router, log *logrus.Entry) {
	log = log.WithField("component", "trap")
	log.Info("Setting up timer interrupt...")

	// Step 1: Clear the RTC alarm and interrupt
	rtc.ClearAlarm()
	rtc.ClearInterrupt()

	// Step 2: Arm the first alarm
	now := rtc.ReadTime()
	rtc.SetAlarm(now + cfg.TickInterval)

	// Step 3: Priority 1 and enable bit for the RTC source
	plic.SetPriority(cfg.TimerSource, 1)
	plic.Enable(cfg.TimerSource)

	// Step 4: Let the RTC raise its interrupt
	rtc.EnableInterrupt()

	log.WithFields(logrus.Fields{
		"source":   cfg.TimerSource,
		"interval": cfg.TickInterval,
		"first":    now + cfg.TickInterval,
	}).Info("Done")
}
