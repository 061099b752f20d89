// Package config holds the benchmark configuration. Values come from the
// defaults, then an optional TOML file, then command-line flags.
package config

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Strategy selects the measurement protocol.
type Strategy string

const (
	StrategyCounter Strategy = "counter" // single task, spin until switched
	StrategyHandoff Strategy = "handoff" // priming and probing tasks
)

// Wait selects how the counter-gated protocol detects a scheduling event.
type Wait string

const (
	WaitSwitch Wait = "switch" // context-switch indicator
	WaitGap    Wait = "gap"    // jump between consecutive clock samples
)

// Clock selects the measurement time base.
type Clock string

const (
	ClockCycles Clock = "cycles"
	ClockRTC    Clock = "rtc"
)

// Board selects where device registers live.
type Board string

const (
	BoardVirt   Board = "virt"   // simulated devices
	BoardDevMem Board = "devmem" // physical registers through /dev/mem
)

// Config is the benchmark configuration.
type Config struct {
	// Pages is the number of pages in the probed region.
	Pages uint32 `toml:"pages" flag:"pages"`
	// Rounds is the number of counter-gated measurements.
	Rounds   int      `toml:"rounds" flag:"rounds"`
	Strategy Strategy `toml:"strategy" flag:"strategy"`
	Wait     Wait     `toml:"wait" flag:"wait"`
	// TimesliceThreshold is the clock gap the gap waiter treats as a
	// scheduling event.
	TimesliceThreshold uint64 `toml:"timeslice_threshold" flag:"timeslice-threshold"`
	Clock              Clock  `toml:"clock" flag:"clock"`

	// TickInterval is the number of RTC units per scheduler tick.
	TickInterval uint64 `toml:"tick_interval" flag:"tick-interval"`
	// TimerSource is the PLIC source the RTC raises.
	TimerSource uint32 `toml:"timer_source" flag:"timer-source"`

	ProbeDescending   bool   `toml:"probe_descending" flag:"probe-descending"`
	InitialDescending bool   `toml:"initial_descending" flag:"initial-descending"`
	Sentinel          uint32 `toml:"sentinel" flag:"sentinel"`

	// AdversaryPages is the size of the region the adversary walks.
	AdversaryPages uint32 `toml:"adversary_pages" flag:"adversary-pages"`
	// CPU is the host CPU to pin to, or -1.
	CPU int `toml:"cpu" flag:"cpu"`

	Board    Board  `toml:"board" flag:"board"`
	RTCBase  uint64 `toml:"rtc_base" flag:"rtc-base"`
	PLICBase uint64 `toml:"plic_base" flag:"plic-base"`
	UARTBase uint64 `toml:"uart_base" flag:"uart-base"`

	LogLevel  string `toml:"log_level" flag:"log-level"`
	LogFormat string `toml:"log_format" flag:"log-format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Pages:              64,
		Rounds:             10000,
		Strategy:           StrategyCounter,
		Wait:               WaitSwitch,
		TimesliceThreshold: 1000000,
		Clock:              ClockCycles,
		TickInterval:       1000000,
		TimerSource:        11,
		ProbeDescending:    true,
		InitialDescending:  false,
		Sentinel:           0xA5A5A5A5,
		AdversaryPages:     256,
		CPU:                0,
		Board:              BoardVirt,
		RTCBase:            0x10003000,
		PLICBase:           0x0c000000,
		UARTBase:           0x10000000,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load reads a TOML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	conf := Default()
	if err := conf.decodeFile(path); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) decodeFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %q in %s", ErrInvalid, undecoded[0].String(), path)
	}
	return nil
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	switch {
	case c.Pages == 0:
		return fmt.Errorf("%w: pages must be positive", ErrInvalid)
	case c.Rounds < 0:
		return fmt.Errorf("%w: rounds %d is negative", ErrInvalid, c.Rounds)
	case c.TickInterval == 0:
		return fmt.Errorf("%w: tick_interval must be positive", ErrInvalid)
	case c.Sentinel == 0:
		return fmt.Errorf("%w: sentinel must be non-zero", ErrInvalid)
	case c.TimerSource == 0 || c.TimerSource > 31:
		return fmt.Errorf("%w: timer_source %d outside 1..31", ErrInvalid, c.TimerSource)
	}
	switch c.Strategy {
	case StrategyCounter, StrategyHandoff:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalid, c.Strategy)
	}
	switch c.Wait {
	case WaitSwitch, WaitGap:
	default:
		return fmt.Errorf("%w: unknown wait %q", ErrInvalid, c.Wait)
	}
	switch c.Clock {
	case ClockCycles, ClockRTC:
	default:
		return fmt.Errorf("%w: unknown clock %q", ErrInvalid, c.Clock)
	}
	switch c.Board {
	case BoardVirt, BoardDevMem:
	default:
		return fmt.Errorf("%w: unknown board %q", ErrInvalid, c.Board)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalid, c.LogFormat)
	}
	return nil
}
