package config

import (
	"flag"
	"fmt"
	"math"
	"reflect"
)

// RegisterFlags registers flags used to populate Config. Flag defaults are
// the values of Default.
func RegisterFlags(flagSet *flag.FlagSet) {
	d := Default()

	flagSet.String("config", "", "path to a TOML configuration file, applied before flags.")

	// Measurement.
	flagSet.Uint64("pages", uint64(d.Pages), "number of pages in the probed region.")
	flagSet.Int("rounds", d.Rounds, "number of counter-gated measurement rounds.")
	flagSet.String("strategy", string(d.Strategy), "measurement protocol: counter (default) or handoff.")
	flagSet.String("wait", string(d.Wait), "counter-gated wait: switch (default) or gap.")
	flagSet.Uint64("timeslice-threshold", d.TimesliceThreshold, "clock gap the gap wait treats as a context switch.")
	flagSet.String("clock", string(d.Clock), "measurement clock: cycles (default) or rtc.")
	flagSet.Bool("probe-descending", d.ProbeDescending, "counter-gated probing direction.")
	flagSet.Bool("initial-descending", d.InitialDescending, "handoff probing direction of the first round.")
	flagSet.Uint64("sentinel", uint64(d.Sentinel), "handoff token value.")
	flagSet.Uint64("adversary-pages", uint64(d.AdversaryPages), "number of pages the adversary task walks.")

	// Scheduler and interrupt wiring.
	flagSet.Uint64("tick-interval", d.TickInterval, "RTC units per scheduler tick.")
	flagSet.Uint64("timer-source", uint64(d.TimerSource), "PLIC source id of the RTC.")
	flagSet.Int("cpu", d.CPU, "host CPU to pin the process to, -1 to leave unpinned.")

	// Board.
	flagSet.String("board", string(d.Board), "device registers: virt (simulated, default) or devmem.")
	flagSet.Uint64("rtc-base", d.RTCBase, "goldfish RTC base address.")
	flagSet.Uint64("plic-base", d.PLICBase, "PLIC base address.")
	flagSet.Uint64("uart-base", d.UARTBase, "ns16550 UART base address.")

	// Logging.
	flagSet.String("log-level", d.LogLevel, "log level: debug, info, warning, error.")
	flagSet.String("log-format", d.LogFormat, "log format: text (default) or json.")
}

// NewFromFlags builds a Config from the defaults, the file named by the
// config flag if any, and every flag set on the command line, in that order.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := Default()
	if fl := flagSet.Lookup("config"); fl != nil && fl.Value.String() != "" {
		if err := conf.decodeFile(fl.Value.String()); err != nil {
			return nil, err
		}
	}

	set := map[string]*flag.Flag{}
	flagSet.Visit(func(fl *flag.Flag) { set[fl.Name] = fl })

	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			continue
		}
		if flagSet.Lookup(name) == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		fl, ok := set[name]
		if !ok {
			continue
		}
		x := reflect.ValueOf(fl.Value.(flag.Getter).Get())
		if !x.CanConvert(f.Type) {
			return nil, fmt.Errorf("%w: flag %q cannot set %s", ErrInvalid, name, f.Type)
		}
		if f.Type.Kind() == reflect.Uint32 && x.Uint() > math.MaxUint32 {
			return nil, fmt.Errorf("%w: flag %q value %d exceeds 32 bits", ErrInvalid, name, x.Uint())
		}
		obj.Field(i).Set(x.Convert(f.Type))
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}
