// Binary isolationbench measures how much TLB state a task keeps across
// scheduling events on the simulated RISC-V virt board, or reads the board
// registers of a real one.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/creinwar/freertos-xvisor-guest/config"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(Run), "")
	subcommands.Register(new(Calibrate), "")
	subcommands.Register(new(Regs), "debug")

	config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "isolationbench: %v\n", err)
		os.Exit(int(subcommands.ExitUsageError))
	}
	log, err := newLogger(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "isolationbench: %v\n", err)
		os.Exit(int(subcommands.ExitUsageError))
	}

	os.Exit(int(subcommands.Execute(context.Background(), conf, log)))
}

// newLogger builds the process logger. Logs go to stderr; stdout carries
// the console.
func newLogger(conf *config.Config) (*logrus.Entry, error) {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	l.SetLevel(level)
	switch conf.LogFormat {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logrus.NewEntry(l), nil
}

// fatalf logs the error and returns the failure status for Execute to return.
func fatalf(log *logrus.Entry, format string, args ...interface{}) subcommands.ExitStatus {
	log.Errorf(format, args...)
	return subcommands.ExitFailure
}
