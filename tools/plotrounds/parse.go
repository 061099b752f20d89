package main

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var (
	roundLine  = regexp.MustCompile(`^cycles: (\d+), diff to prev: ([+-])(\d+)$`)
	desyncLine = regexp.MustCompile(`^desync: got 0x[0-9a-f]+, want 0x[0-9a-f]+$`)
)

// Result is one reported round.
type Result struct {
	Cycles uint64
	Delta  int64
}

// Trace is everything parsed from a console capture.
type Trace struct {
	Rounds  []Result
	Desyncs int
	Skipped int
}

// Parse reads a console capture. Lines that are not round results are
// counted and skipped; UART captures may end lines in CR LF.
func Parse(r io.Reader) (*Trace, error) {
	tr := &Trace{}
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimRight(sc.Text(), "\r")
		if desyncLine.MatchString(line) {
			tr.Desyncs++
			continue
		}
		m := roundLine.FindStringSubmatch(line)
		if m == nil {
			tr.Skipped++
			continue
		}
		cyc, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: cycles: %w", n, err)
		}
		mag, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: delta: %w", n, err)
		}
		if m[2] == "-" {
			mag = -mag
		}
		tr.Rounds = append(tr.Rounds, Result{Cycles: cyc, Delta: mag})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading capture: %w", err)
	}
	return tr, nil
}

// Stats summarises the probe times.
func (t *Trace) Stats() (min, max, median uint64) {
	if len(t.Rounds) == 0 {
		return 0, 0, 0
	}
	sorted := make([]uint64, len(t.Rounds))
	for i, r := range t.Rounds {
		sorted[i] = r.Cycles
	}
	slices.Sort(sorted)
	return sorted[0], sorted[len(sorted)-1], sorted[len(sorted)/2]
}
