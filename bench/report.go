package bench

import "fmt"

// FormatRound renders a round's result line. The change from the previous
// probe time always carries an explicit sign and is computed on magnitudes,
// so a regression never shows up as a bare negative or wrapped number.
func FormatRound(diff, prev uint64) string {
	if diff >= prev {
		return fmt.Sprintf("cycles: %d, diff to prev: +%d", diff, diff-prev)
	}
	return fmt.Sprintf("cycles: %d, diff to prev: -%d", diff, prev-diff)
}

// FormatDesync renders the line reported for a handoff that delivered the
// wrong token.
func FormatDesync(got, want uint32) string {
	return fmt.Sprintf("desync: got 0x%x, want 0x%x", got, want)
}

// Calibrate reads clock twice back to back. The difference is the fixed
// overhead every probe measurement carries.
func Calibrate(clock Clock) (first, second uint64) {
	first = clock.Now()
	second = clock.Now()
	return first, second
}

// FormatCalibration renders the result of Calibrate.
func FormatCalibration(first, second uint64) string {
	return fmt.Sprintf("cyc1 = 0x%x, cyc2 = 0x%x, diff = 0x%x", first, second, second-first)
}
