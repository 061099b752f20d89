// Package cycles reads the per-hart cycle counter used to time the probe.
package cycles

// Name returns the counter Read samples.
func Name() string {
	return source
}
