//go:build !amd64 && !riscv64

package cycles

import "time"

const source = "monotonic-ns"

var epoch = time.Now()

// Read returns nanoseconds on the monotonic clock since the package was
// initialised. There is no portable cycle counter on this architecture.
func Read() uint64 {
	return uint64(time.Since(epoch))
}
