package cycles

const source = "rdtsc"

// Read returns the time-stamp counter. Implemented in cycles_amd64.s.
func Read() uint64
