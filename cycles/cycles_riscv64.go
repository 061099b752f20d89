package cycles

const source = "rdcycle"

// Read returns the cycle CSR. Implemented in cycles_riscv64.s.
func Read() uint64
