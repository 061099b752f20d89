package bitfield

// Cause is the layout of the RISC-V scause/mcause register on RV64.
// The top bit distinguishes interrupts from exceptions; the rest is the code.
type Cause struct {
	// Code is the exception or interrupt code (63 bits)
	Code uint64 `bitfield:",63"`

	// Interrupt is set when the trap was caused by an interrupt
	Interrupt bool `bitfield:",1"`
}

// PackCause packs a Cause into a 64-bit scause value.
func PackCause(c Cause) (uint64, error) {
	return Pack(c, &Config{NumBits: 64})
}

// UnpackCause splits a raw scause value. It is used on the trap path, so it
// is written out by hand instead of going through Unpack.
//
//go:nosplit
func UnpackCause(scause uint64) Cause {
	return Cause{
		Code:      (scause << 1) >> 1,
		Interrupt: scause>>63 != 0,
	}
}
