package bitfield

// Time is a 64-bit device time value as it appears in a pair of 32-bit
// registers: low word at the lower offset, high word above it.
type Time struct {
	Low  uint32 `bitfield:",32"`
	High uint32 `bitfield:",32"`
}

// SplitTime splits a 64-bit value into its register halves. It is on the
// interrupt path, so it does not go through Unpack.
//
//go:nosplit
func SplitTime(v uint64) Time {
	return Time{Low: uint32(v), High: uint32(v >> 32)}
}

// JoinTime composes the register halves into a 64-bit value.
//
//go:nosplit
func JoinTime(high, low uint32) uint64 {
	return uint64(high)<<32 | uint64(low)
}

// PackTime composes t through its tag layout. The layout is fixed and every
// field fits, so it never fails.
func PackTime(t Time) uint64 {
	v, err := Pack(t, &Config{NumBits: 64})
	if err != nil {
		panic(err)
	}
	return v
}

// UnpackTime is the tag-layout inverse of PackTime.
func UnpackTime(v uint64) Time {
	var t Time
	if err := Unpack(v, &t); err != nil {
		panic(err)
	}
	return t
}
