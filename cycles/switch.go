package cycles

// SwitchCSR is the context-switch status register (CSR 0x5DB) the xvisor
// hypervisor exposes to its guests. Writing bit 1 arms it; bit 0 then reads
// as set once the hypervisor has switched the guest out and back in.
type SwitchCSR struct{}

// NewSwitchCSR returns the register and whether this build can reach it.
// Only riscv64 builds with the xvisor tag can.
func NewSwitchCSR() (SwitchCSR, bool) {
	return SwitchCSR{}, haveSwitchCSR
}

// Arm starts watching for the next hypervisor context switch.
func (SwitchCSR) Arm() {
	csrArm()
}

// Occurred reports whether a context switch happened since Arm.
func (SwitchCSR) Occurred() bool {
	return csrStatus()&1 != 0
}

// Disarm resets the register.
func (SwitchCSR) Disarm() {
	csrReset()
}
