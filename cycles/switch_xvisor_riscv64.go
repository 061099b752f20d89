//go:build xvisor

package cycles

const haveSwitchCSR = true

// Implemented in switch_xvisor_riscv64.s.
func csrArm()
func csrStatus() uint64
func csrReset()
