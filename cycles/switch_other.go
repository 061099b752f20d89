//go:build !(xvisor && riscv64)

package cycles

const haveSwitchCSR = false

func csrArm() {}
func csrStatus() uint64 { return 0 }
func csrReset() {}
