package console

import (
	"sync"

	"github.com/creinwar/freertos-xvisor-guest/mmio"
)

// ns16550 register offsets and bits.
const (
	UART_THR = 0x00 // Transmit holding (write)
	UART_RBR = 0x00 // Receive buffer (read)
	UART_IER = 0x01 // Interrupt enable
	UART_FCR = 0x02 // FIFO control (write)
	UART_LCR = 0x03 // Line control
	UART_LSR = 0x05 // Line status

	LSR_DR   = 1 << 0 // Receive data ready
	LSR_THRE = 1 << 5 // Transmit holding register empty

	LCR_8N1    = 0x03
	FCR_ENABLE = 0x07 // Enable and reset both FIFOs

	// RegisterSpan is the size of the register window.
	RegisterSpan = 0x100
)

// NS16550 is a polled driver for the ns16550 UART on the virt board.
type NS16550 struct {
	regs mmio.Bus8
	mu   sync.Mutex
}

// NewNS16550 returns a driver for the UART whose registers regs addresses.
func NewNS16550(regs mmio.Bus8) *NS16550 {
	return &NS16550{regs: regs}
}

// Init sets 8N1 framing, enables the FIFOs and masks UART interrupts.
func (u *NS16550) Init() {
	u.regs.Write8(UART_IER, 0)
	u.regs.Write8(UART_LCR, LCR_8N1)
	u.regs.Write8(UART_FCR, FCR_ENABLE)
}

// Putc waits for room in the transmitter and writes c.
func (u *NS16550) Putc(c byte) {
	for u.regs.Read8(UART_LSR)&LSR_THRE == 0 {
		// Wait for transmit holding register to drain
	}
	u.regs.Write8(UART_THR, c)
}

// SendLine implements Console. Lines end in CR LF.
func (u *NS16550) SendLine(line string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i := 0; i < len(line); i++ {
		u.Putc(line[i])
	}
	u.Putc('\r')
	u.Putc('\n')
}

var _ Console = (*NS16550)(nil)
