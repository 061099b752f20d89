// Package console carries result lines out of the benchmark. Sending is fire
// and forget: a line that cannot be written is dropped.
package console

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Console takes one line of output at a time.
type Console interface {
	SendLine(line string)
}

// Writer is a Console over an io.Writer. Lines are newline terminated.
type Writer struct {
	log *logrus.Entry

	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a console writing to w.
func NewWriter(w io.Writer, log *logrus.Entry) *Writer {
	return &Writer{w: w, log: log.WithField("component", "console")}
}

// SendLine implements Console.
func (c *Writer) SendLine(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.w, line+"\n"); err != nil {
		c.log.WithError(err).Debug("dropped console line")
	}
}

var _ Console = (*Writer)(nil)
