// Package progress draws a single line terminal progress bar.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Bar counts finished units of work and redraws when the shown percentage
// changes. It is safe for concurrent use.
type Bar struct {
	mu      sync.Mutex
	w       io.Writer
	total   int
	done    int
	width   int
	label   string
	percent int
}

// NewBar returns a bar over total units drawn to w.
func NewBar(w io.Writer, total int, label string) *Bar {
	b := &Bar{w: w, total: total, width: 40, label: label, percent: -1}
	b.mu.Lock()
	b.draw()
	b.mu.Unlock()
	return b
}

// Inc marks one more unit as done.
func (b *Bar) Inc() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done < b.total {
		b.done++
	}
	b.draw()
}

// Done returns the number of finished units.
func (b *Bar) Done() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Finish ends the line.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintln(b.w)
}

func (b *Bar) draw() {
	pct := 100
	if b.total > 0 {
		pct = b.done * 100 / b.total
	}
	if pct == b.percent {
		return
	}
	b.percent = pct
	filled := b.width * pct / 100
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", b.width-filled)
	fmt.Fprintf(b.w, "\r%s [%s] %3d%% %d/%d", b.label, bar, pct, b.done, b.total)
}
