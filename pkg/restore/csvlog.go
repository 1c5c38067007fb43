package restore

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync"

	"github.com/jpfielding/dejpeg.go/pkg/recon"
)

// CSVLog writes one row per solver iteration:
// component,iteration,objective,tv,tv2. Sinks of different components may
// record concurrently.
type CSVLog struct {
	mu  sync.Mutex
	w   *csv.Writer
	err error
}

// NewCSVLog writes the header row to w.
func NewCSVLog(w io.Writer) *CSVLog {
	l := &CSVLog{w: csv.NewWriter(w)}
	l.write([]string{"component", "iteration", "objective", "tv", "tv2"})
	return l
}

// Sink returns the metrics sink of one component.
func (l *CSVLog) Sink(component int) recon.MetricsSink {
	return recon.MetricsFunc(func(m recon.Metrics) {
		l.write([]string{
			strconv.Itoa(component),
			strconv.Itoa(m.Iteration),
			strconv.FormatFloat(m.Objective, 'g', -1, 64),
			strconv.FormatFloat(m.TV, 'g', -1, 64),
			strconv.FormatFloat(m.TV2, 'g', -1, 64),
		})
	})
}

func (l *CSVLog) write(record []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err == nil {
		l.err = l.w.Write(record)
	}
}

// Flush writes buffered rows and returns the first error seen.
func (l *CSVLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if l.err != nil {
		return l.err
	}
	return l.w.Error()
}
