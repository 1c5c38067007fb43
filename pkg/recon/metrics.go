package recon

import (
	"context"
	"log/slog"
)

// Metrics is the objective measured at the input of one descent step.
type Metrics struct {
	Iteration int
	Objective float64
	TV        float64
	TV2       float64
}

// MetricsSink receives one record per iteration.
type MetricsSink interface {
	Record(m Metrics)
}

// ProgressSink is advanced once per finished iteration. Implementations shared
// between concurrent solves must serialize Inc themselves.
type ProgressSink interface {
	Inc()
}

// MetricsFunc adapts a function to MetricsSink.
type MetricsFunc func(m Metrics)

func (f MetricsFunc) Record(m Metrics) { f(m) }

// MultiMetrics fans a record out to several sinks.
type MultiMetrics []MetricsSink

func (mm MultiMetrics) Record(m Metrics) {
	for _, s := range mm {
		s.Record(m)
	}
}

// SlogMetrics logs every record at debug level.
type SlogMetrics struct {
	Ctx    context.Context
	Logger *slog.Logger
	Attrs  []slog.Attr
}

func (s SlogMetrics) Record(m Metrics) {
	ctx := s.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	attrs := append([]slog.Attr{
		slog.Int("iteration", m.Iteration),
		slog.Float64("objective", m.Objective),
		slog.Float64("tv", m.TV),
		slog.Float64("tv2", m.TV2),
	}, s.Attrs...)
	logger.LogAttrs(ctx, slog.LevelDebug, "recon: iteration", attrs...)
}

type discardMetrics struct{}

func (discardMetrics) Record(Metrics) {}
