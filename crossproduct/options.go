package crossproduct

import (
	"io"
	"log/slog"

	"github.com/zeu5/counting-rm/metrics"
)

const (
	DefaultMaxSteps     = 1000
	DefaultCounterScale = 1.0
)

type Option func(*CrossProduct)

// WithMaxSteps sets the truncation horizon of an episode
func WithMaxSteps(n int) Option {
	return func(cp *CrossProduct) {
		if n > 0 {
			cp.maxSteps = n
		}
	}
}

// WithCounterScale divides counters by s in the fused observation
func WithCounterScale(s float64) Option {
	return func(cp *CrossProduct) {
		if s > 0 {
			cp.scale = s
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cp *CrossProduct) {
		if l != nil {
			cp.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(cp *CrossProduct) {
		cp.metrics = m
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
