package benchmarks

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeu5/counting-rm/metrics"
)

// startMetrics registers the collectors on a fresh registry and serves it on addr.
// An empty addr only collects.
func startMetrics(addr string, logger *slog.Logger) (*metrics.Collector, func()) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	if addr == "" {
		return collector, func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()
	return collector, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
}
