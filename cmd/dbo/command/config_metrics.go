package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsConfig struct {
	// Listen is the address /metrics is served on. Empty disables it.
	Listen string `json:"listen"`
}

func (c *MetricsConfig) validate() error {
	if c.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("metrics: invalid listen address %q: %w", c.Listen, err)
	}
	return nil
}

type metricsServer struct {
	addr     string
	gatherer prometheus.Gatherer
}

func (c *MetricsConfig) buildMetricsServer(gatherer prometheus.Gatherer) *metricsServer {
	return &metricsServer{addr: c.Listen, gatherer: gatherer}
}

func (m *metricsServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	svr := &http.Server{
		Addr:              m.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := svr.Shutdown(shutdownCtx); err != nil {
				slog.WarnContext(ctx, "stopping metrics server", "error", err)
			}
		case <-done:
		}
	}()

	slog.InfoContext(ctx, "serving metrics", "addr", m.addr)
	err := svr.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
