package bootstrap

import (
	"log/slog"
	"os"

	"github.com/target/mmk-auth/config"
	"github.com/target/mmk-auth/internal/observability/statsd"
)

// Metrics is the configured sink and a closer for process shutdown.
type Metrics struct {
	Sink  statsd.Sink
	close func() error
}

// Close flushes and releases the underlying client, if any.
func (m Metrics) Close() error {
	if m.close == nil {
		return nil
	}
	return m.close()
}

// BuildMetrics returns a StatsD sink when metrics are enabled and a no-op sink
// otherwise. A StatsD dial failure is logged and degrades to the no-op sink.
func BuildMetrics(logger *slog.Logger, cfg config.ObservabilityMetricsConfig) Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.IsEnabled() {
		return Metrics{Sink: statsd.Nop{}}
	}

	host, _ := os.Hostname()
	client, err := statsd.NewClient(statsd.Config{
		Enabled:    true,
		Address:    cfg.StatsdAddress,
		Prefix:     cfg.Prefix,
		Logger:     logger,
		GlobalTags: map[string]string{"host": host},
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return Metrics{Sink: statsd.Nop{}}
	}
	logger.Info("statsd metrics enabled", "address", cfg.StatsdAddress, "prefix", cfg.Prefix)
	return Metrics{Sink: client, close: client.Close}
}
