package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/core-tools/hsu-compose/pkg/errors"
	"github.com/core-tools/hsu-compose/pkg/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hsu_compose"

// Operation results
const (
	ResultOK       = "ok"
	ResultFailed   = "failed"
	ResultConflict = "conflict"
	ResultStale    = "stale"
)

// Metrics holds the collectors of one server instance. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	refreshes         *prometheus.CounterVec
	selectionEpoch    prometheus.Gauge
	unitStatus        *prometheus.GaugeVec
	tailsActive       prometheus.Gauge
	logBytes          *prometheus.GaugeVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Unit operations by operation and result",
		}, []string{"operation", "result"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Unit operation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"operation"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_refreshes_total",
			Help:      "Status refreshes by result",
		}, []string{"result"}),
		selectionEpoch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selection_epoch",
			Help:      "Current selection epoch",
		}),
		unitStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unit_status",
			Help:      "1 for the current status of each unit",
		}, []string{"unit", "status"}),
		tailsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "log_tails_active",
			Help:      "Number of active log tails",
		}),
		logBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "log_bytes",
			Help:      "Bytes ever appended to each unit log stream",
		}, []string{"unit", "stream"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveOperation(operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) SetSelectionEpoch(epoch uint64) {
	if m == nil {
		return
	}
	m.selectionEpoch.Set(float64(epoch))
}

// SetUnitStatus sets the series of status to 1 and every other known status of the unit to 0
func (m *Metrics) SetUnitStatus(unit string, status string, allStatuses []string) {
	if m == nil {
		return
	}
	for _, candidate := range allStatuses {
		value := 0.0
		if candidate == status {
			value = 1
		}
		m.unitStatus.WithLabelValues(unit, candidate).Set(value)
	}
}

func (m *Metrics) TailStarted() {
	if m == nil {
		return
	}
	m.tailsActive.Inc()
}

func (m *Metrics) TailStopped() {
	if m == nil {
		return
	}
	m.tailsActive.Dec()
}

// SetLogCaret records the caret of a unit log stream
func (m *Metrics) SetLogCaret(unit, stream string, caret int64) {
	if m == nil {
		return
	}
	m.logBytes.WithLabelValues(unit, stream).Set(float64(caret))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string, logger logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Metrics listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.NewNetworkError("metrics server failed", err).WithContext("addr", addr)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
