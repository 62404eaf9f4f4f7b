package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/order-history/internal/domain"
)

// StorageMetrics содержит метрики операций хранилища истории заказов.
// Методы безопасны на nil-получателе: компоненты, которым метрики не
// нужны (тесты, CLI), передают nil.
type StorageMetrics struct {
	opsTotal     *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	opDuration   *prometheus.HistogramVec
	rowsStreamed *prometheus.CounterVec

	activeStreams prometheus.Gauge
}

// NewStorageMetrics регистрирует метрики в DefaultRegisterer.
func NewStorageMetrics() *StorageMetrics {
	return newStorageMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newStorageMetricsWithRegisterer(registerer prometheus.Registerer) *StorageMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StorageMetrics{
		opsTotal: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderhistory_storage_ops_total",
			Help: "Total number of storage operations started",
		}, []string{"op"}),
		errorsTotal: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderhistory_storage_errors_total",
			Help: "Total number of storage operations finished with an error",
		}, []string{"op", "class"}),
		opDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderhistory_storage_op_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"op"}),
		rowsStreamed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderhistory_storage_rows_streamed_total",
			Help: "Total number of rows streamed to callers",
		}, []string{"op"}),
		activeStreams: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderhistory_storage_active_streams",
			Help: "Number of currently open result streams",
		}),
	}
}

// ObserveOp фиксирует завершение операции: счётчик, длительность и,
// при ошибке, её класс.
func (m *StorageMetrics) ObserveOp(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(op).Inc()
	m.opDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if err != nil {
		m.errorsTotal.WithLabelValues(op, domain.ErrorClass(err)).Inc()
	}
}

// AddRowsStreamed увеличивает счётчик отданных вызывающему строк.
func (m *StorageMetrics) AddRowsStreamed(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsStreamed.WithLabelValues(op).Add(float64(n))
}

// StreamOpened отмечает открытие потока результатов.
func (m *StorageMetrics) StreamOpened() {
	if m == nil {
		return
	}
	m.activeStreams.Inc()
}

// StreamClosed отмечает закрытие потока результатов.
func (m *StorageMetrics) StreamClosed() {
	if m == nil {
		return
	}
	m.activeStreams.Dec()
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}
