package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Причины конфликтов при создании заказа (label `reason`).
const (
	ConflictReasonOutOfStock    = "out_of_stock"
	ConflictReasonStockChanged  = "stock_changed"
	ConflictReasonBadTransition = "bad_transition"
)

// OrderMetrics содержит метрики жизненного цикла заказов.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated   prometheus.Counter
	ordersCancelled prometheus.Counter
	ordersShipped   prometheus.Counter
	orderConflicts  *prometheus.CounterVec

	// Счётчики движения остатков
	stockReserved prometheus.Counter
	stockReleased prometheus.Counter

	// Гистограммы времени выполнения
	createDuration prometheus.Histogram
	cancelDuration prometheus.Histogram

	// Счётчики событий timeline
	timelineEvents prometheus.Counter
}

// NewOrderMetrics создаёт новый экземпляр метрик жизненного цикла заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ims_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ims_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		ordersShipped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ims_orders_shipped_total",
			Help: "Total number of orders shipped",
		}),
		orderConflicts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ims_order_conflicts_total",
			Help: "Total number of order operations rejected with a conflict",
		}, []string{"reason"}),
		stockReserved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ims_stock_reserved_units_total",
			Help: "Total number of stock units reserved by order creation",
		}),
		stockReleased: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ims_stock_released_units_total",
			Help: "Total number of stock units released by order cancellation",
		}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "ims_order_create_duration_seconds",
			Help:    "Duration of order creation transactions in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		cancelDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "ims_order_cancel_duration_seconds",
			Help:    "Duration of order cancellation transactions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ims_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
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
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *OrderMetrics) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
}

// RecordOrderShipped увеличивает счётчик отгруженных заказов.
func (m *OrderMetrics) RecordOrderShipped() {
	m.ordersShipped.Inc()
}

// RecordConflict увеличивает счётчик конфликтов с указанием причины.
func (m *OrderMetrics) RecordConflict(reason string) {
	m.orderConflicts.WithLabelValues(reason).Inc()
}

// RecordStockReserved учитывает списанные со склада единицы.
func (m *OrderMetrics) RecordStockReserved(units int64) {
	m.stockReserved.Add(float64(units))
}

// RecordStockReleased учитывает возвращённые на склад единицы.
func (m *OrderMetrics) RecordStockReleased(units int64) {
	m.stockReleased.Add(float64(units))
}

// RecordCreateDuration записывает длительность транзакции создания заказа.
func (m *OrderMetrics) RecordCreateDuration(duration time.Duration) {
	m.createDuration.Observe(duration.Seconds())
}

// RecordCancelDuration записывает длительность транзакции отмены заказа.
func (m *OrderMetrics) RecordCancelDuration(duration time.Duration) {
	m.cancelDuration.Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}
