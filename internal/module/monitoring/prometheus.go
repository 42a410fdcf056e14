package monitoring

import "github.com/prometheus/client_golang/prometheus"

// promMetrics mirrors the rolling-window sink to prometheus collectors so
// the same numbers are scrapeable at /metrics.
type promMetrics struct {
	TransactionsTotal       *prometheus.CounterVec
	RevenueTotal            *prometheus.CounterVec
	RefundsTotal            *prometheus.CounterVec
	SuccessRate             prometheus.Gauge
	ErrorRate               prometheus.Gauge
	ProviderRequestDuration *prometheus.HistogramVec
	AlertsTotal             *prometheus.CounterVec
	HTTPRequestsTotal       *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
}

func newPromMetrics(namespace string, reg prometheus.Registerer) *promMetrics {
	m := &promMetrics{
		TransactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "transactions_total",
				Help:      "Total number of payment transactions by terminal status",
			},
			[]string{"provider", "status"},
		),
		RevenueTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "revenue_total",
				Help:      "Total captured revenue in minor currency units",
			},
			[]string{"currency"},
		),
		RefundsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "refunds_total",
				Help:      "Total refunded amount in minor currency units",
			},
			[]string{"provider"},
		),
		SuccessRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "transaction_success_rate",
				Help:      "Rolling share of transactions reaching succeeded",
			},
		),
		ErrorRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "provider_error_rate",
				Help:      "Rolling share of provider calls that failed",
			},
		),
		ProviderRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "provider_request_duration_seconds",
				Help:      "Payment provider call duration in seconds",
				Buckets:   []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider", "operation"},
		),
		AlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "monitoring",
				Name:      "alerts_total",
				Help:      "Total number of alerts raised",
			},
			[]string{"severity"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
	}

	reg.MustRegister(
		m.TransactionsTotal,
		m.RevenueTotal,
		m.RefundsTotal,
		m.SuccessRate,
		m.ErrorRate,
		m.ProviderRequestDuration,
		m.AlertsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// mirror pushes a rolling-window sample into the matching prometheus
// collector. Samples with no collector are window-only.
func (m *promMetrics) mirror(metric Metric) {
	switch metric.Name {
	case "transactions_total":
		m.TransactionsTotal.WithLabelValues(metric.Labels["provider"], metric.Labels["status"]).Add(metric.Value)
	case "revenue_total":
		m.RevenueTotal.WithLabelValues(metric.Labels["currency"]).Add(metric.Value)
	case "refunds_total":
		m.RefundsTotal.WithLabelValues(metric.Labels["provider"]).Add(metric.Value)
	case "transaction_success_rate":
		m.SuccessRate.Set(metric.Value)
	case "error_rate":
		m.ErrorRate.Set(metric.Value)
	case "response_time":
		// window samples are milliseconds, prometheus wants seconds
		m.ProviderRequestDuration.WithLabelValues(metric.Labels["provider"], metric.Labels["operation"]).Observe(metric.Value / 1000)
	}
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
