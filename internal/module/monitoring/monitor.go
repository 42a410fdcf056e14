package monitoring

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const defaultWindowSize = 1000

// Notifier delivers alerts to an external channel (pager, chat, ...).
// Delivery is best effort; failures are logged and never block recording.
type Notifier interface {
	Notify(alert Alert) error
}

// Config tunes the sink.
type Config struct {
	Namespace  string
	WindowSize int    // samples kept per metric name, 0 selects the default
	Rules      []Rule // nil selects DefaultRules
}

// series is the rolling window for one metric name. Each series has its
// own lock so concurrent recorders of different metrics never contend.
type series struct {
	mu    sync.Mutex
	buf   []Metric
	next  int
	count int
}

func (s *series) add(m Metric) {
	s.buf[s.next] = m
	s.next = (s.next + 1) % len(s.buf)
	if s.count < len(s.buf) {
		s.count++
	}
}

// snapshot returns samples oldest first.
func (s *series) snapshot() []Metric {
	out := make([]Metric, 0, s.count)
	start := s.next - s.count
	if start < 0 {
		start += len(s.buf)
	}
	for i := 0; i < s.count; i++ {
		out = append(out, s.buf[(start+i)%len(s.buf)])
	}
	return out
}

// Monitor is the metrics and alerting sink. Recording is cheap: a window
// append under the per-series lock plus threshold checks on the new value
// only, never a scan of history.
type Monitor struct {
	cfg      Config
	rules    map[string][]Rule
	prom     *promMetrics
	notifier Notifier
	logger   *zap.Logger

	mu     sync.RWMutex
	series map[string]*series

	alertMu sync.RWMutex
	alerts  []Alert
	open    map[string]string // metric name -> unresolved threshold alert id
}

// New creates a Monitor registering its prometheus collectors on reg.
func New(cfg Config, reg prometheus.Registerer, notifier Notifier, logger *zap.Logger) *Monitor {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = defaultWindowSize
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "bookwise"
	}
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	byMetric := make(map[string][]Rule)
	for _, r := range rules {
		byMetric[r.Metric] = append(byMetric[r.Metric], r)
	}

	return &Monitor{
		cfg:      cfg,
		rules:    byMetric,
		prom:     newPromMetrics(cfg.Namespace, reg),
		notifier: notifier,
		logger:   logger,
		series:   make(map[string]*series),
		open:     make(map[string]string),
	}
}

// RecordMetric appends a sample to the metric's rolling window, mirrors it
// to prometheus, and evaluates threshold rules against the new value.
func (m *Monitor) RecordMetric(metric Metric) {
	if metric.Timestamp.IsZero() {
		metric.Timestamp = time.Now().UTC()
	}

	s := m.seriesFor(metric.Name)
	s.mu.Lock()
	s.add(metric)
	s.mu.Unlock()

	m.prom.mirror(metric)
	m.evaluate(metric)
}

// RecordCounter records a counter increment.
func (m *Monitor) RecordCounter(name string, value float64, labels map[string]string) {
	m.RecordMetric(Metric{Name: name, Type: MetricCounter, Value: value, Labels: labels})
}

// RecordGauge records a gauge observation.
func (m *Monitor) RecordGauge(name string, value float64, labels map[string]string) {
	m.RecordMetric(Metric{Name: name, Type: MetricGauge, Value: value, Labels: labels})
}

// RecordDuration records a duration sample in milliseconds.
func (m *Monitor) RecordDuration(name string, d time.Duration, labels map[string]string) {
	m.RecordMetric(Metric{Name: name, Type: MetricHistogram, Value: float64(d.Milliseconds()), Labels: labels})
}

// RecordHTTPRequest feeds the HTTP middleware collectors.
func (m *Monitor) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.prom.HTTPRequestsTotal.WithLabelValues(method, path, statusCodeToString(status)).Inc()
	m.prom.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// GetMetrics returns a snapshot of the metric's window, oldest first.
func (m *Monitor) GetMetrics(name string) []Metric {
	m.mu.RLock()
	s, ok := m.series[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// WindowSamples returns the metric's samples newer than now-window.
func (m *Monitor) WindowSamples(name string, window time.Duration) []Metric {
	cutoff := time.Now().UTC().Add(-window)
	all := m.GetMetrics(name)
	for i, sample := range all {
		if sample.Timestamp.After(cutoff) {
			return all[i:]
		}
	}
	return nil
}

// CreateAlert records an alert and fires the notifier. Used by callers
// reporting incidents directly (disputes); threshold breaches go through
// evaluate, which dedups unresolved alerts per metric.
func (m *Monitor) CreateAlert(alert Alert) Alert {
	alert.ID = uuid.NewString()
	alert.CreatedAt = time.Now().UTC()
	alert.Resolved = false
	alert.ResolvedAt = nil

	m.alertMu.Lock()
	m.alerts = append(m.alerts, alert)
	m.alertMu.Unlock()

	m.prom.AlertsTotal.WithLabelValues(string(alert.Severity)).Inc()
	m.logger.Warn("alert raised",
		zap.String("alert_id", alert.ID),
		zap.String("severity", string(alert.Severity)),
		zap.String("metric", alert.Metric),
		zap.String("message", alert.Message))

	m.fireNotifier(alert)
	return alert
}

// ResolveAlert marks an alert resolved. Unknown ids are a no-op.
func (m *Monitor) ResolveAlert(id string) bool {
	m.alertMu.Lock()
	defer m.alertMu.Unlock()

	for i := range m.alerts {
		if m.alerts[i].ID != id || m.alerts[i].Resolved {
			continue
		}
		now := time.Now().UTC()
		m.alerts[i].Resolved = true
		m.alerts[i].ResolvedAt = &now
		if m.open[m.alerts[i].Metric] == id {
			delete(m.open, m.alerts[i].Metric)
		}
		return true
	}
	return false
}

// GetAlerts returns alerts filtered by severity and resolution state.
// Empty severity and nil resolved match everything.
func (m *Monitor) GetAlerts(severity Severity, resolved *bool) []Alert {
	m.alertMu.RLock()
	defer m.alertMu.RUnlock()

	out := make([]Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if severity != "" && a.Severity != severity {
			continue
		}
		if resolved != nil && a.Resolved != *resolved {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (m *Monitor) seriesFor(name string) *series {
	m.mu.RLock()
	s, ok := m.series[name]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.series[name]; ok {
		return s
	}
	s = &series{buf: make([]Metric, m.cfg.WindowSize)}
	m.series[name] = s
	return s
}

// evaluate checks the new sample against the metric's threshold rules.
// A sustained breach raises one alert; a second alert for the same metric
// is only possible after the first is resolved.
func (m *Monitor) evaluate(metric Metric) {
	for _, rule := range m.rules[metric.Name] {
		if !rule.breached(metric.Value) {
			continue
		}

		m.alertMu.Lock()
		if _, dup := m.open[metric.Name]; dup {
			m.alertMu.Unlock()
			continue
		}
		alert := Alert{
			ID:        uuid.NewString(),
			Severity:  rule.Severity,
			Metric:    metric.Name,
			Message:   rule.Message,
			Value:     metric.Value,
			Threshold: rule.Threshold,
			CreatedAt: time.Now().UTC(),
		}
		m.alerts = append(m.alerts, alert)
		m.open[metric.Name] = alert.ID
		m.alertMu.Unlock()

		m.prom.AlertsTotal.WithLabelValues(string(alert.Severity)).Inc()
		m.logger.Warn("threshold breached",
			zap.String("metric", metric.Name),
			zap.Float64("value", metric.Value),
			zap.Float64("threshold", rule.Threshold),
			zap.String("severity", string(rule.Severity)))

		m.fireNotifier(alert)
	}
}

// fireNotifier delivers asynchronously so a slow pager never blocks the
// recording path.
func (m *Monitor) fireNotifier(alert Alert) {
	if m.notifier == nil {
		return
	}
	go func() {
		if err := m.notifier.Notify(alert); err != nil {
			m.logger.Error("alert notification failed",
				zap.String("alert_id", alert.ID),
				zap.Error(err))
		}
	}()
}
