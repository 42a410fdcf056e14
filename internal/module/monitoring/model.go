// Package monitoring implements the in-process metrics and alerting sink.
// Metrics are kept in bounded rolling windows for threshold evaluation and
// mirrored to prometheus for scraping.
package monitoring

import "time"

// MetricType classifies how a sample should be interpreted.
type MetricType string

const (
	MetricCounter   MetricType = "counter"
	MetricGauge     MetricType = "gauge"
	MetricHistogram MetricType = "histogram"
)

// Metric is a single recorded sample.
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Severity ranks alerts.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is raised when a threshold rule fires or a caller reports an
// incident directly.
type Alert struct {
	ID         string     `json:"id"`
	Severity   Severity   `json:"severity"`
	Metric     string     `json:"metric"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	Threshold  float64    `json:"threshold"`
	CreatedAt  time.Time  `json:"created_at"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Rule is a fixed threshold on a metric name, evaluated against each new
// sample as it arrives.
type Rule struct {
	Metric    string
	Op        string // ">" or "<"
	Threshold float64
	Severity  Severity
	Message   string
}

func (r Rule) breached(value float64) bool {
	switch r.Op {
	case ">":
		return value > r.Threshold
	case "<":
		return value < r.Threshold
	default:
		return false
	}
}

// DefaultRules returns the alerting thresholds applied when none are
// configured.
func DefaultRules() []Rule {
	return []Rule{
		{Metric: "error_rate", Op: ">", Threshold: 0.01, Severity: SeverityCritical, Message: "provider error rate above 1%"},
		{Metric: "response_time", Op: ">", Threshold: 500, Severity: SeverityHigh, Message: "provider response time above 500ms"},
		{Metric: "transaction_success_rate", Op: "<", Threshold: 0.95, Severity: SeverityCritical, Message: "transaction success rate below 95%"},
	}
}
