package metrics

import "github.com/prometheus/client_golang/prometheus"

// PlatformMetrics exposes counters/histograms for dispatch and builder flows.
type PlatformMetrics struct {
	dispatchRuns     prometheus.Counter
	dispatchMessages *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	exchangeTotal    *prometheus.CounterVec
	inboundTotal     *prometheus.CounterVec
}

func NewPlatformMetrics(reg prometheus.Registerer) *PlatformMetrics {
	m := &PlatformMetrics{
		dispatchRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reislab",
			Subsystem: "dispatch",
			Name:      "runs_total",
			Help:      "Total dispatch passes over due scheduled messages",
		}),
		dispatchMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reislab",
			Subsystem: "dispatch",
			Name:      "messages_total",
			Help:      "Processed scheduled messages by outcome and reason",
		}, []string{"outcome", "reason"}),
		dispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reislab",
			Subsystem: "dispatch",
			Name:      "run_duration_seconds",
			Help:      "Duration of a dispatch pass",
			Buckets:   prometheus.DefBuckets,
		}),
		exchangeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reislab",
			Subsystem: "builder",
			Name:      "token_exchange_total",
			Help:      "Builder token exchanges by token kind and outcome",
		}, []string{"kind", "outcome"}),
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reislab",
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound WhatsApp webhooks",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.dispatchRuns, m.dispatchMessages, m.dispatchDuration, m.exchangeTotal, m.inboundTotal)
	return m
}

func (m *PlatformMetrics) ObserveDispatchRun(seconds float64) {
	if m == nil {
		return
	}
	m.dispatchRuns.Inc()
	m.dispatchDuration.Observe(seconds)
}

func (m *PlatformMetrics) ObserveDispatchMessage(success bool, reason string) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.dispatchMessages.WithLabelValues(outcome, reason).Inc()
}

func (m *PlatformMetrics) ObserveExchange(kind, outcome string) {
	if m == nil {
		return
	}
	m.exchangeTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *PlatformMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}
