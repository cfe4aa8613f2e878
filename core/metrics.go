package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 压制原因标签值
const (
	reasonDisabled  = "disabled"
	reasonFiltered  = "filtered"
	reasonRateLimit = "rate_limit"
)

// metrics 按 appender 统计分发/压制/包容错误计数。
// 限流压制在调用路径上保持静默，这里提供可选的观测口径。
// 注册器为 nil 时整体关闭，所有方法对 nil 接收者安全。
type metrics struct {
	dispatched *prometheus.CounterVec
	suppressed *prometheus.CounterVec
	contained  *prometheus.CounterVec
	dropped    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}
	m := &metrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alhena",
			Name:      "dispatched_total",
			Help:      "Events delivered to an appender handler.",
		}, []string{"appender"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alhena",
			Name:      "suppressed_total",
			Help:      "Events suppressed before delivery, by reason.",
		}, []string{"appender", "reason"}),
		contained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alhena",
			Name:      "async_errors_contained_total",
			Help:      "Failures contained inside asynchronous appender workers.",
		}, []string{"appender"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alhena",
			Name:      "middleware_dropped_total",
			Help:      "Events dropped by the middleware chain.",
		}),
	}
	for _, c := range []prometheus.Collector{m.dispatched, m.suppressed, m.contained, m.dropped} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) incDispatched(appender string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(appender).Inc()
}

func (m *metrics) incSuppressed(appender, reason string) {
	if m == nil {
		return
	}
	m.suppressed.WithLabelValues(appender, reason).Inc()
}

func (m *metrics) incContained(appender string) {
	if m == nil {
		return
	}
	m.contained.WithLabelValues(appender).Inc()
}

func (m *metrics) incDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
