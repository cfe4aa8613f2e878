package core

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iuboy/alhena/config"
)

func TestMetricsDisabledByDefault(t *testing.T) {
	m, err := newMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
	// nil 接收者安全
	assert.NotPanics(t, func() {
		m.incDispatched("x")
		m.incSuppressed("x", reasonFiltered)
		m.incContained("x")
		m.incDropped()
	})
}

func TestMetricsCounting(t *testing.T) {
	reg := prometheus.NewRegistry()
	mock := clock.NewMock()
	p, _ := newTestPipeline(t, func(cfg *Config) {
		cfg.Metrics = reg
		cfg.Clock = mock
		cfg.Appenders["cap"].RateLimit = []config.RateLimitTier{{Max: 1, Window: time.Minute}}
		cfg.Appenders["off"] = &Appender{Enabled: false, Handler: func(e *Entry) error { return nil }}
		cfg.Middleware = []Middleware{func(e *Event) *Event {
			if e.Namespace == "drop.me" {
				return nil
			}
			return e
		}}
	})

	log := func(ns string) {
		require.NoError(t, p.Log(config.WarnLevel, ns, KindPlain, 1, nil, []any{"x"}))
	}
	log("app")     // cap 投递；off 因未启用压制
	log("app")     // cap 因限流压制
	log("drop.me") // 中间件丢弃

	assert.Equal(t, float64(1), testutil.ToFloat64(p.m.dispatched.WithLabelValues("cap")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.m.suppressed.WithLabelValues("cap", reasonRateLimit)))
	assert.Equal(t, float64(2), testutil.ToFloat64(p.m.suppressed.WithLabelValues("off", reasonDisabled)))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.m.dropped))
}

func TestMetricsContainedAsyncFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPipeline(Config{
		MinLevel: config.MinLevel{Level: config.TraceLevel},
		Metrics:  reg,
		Appenders: map[string]*Appender{
			"async": {Enabled: true, Async: true, Handler: func(e *Entry) error {
				panic("handler bug")
			}},
		},
	})
	require.NoError(t, err)

	require.NoError(t, p.Log(config.InfoLevel, "app", KindPlain, 1, nil, []any{"x"}))
	require.NoError(t, p.Sync())
	assert.Equal(t, float64(1), testutil.ToFloat64(p.m.contained.WithLabelValues("async")))
	p.Shutdown()
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := newMetrics(reg)
	require.NoError(t, err)
	_, err = newMetrics(reg)
	assert.Error(t, err, "同一注册器重复注册应失败")
}
