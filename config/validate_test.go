package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelOrdering(t *testing.T) {
	// 级别全序：trace < debug < info < warn < error < fatal < report
	ordered := []LogLevel{TraceLevel, DebugLevel, InfoLevel, WarnLevel, ErrorLevel, FatalLevel, ReportLevel}
	for i := 1; i < len(ordered); i++ {
		assert.True(t, ordered[i].GE(ordered[i-1]), "%s 应不低于 %s", ordered[i], ordered[i-1])
		assert.False(t, ordered[i-1].GE(ordered[i]), "%s 应低于 %s", ordered[i-1], ordered[i])
	}
	// 自反
	for _, l := range ordered {
		assert.True(t, l.GE(l))
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn", "config.minLevel")
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, l)

	_, err = ParseLevel("verbose", "config.minLevel")
	require.Error(t, err)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "config.minLevel", cfgErr.Source)
	assert.Equal(t, "verbose", cfgErr.Value)
}

func TestMinLevelValidate(t *testing.T) {
	// 单一级别
	m := MinLevel{Level: InfoLevel}
	assert.NoError(t, m.Validate("config"))

	// 非法级别
	m = MinLevel{Level: "loud"}
	assert.Error(t, m.Validate("config"))

	// 有序规则：级别必须合法、模式必须非空
	m = MinLevel{Rules: []LevelRule{{Pattern: "foo.*", Level: WarnLevel}}}
	assert.NoError(t, m.Validate("config"))

	m = MinLevel{Rules: []LevelRule{{Pattern: "foo.*", Level: "shout"}}}
	err := m.Validate("config")
	require.Error(t, err)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "config.rules[0]", cfgErr.Source)

	m = MinLevel{Rules: []LevelRule{{Pattern: "", Level: WarnLevel}}}
	assert.Error(t, m.Validate("config"))
}

func TestPatternSpecValidate(t *testing.T) {
	// nil 规格表示不过滤
	var p *PatternSpec
	assert.NoError(t, p.Validate("config.namespace"))

	assert.NoError(t, Pattern("foo.*").Validate("config.namespace"))
	assert.NoError(t, AllowDeny([]string{"*"}, []string{"noisy.*"}).Validate("config.namespace"))

	// Predicate 变体不做结构校验
	p = &PatternSpec{Predicate: func(ns string) bool { return true }}
	assert.NoError(t, p.Validate("config.namespace"))

	// Match 与 Allow/Deny 互斥
	p = &PatternSpec{Match: []string{"foo"}, Deny: []string{"bar"}}
	assert.Error(t, p.Validate("config.namespace"))

	// 全空的规格无法解析
	p = &PatternSpec{}
	err := p.Validate("config.namespace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolvable")
}

func TestOutputConfigValidate(t *testing.T) {
	t.Run("未知输出类型", func(t *testing.T) {
		oc := OutputConfig{Type: "kafka"}
		assert.Error(t, oc.Validate())
	})

	t.Run("控制台输出与默认队列", func(t *testing.T) {
		oc := OutputConfig{Type: Stdout, Level: InfoLevel, Enabled: true}
		require.NoError(t, oc.Validate())
		assert.Equal(t, DefaultQueueSize, oc.QueueSize)
	})

	t.Run("非法限流档位", func(t *testing.T) {
		oc := OutputConfig{Type: Stdout, RateLimit: []RateLimitTier{{Max: 0, Window: time.Second}}}
		assert.Error(t, oc.Validate())
		oc = OutputConfig{Type: Stdout, RateLimit: []RateLimitTier{{Max: 3, Window: -time.Second}}}
		assert.Error(t, oc.Validate())
	})

	t.Run("文件输出需要文件配置", func(t *testing.T) {
		oc := OutputConfig{Type: File}
		assert.Error(t, oc.Validate())

		oc = OutputConfig{Type: File, File: &FileConfig{Path: "relative/app.log"}}
		assert.Error(t, oc.Validate(), "相对路径应被拒绝")

		oc = OutputConfig{Type: File, File: &FileConfig{Path: "/var/log/app.log"}}
		require.NoError(t, oc.Validate())
		assert.Equal(t, DefaultFileMaxSizeMB, oc.File.MaxSizeMB)
		assert.Equal(t, DefaultMaxBackups, oc.File.MaxBackups)
		assert.Equal(t, DefaultMaxAgeDays, oc.File.MaxAgeDays)
	})

	t.Run("数据库输出需要数据库配置", func(t *testing.T) {
		oc := OutputConfig{Type: DB}
		assert.Error(t, oc.Validate())

		oc = OutputConfig{Type: DB, Database: &DatabaseConfig{DriverName: "oracle"}}
		assert.Error(t, oc.Validate())

		oc = OutputConfig{Type: DB, Database: &DatabaseConfig{
			DriverName:     "mysql",
			DataSourceName: "root:test@tcp(localhost:3306)/logs",
			TableName:      "logs",
		}}
		require.NoError(t, oc.Validate())
		assert.Equal(t, DefaultBatchSize, oc.Database.BatchSize)
		assert.Equal(t, DefaultBatchInterval, oc.Database.BatchInterval)
	})
}

func TestEncoderConfigApplyDefaults(t *testing.T) {
	ec := (&EncoderConfig{}).ApplyDefaults()
	assert.Equal(t, DefaultTimeFormat, ec.TimeFormat)
	assert.Equal(t, "UTC", ec.TimeZone)
	assert.Equal(t, "msg", ec.MessageKey)
	assert.Equal(t, "level", ec.LevelKey)
	assert.Equal(t, "time", ec.TimeKey)

	// 已设置的键不被覆盖
	ec = (&EncoderConfig{MessageKey: "message", TimeZone: "Asia/Shanghai"}).ApplyDefaults()
	assert.Equal(t, "message", ec.MessageKey)
	assert.Equal(t, "Asia/Shanghai", ec.TimeZone)
}
