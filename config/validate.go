package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ConfigurationError 表示配置本身不可用：非法级别、无法解析的
// 命名空间过滤器、规则未命中且缺少默认级别等。
// Source 指出出错的配置位置，Value 是违规值本身。
type ConfigurationError struct {
	Source string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration at %s: %s (value: %v)", e.Source, e.Reason, e.Value)
}

var levelOrdinals = map[LogLevel]int{
	TraceLevel:  0,
	DebugLevel:  1,
	InfoLevel:   2,
	WarnLevel:   3,
	ErrorLevel:  4,
	FatalLevel:  5,
	ReportLevel: 6,
}

func (l LogLevel) Valid() bool {
	_, ok := levelOrdinals[l]
	return ok
}

// Ordinal 返回级别的序数，非法级别返回 -1
func (l LogLevel) Ordinal() int {
	n, ok := levelOrdinals[l]
	if !ok {
		return -1
	}
	return n
}

// GE 报告 l 的严重程度是否不低于 other
func (l LogLevel) GE(other LogLevel) bool {
	return l.Ordinal() >= other.Ordinal()
}

// ParseLevel 解析级别标记，source 指出该值来自哪处配置
func ParseLevel(v string, source string) (LogLevel, error) {
	l := LogLevel(v)
	if !l.Valid() {
		return "", &ConfigurationError{Source: source, Value: v, Reason: "unknown log level"}
	}
	return l, nil
}

// Validate 验证最低级别配置，source 用于错误定位
func (m *MinLevel) Validate(source string) error {
	if m.Level != "" && !m.Level.Valid() {
		return &ConfigurationError{Source: source, Value: m.Level, Reason: "unknown log level"}
	}
	for i, r := range m.Rules {
		if !r.Level.Valid() {
			return &ConfigurationError{
				Source: fmt.Sprintf("%s.rules[%d]", source, i),
				Value:  r.Level,
				Reason: "unknown log level",
			}
		}
		if r.Pattern == "" {
			return &ConfigurationError{
				Source: fmt.Sprintf("%s.rules[%d]", source, i),
				Value:  r.Pattern,
				Reason: "empty namespace pattern",
			}
		}
	}
	return nil
}

// Validate 验证过滤规格：Predicate 之外的字段组最多启用一组
func (p *PatternSpec) Validate(source string) error {
	if p == nil {
		return nil
	}
	if p.Predicate != nil {
		return nil
	}
	if len(p.Match) > 0 && (len(p.Allow) > 0 || len(p.Deny) > 0) {
		return &ConfigurationError{Source: source, Value: p.Match, Reason: "match and allow/deny are mutually exclusive"}
	}
	if len(p.Match) == 0 && len(p.Allow) == 0 && len(p.Deny) == 0 {
		return &ConfigurationError{Source: source, Value: nil, Reason: "unresolvable namespace filter: no variant set"}
	}
	return nil
}

func (t OutputType) Valid() bool {
	switch t {
	case Stdout, File, DB:
		return true
	default:
		return false
	}
}

// Validate 验证输出配置
func (oc *OutputConfig) Validate() error {
	if !oc.Type.Valid() {
		return fmt.Errorf("invalid output type: %s", oc.Type)
	}
	if oc.Level != "" && !oc.Level.Valid() {
		return &ConfigurationError{Source: string(oc.Type) + ".level", Value: oc.Level, Reason: "unknown log level"}
	}
	if err := oc.Namespace.Validate(string(oc.Type) + ".namespace"); err != nil {
		return err
	}
	for i, t := range oc.RateLimit {
		if t.Max <= 0 || t.Window <= 0 {
			return fmt.Errorf("rate limit tier %d requires positive max and window", i)
		}
	}
	if oc.QueueSize == 0 {
		oc.QueueSize = DefaultQueueSize
	}

	switch oc.Type {
	case File:
		if oc.File == nil {
			return errors.New("file output requires file configuration")
		}
		return oc.File.Validate()
	case DB:
		if oc.Database == nil {
			return errors.New("database output requires database configuration")
		}
		return oc.Database.Validate()
	}
	return nil
}

// Validate 验证文件配置
func (fc *FileConfig) Validate() error {
	if fc.Path == "" {
		return errors.New("file path is required")
	}
	if !filepath.IsAbs(fc.Path) {
		return fmt.Errorf("file path must be an absolute path: %s", fc.Path)
	}
	if fc.MaxSizeMB == 0 {
		fc.MaxSizeMB = DefaultFileMaxSizeMB
	}
	if fc.MaxBackups == 0 {
		fc.MaxBackups = DefaultMaxBackups
	}
	if fc.MaxAgeDays == 0 {
		fc.MaxAgeDays = DefaultMaxAgeDays
	}
	return nil
}

// Validate 验证数据库配置
func (dc *DatabaseConfig) Validate() error {
	if dc.BatchSize == 0 {
		dc.BatchSize = DefaultBatchSize
	}
	if dc.BatchInterval == 0 {
		dc.BatchInterval = DefaultBatchInterval
	}
	if dc.MaxOpenConns == 0 {
		dc.MaxOpenConns = DefaultMaxOpenConns
	}
	if dc.MaxIdleConns == 0 {
		dc.MaxIdleConns = DefaultMaxIdleConns
	}
	if dc.RetryDelay == 0 {
		dc.RetryDelay = DefaultRetryDelay
	}

	switch dc.DriverName {
	case "mysql", "postgres":
		if dc.DataSourceName == "" {
			return errors.New("data source name is required for SQL databases")
		}
		if dc.TableName == "" {
			return errors.New("table name is required for SQL databases")
		}
	default:
		return fmt.Errorf("unsupported driver: %s", dc.DriverName)
	}
	return nil
}

// ApplyDefaults 设置编码器默认值
func (ec *EncoderConfig) ApplyDefaults() *EncoderConfig {
	if ec.TimeFormat == "" {
		ec.TimeFormat = DefaultTimeFormat
	}
	if ec.TimeZone == "" {
		ec.TimeZone = "UTC"
	}
	if ec.MessageKey == "" {
		ec.MessageKey = "msg"
	}
	if ec.LevelKey == "" {
		ec.LevelKey = "level"
	}
	if ec.TimeKey == "" {
		ec.TimeKey = "time"
	}
	if ec.NamespaceKey == "" {
		ec.NamespaceKey = "ns"
	}
	if ec.CallerKey == "" {
		ec.CallerKey = "caller"
	}
	if ec.ErrorKey == "" {
		ec.ErrorKey = "error"
	}
	return ec
}
