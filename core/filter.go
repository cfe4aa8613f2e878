package core

import (
	"fmt"

	"github.com/iuboy/alhena/config"
)

// filter 是编译好的组合过滤器：最低级别解析 + 命名空间过滤。
// 全局配置与单个 appender 的覆盖各编译为一个 filter 实例。
type filter struct {
	min     config.MinLevel
	ruleMs  []matcher // 与 min.Rules 一一对应
	ns      matcher   // nil 表示不过滤
	source  string
	hasMin  bool
}

// compileFilter 预编译过滤器，模式问题在构建期即暴露。
// minLevel 为 nil 表示无级别覆盖（仅 appender 覆盖场景）。
func compileFilter(minLevel *config.MinLevel, nsSpec *config.PatternSpec, source string) (*filter, error) {
	f := &filter{source: source}
	if minLevel != nil {
		if err := minLevel.Validate(source + ".minLevel"); err != nil {
			return nil, err
		}
		f.min = *minLevel
		f.hasMin = true
		f.ruleMs = make([]matcher, len(minLevel.Rules))
		for i, r := range minLevel.Rules {
			m, err := compilePattern(config.Pattern(r.Pattern), fmt.Sprintf("%s.minLevel.rules[%d]", source, i))
			if err != nil {
				return nil, err
			}
			f.ruleMs[i] = m
		}
	}
	ns, err := compilePattern(nsSpec, source+".namespace")
	if err != nil {
		return nil, err
	}
	f.ns = ns
	return f, nil
}

// resolveMinLevel 按命名空间解析生效最低级别。
// 规则未命中且无默认级别时返回 ConfigurationError。
func (f *filter) resolveMinLevel(ns string) (config.LogLevel, error) {
	for i, m := range f.ruleMs {
		if m != nil && m(ns) {
			return f.min.Rules[i].Level, nil
		}
	}
	if f.min.Level != "" {
		return f.min.Level, nil
	}
	return "", &ConfigurationError{
		Source: f.source + ".minLevel",
		Value:  ns,
		Reason: "no rule matched the namespace and no default level is configured",
	}
}

// admit 判定事件是否可以继续：先过级别门，再过命名空间门
func (f *filter) admit(level config.LogLevel, ns string) (bool, error) {
	if f.hasMin {
		min, err := f.resolveMinLevel(ns)
		if err != nil {
			return false, err
		}
		if !level.GE(min) {
			return false, nil
		}
	}
	if f.ns != nil && !f.ns(ns) {
		return false, nil
	}
	return true, nil
}
