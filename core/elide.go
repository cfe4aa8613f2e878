package core

import (
	"github.com/iuboy/alhena/config"
)

// staticNamespaceExpr 是构建期命名空间消除模式，通过
//
//	-ldflags "-X github.com/iuboy/alhena/core.staticNamespaceExpr=foo.*"
//
// 注入。为空时不做任何消除。只影响调用点是否被跳过，
// 不改变运行期过滤语义。
var staticNamespaceExpr string

var staticNamespaceMatcher matcher

func init() {
	if staticNamespaceExpr == "" {
		return
	}
	m, err := compilePattern(config.Pattern(staticNamespaceExpr), "build.namespace")
	if err != nil {
		// 非法的构建期模式视为未配置
		return
	}
	staticNamespaceMatcher = m
}

// Elided 报告该调用点是否被构建期设置整体消除。
// 只对级别为编译期常量的调用点有意义；消除的调用直接返回，
// 不构建事件、不做任何运行期求值。
// 非法级别不消除：交回运行期路径上报 ConfigurationError。
func Elided(level config.LogLevel, ns string) bool {
	n := level.Ordinal()
	if n < 0 {
		return false
	}
	if n < staticMinOrdinal {
		return true
	}
	if staticNamespaceMatcher != nil && !staticNamespaceMatcher(ns) {
		return true
	}
	return false
}
