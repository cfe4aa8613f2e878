package core

import (
	"fmt"

	"github.com/iuboy/alhena/config"
)

// ConfigurationError 复用 config 包的定义，调用路径上的
// 配置问题（如规则未命中且无默认级别）同样以它上报
type ConfigurationError = config.ConfigurationError

// ArgumentError 表示调用参数不合法（例如格式化调用缺少格式串），
// 同步返回给调用方
type ArgumentError struct {
	Reason string
}

func (e *ArgumentError) Error() string {
	return "invalid log call arguments: " + e.Reason
}

// OutputError 包装消息/输出/错误渲染函数内部的失败，
// 携带调用位置上下文，同步返回给调用方
type OutputError struct {
	Level     config.LogLevel
	Namespace string
	File      string
	Line      int
	Err       error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output function failed at %s [%s]: %v", e.Location(), e.Level, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// Location 返回人类可读的调用位置
func (e *OutputError) Location() string {
	loc := fmt.Sprintf("%s:%d", e.File, e.Line)
	if e.Namespace != "" {
		loc = e.Namespace + " (" + loc + ")"
	}
	return loc
}

// AppenderError 包装同步 appender handler 的失败，传播给调用方；
// 异步 appender 的失败被 worker 包容，不会以此类型出现
type AppenderError struct {
	Appender string
	Err      error
}

func (e *AppenderError) Error() string {
	return fmt.Sprintf("appender %q failed: %v", e.Appender, e.Err)
}

func (e *AppenderError) Unwrap() error { return e.Err }
