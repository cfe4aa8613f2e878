package adapter

import (
	"go.uber.org/zap/zapcore"

	"github.com/iuboy/alhena/config"
	"github.com/iuboy/alhena/core"
)

// BridgeCore 实现 zapcore.Core，把既有 zap 调用点的日志
// 转入 alhena 管道：zap 的 logger 名作为命名空间，字段并入
// 事件上下文。供逐步迁移的服务挂载。
type BridgeCore struct {
	pipeline *core.Pipeline
	enab     zapcore.LevelEnabler
	fields   []zapcore.Field
}

// NewBridgeCore 构建桥接 Core
func NewBridgeCore(p *core.Pipeline, enab zapcore.LevelEnabler) *BridgeCore {
	return &BridgeCore{pipeline: p, enab: enab}
}

func (c *BridgeCore) Enabled(level zapcore.Level) bool {
	return c.enab.Enabled(level)
}

func (c *BridgeCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &BridgeCore{
		pipeline: c.pipeline,
		enab:     c.enab,
		fields:   append(append([]zapcore.Field(nil), c.fields...), fields...),
	}
	return clone
}

func (c *BridgeCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *BridgeCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	return c.pipeline.Log(bridgeLevel(ent.Level), ent.LoggerName, core.KindPlain, 1, enc.Fields, []any{ent.Message})
}

func (c *BridgeCore) Sync() error {
	return c.pipeline.Sync()
}

func bridgeLevel(l zapcore.Level) config.LogLevel {
	switch {
	case l <= zapcore.DebugLevel:
		return config.DebugLevel
	case l == zapcore.InfoLevel:
		return config.InfoLevel
	case l == zapcore.WarnLevel:
		return config.WarnLevel
	case l == zapcore.ErrorLevel:
		return config.ErrorLevel
	default:
		return config.FatalLevel
	}
}
