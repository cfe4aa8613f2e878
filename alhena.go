// Package alhena 是一个结构化事件日志管道：
// 调用携带级别、可选命名空间与错误，经全局过滤、事件构建、
// 中间件链后扇出到若干各自配置启停/过滤/限流/同步异步策略的
// appender。
//
// 示例：
//
//	console, _ := alhena.CreateAppender(alhena.OutputConfig{
//	    Type: alhena.Stdout, Level: alhena.InfoLevel, Encoding: alhena.JSON, Enabled: true,
//	})
//	err := alhena.Init(alhena.Config{
//	    ServiceName: "my-service",
//	    Appenders:   map[string]*alhena.Appender{"console": console},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer alhena.Shutdown()
//	alhena.N("auth.db").Info("service started")
//
// Fatal 与 Report 只是排序上的级别，不触发进程退出；
// Report 高于 Fatal，留给必须可见的非错误状态信息。
package alhena

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap/zapcore"

	"github.com/iuboy/alhena/config"
	"github.com/iuboy/alhena/core"
	"github.com/iuboy/alhena/internal/adapter"
)

// === 核心类型也导出 ===
type Config = core.Config
type Appender = core.Appender
type Entry = core.Entry
type Event = core.Event
type Meta = core.Meta
type Middleware = core.Middleware
type MessageKind = core.MessageKind
type OutputOptions = core.OutputOptions
type OutputFunc = core.OutputFunc
type HandlerFunc = core.HandlerFunc

type LogLevel = config.LogLevel
type MinLevel = config.MinLevel
type LevelRule = config.LevelRule
type PatternSpec = config.PatternSpec
type RateLimitTier = config.RateLimitTier
type OutputConfig = config.OutputConfig
type FileConfig = config.FileConfig
type DatabaseConfig = config.DatabaseConfig
type EncoderConfig = config.EncoderConfig
type EncodingType = config.EncodingType
type OutputType = config.OutputType

const (
	TraceLevel  = config.TraceLevel
	DebugLevel  = config.DebugLevel
	InfoLevel   = config.InfoLevel
	WarnLevel   = config.WarnLevel
	ErrorLevel  = config.ErrorLevel
	FatalLevel  = config.FatalLevel
	ReportLevel = config.ReportLevel

	JSON    = config.JSON
	Console = config.Console

	Stdout = config.Stdout
	File   = config.File
	DB     = config.DB
)

var (
	// 全局管道实例（并发安全的原子快照）
	globalPipeline atomic.Value // *core.Pipeline
	// 可选的上下文字段提取器
	contextExtractor func(ctx context.Context) map[string]any
	// 保护 contextExtractor 的并发读写
	extractorMu sync.RWMutex

	fallbackOnce sync.Once
	fallback     *core.Pipeline
)

// Init 构建并安装全局管道
func Init(cfg Config) error {
	p, err := core.NewPipeline(cfg)
	if err != nil {
		return err
	}
	SetPipeline(p)
	return nil
}

// SetPipeline 原子替换全局管道，返回被替换的旧管道
// （如有异步 appender，调用方负责对旧管道做 Shutdown）
func SetPipeline(p *core.Pipeline) *core.Pipeline {
	old, _ := globalPipeline.Load().(*core.Pipeline)
	globalPipeline.Store(p)
	return old
}

// P 获取全局管道；未初始化时退回仅含控制台输出的应急管道
func P() *core.Pipeline {
	if p, ok := globalPipeline.Load().(*core.Pipeline); ok {
		return p
	}
	return fallbackPipeline()
}

// Merge 基于当前全局配置派生修改后的管道并安装，
// 返回被替换的旧管道
func Merge(mutate func(*Config)) (*core.Pipeline, error) {
	p, err := P().Scoped(mutate)
	if err != nil {
		return nil, err
	}
	return SetPipeline(p), nil
}

// ------------------------------------------------------------------
// 上下文支持：动态作用域覆盖 + 字段提取
// ------------------------------------------------------------------

type ctxKey struct{}

// NewContext 把管道绑定到 context，用于调用树范围内的局部
// 配置覆盖（显式传递，不依赖全局可变状态）
func NewContext(ctx context.Context, p *core.Pipeline) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext 取出 context 绑定的管道
func FromContext(ctx context.Context) (*core.Pipeline, bool) {
	p, ok := ctx.Value(ctxKey{}).(*core.Pipeline)
	return p, ok
}

// ContextExtractor 用于从 context 中提取日志字段（如 request_id）
type ContextExtractor func(ctx context.Context) map[string]any

// SetContextExtractor 设置上下文提取函数
//
//	示例：alhena.SetContextExtractor(func(ctx context.Context) map[string]any {
//	    if id := FromRequestID(ctx); id != "" {
//	        return map[string]any{"request_id": id}
//	    }
//	    return nil
//	})
func SetContextExtractor(extractor ContextExtractor) {
	extractorMu.Lock()
	defer extractorMu.Unlock()
	contextExtractor = extractor
}

func extractFields(ctx context.Context) map[string]any {
	if ctx == nil {
		return nil
	}
	extractorMu.RLock()
	fn := contextExtractor
	extractorMu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// ------------------------------------------------------------------
// 命名 Logger
// ------------------------------------------------------------------

// Logger 绑定一个命名空间（和可选 context）的日志入口
type Logger struct {
	ns  string
	ctx context.Context
}

// N 返回绑定命名空间的 Logger
func N(ns string) *Logger { return &Logger{ns: ns} }

// WithContext 返回绑定 context 的 Logger；context 中如携带
// 管道覆盖，则本次调用树内使用该管道
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{ns: l.ns, ctx: ctx}
}

func (l *Logger) pipeline() *core.Pipeline {
	if l.ctx != nil {
		if p, ok := FromContext(l.ctx); ok {
			return p
		}
	}
	return P()
}

// 调用深度：用户 → 导出方法 → log → Pipeline.Log
const callDepth = 3

// static 标记调用点的级别为编译期常量（Trace/Debug 等具名方法）。
// 只有这类调用点参与构建期消除；级别仅在运行期已知的 Log/Logf
// 不消除，非法级别同样落到管道上报 ConfigurationError。
func (l *Logger) log(level LogLevel, kind MessageKind, static bool, args []any) error {
	if static && core.Elided(level, l.ns) {
		return nil
	}
	return l.pipeline().Log(level, l.ns, kind, callDepth, extractFields(l.ctx), args)
}

// Log 以任意级别记录一条普通消息
func (l *Logger) Log(level LogLevel, args ...any) error {
	return l.log(level, core.KindPlain, false, args)
}

// Logf 以任意级别记录一条格式化消息
func (l *Logger) Logf(level LogLevel, args ...any) error {
	return l.log(level, core.KindFormatted, false, args)
}

func (l *Logger) Trace(args ...any) error  { return l.log(TraceLevel, core.KindPlain, true, args) }
func (l *Logger) Debug(args ...any) error  { return l.log(DebugLevel, core.KindPlain, true, args) }
func (l *Logger) Info(args ...any) error   { return l.log(InfoLevel, core.KindPlain, true, args) }
func (l *Logger) Warn(args ...any) error   { return l.log(WarnLevel, core.KindPlain, true, args) }
func (l *Logger) Error(args ...any) error  { return l.log(ErrorLevel, core.KindPlain, true, args) }
func (l *Logger) Fatal(args ...any) error  { return l.log(FatalLevel, core.KindPlain, true, args) }
func (l *Logger) Report(args ...any) error { return l.log(ReportLevel, core.KindPlain, true, args) }

func (l *Logger) Tracef(args ...any) error  { return l.log(TraceLevel, core.KindFormatted, true, args) }
func (l *Logger) Debugf(args ...any) error  { return l.log(DebugLevel, core.KindFormatted, true, args) }
func (l *Logger) Infof(args ...any) error   { return l.log(InfoLevel, core.KindFormatted, true, args) }
func (l *Logger) Warnf(args ...any) error   { return l.log(WarnLevel, core.KindFormatted, true, args) }
func (l *Logger) Errorf(args ...any) error  { return l.log(ErrorLevel, core.KindFormatted, true, args) }
func (l *Logger) Fatalf(args ...any) error  { return l.log(FatalLevel, core.KindFormatted, true, args) }
func (l *Logger) Reportf(args ...any) error { return l.log(ReportLevel, core.KindFormatted, true, args) }

// ------------------------------------------------------------------
// 无命名空间的包级 API
// ------------------------------------------------------------------

var root = &Logger{}

func Trace(args ...any) error  { return root.log(TraceLevel, core.KindPlain, true, args) }
func Debug(args ...any) error  { return root.log(DebugLevel, core.KindPlain, true, args) }
func Info(args ...any) error   { return root.log(InfoLevel, core.KindPlain, true, args) }
func Warn(args ...any) error   { return root.log(WarnLevel, core.KindPlain, true, args) }
func Error(args ...any) error  { return root.log(ErrorLevel, core.KindPlain, true, args) }
func Fatal(args ...any) error  { return root.log(FatalLevel, core.KindPlain, true, args) }
func Report(args ...any) error { return root.log(ReportLevel, core.KindPlain, true, args) }

func Tracef(args ...any) error  { return root.log(TraceLevel, core.KindFormatted, true, args) }
func Debugf(args ...any) error  { return root.log(DebugLevel, core.KindFormatted, true, args) }
func Infof(args ...any) error   { return root.log(InfoLevel, core.KindFormatted, true, args) }
func Warnf(args ...any) error   { return root.log(WarnLevel, core.KindFormatted, true, args) }
func Errorf(args ...any) error  { return root.log(ErrorLevel, core.KindFormatted, true, args) }
func Fatalf(args ...any) error  { return root.log(FatalLevel, core.KindFormatted, true, args) }
func Reportf(args ...any) error { return root.log(ReportLevel, core.KindFormatted, true, args) }

// ------------------------------------------------------------------
// 生命周期管理
// ------------------------------------------------------------------

// Sync 排空异步队列并刷新各 appender 的输出缓冲，
// 应在程序退出前调用
func Sync() error {
	if p, ok := globalPipeline.Load().(*core.Pipeline); ok {
		return p.Sync()
	}
	return nil
}

// Shutdown 对全局管道执行关停，返回实际执行了关停钩子的
// appender 标识
func Shutdown() []string {
	if p, ok := globalPipeline.Load().(*core.Pipeline); ok {
		return p.Shutdown()
	}
	return nil
}

// ------------------------------------------------------------------
// 协作方构造器的再导出
// ------------------------------------------------------------------

// CreateAppender 根据数据配置创建内置 appender（控制台/文件/数据库）
func CreateAppender(out OutputConfig) (*Appender, error) {
	return adapter.CreateAppender(out)
}

// NewZapBridge 返回把 zap 调用点转入给定管道的 zapcore.Core
func NewZapBridge(p *core.Pipeline, enab zapcore.LevelEnabler) zapcore.Core {
	return adapter.NewBridgeCore(p, enab)
}

// ------------------------------------------------------------------
// 内部：应急管道（初始化前使用）
// ------------------------------------------------------------------

func fallbackPipeline() *core.Pipeline {
	fallbackOnce.Do(func() {
		fallback = newFallbackPipeline()
	})
	return fallback
}

// newFallbackPipeline 永不返回 nil：工厂失败时退化为
// 直写 stdout 的应急 appender
func newFallbackPipeline() *core.Pipeline {
	console, err := adapter.CreateAppender(OutputConfig{
		Type:     Stdout,
		Encoding: Console,
		Enabled:  true,
	})
	if err != nil {
		console = &Appender{
			Enabled: true,
			Handler: func(e *Entry) error {
				_, werr := os.Stdout.Write(e.Output())
				return werr
			},
		}
	}
	p, err := core.NewPipeline(Config{
		Appenders: map[string]*Appender{"console": console},
	})
	if err != nil {
		// 无 appender 的空管道不可能构建失败
		p, _ = core.NewPipeline(Config{})
	}
	return p
}
