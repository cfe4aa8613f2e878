package core

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/iuboy/alhena/config"
)

// HandlerFunc 接收完成构建的事件视图并执行副作用
type HandlerFunc func(e *Entry) error

// Appender 是一个已配置的 sink：自带启停、过滤、限流与投递策略。
// 生效过滤器是全局过滤器与自身覆盖的逻辑与。
type Appender struct {
	Enabled   bool
	MinLevel  *config.MinLevel     // 级别覆盖，nil 表示沿用全局
	Namespace *config.PatternSpec  // 命名空间覆盖，nil 表示沿用全局
	Async     bool
	QueueSize int // 异步队列容量，满时阻塞调用方以保持顺序
	RateLimit []config.RateLimitTier
	Output    OutputFunc     // 输出函数覆盖
	Options   *OutputOptions // 输出选项覆盖
	Handler   HandlerFunc
	Sync      func() error // 可选：刷新缓冲
	Shutdown  func() error // 可选：关停钩子，整个生命周期至多执行一次
}

// Config 是管道的不可变配置值。单次日志调用读取的是同一个
// 原子快照；替换/合并通过构建新 Pipeline 完成。
type Config struct {
	ServiceName string
	MinLevel    config.MinLevel
	Namespace   *config.PatternSpec
	Middleware  []Middleware
	Output      OutputFunc
	Options     OutputOptions
	Appenders   map[string]*Appender
	Context     map[string]any
	Clock       clock.Clock           // 缺省为系统时钟
	Metrics     prometheus.Registerer // nil 表示关闭指标
}

// Entry 是交付给 appender handler 与输出函数的事件视图
type Entry struct {
	*Event
	AppenderID string
	Appender   *Appender
	Config     *Config
	Options    *OutputOptions // 生效的输出选项

	output  []byte
	msgOnce sync.Once
	msg     string
}

// Output 返回该 appender 的最终输出（进入异步边界前已计算）
func (e *Entry) Output() []byte { return e.output }

// Message 返回按生效选项渲染的消息文本，只计算一次
func (e *Entry) Message() string {
	e.msgOnce.Do(func() {
		e.msg = e.Options.message(e.Event)
	})
	return e.msg
}

type appenderState struct {
	id      string
	app     *Appender
	f       *filter
	limiter *rateLimiter
	w       *worker
	output  OutputFunc
	opts    *OutputOptions

	shutOnce sync.Once
}

// Pipeline 是过滤-分发引擎的一个不可变实例
type Pipeline struct {
	cfg     Config
	global  *filter
	apps    map[string]*appenderState
	order   []string
	clock   clock.Clock
	m       *metrics
	derived bool // Scoped 派生的管道，appender 记录与基础管道共享
}

// NewPipeline 校验并编译配置。模式与级别问题在这里即返回
// ConfigurationError，而不是等到调用路径上。
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.MinLevel.Level == "" && len(cfg.MinLevel.Rules) == 0 {
		// 文档化的回退：未配置最低级别时默认 debug
		cfg.MinLevel.Level = config.DebugLevel
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Output == nil {
		cfg.Output = DefaultOutput
	}
	if cfg.Options.Encoding == "" {
		cfg.Options.Encoding = config.JSON
	}
	cfg.Options.Encoder.ApplyDefaults()

	m, err := newMetrics(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics registration failed: %w", err)
	}

	global, err := compileFilter(&cfg.MinLevel, cfg.Namespace, "config")
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:    cfg,
		global: global,
		apps:   make(map[string]*appenderState, len(cfg.Appenders)),
		clock:  cfg.Clock,
		m:      m,
	}

	for id, app := range cfg.Appenders {
		if app == nil || app.Handler == nil {
			return nil, &ConfigurationError{
				Source: "appenders." + id,
				Value:  nil,
				Reason: "appender requires a handler",
			}
		}
		f, err := compileFilter(app.MinLevel, app.Namespace, "appenders."+id)
		if err != nil {
			return nil, err
		}
		st := &appenderState{
			id:      id,
			app:     app,
			f:       f,
			limiter: newRateLimiter(app.RateLimit, cfg.Clock),
			output:  app.Output,
			opts:    &cfg.Options,
		}
		if st.output == nil {
			st.output = cfg.Output
		}
		if app.Options != nil {
			app.Options.Encoder.ApplyDefaults()
			if app.Options.Encoding == "" {
				app.Options.Encoding = cfg.Options.Encoding
			}
			st.opts = app.Options
		}
		if app.Async {
			size := app.QueueSize
			if size <= 0 {
				size = config.DefaultQueueSize
			}
			st.w = newWorker(id, size, app.Handler, m)
		}
		p.apps[id] = st
		p.order = append(p.order, id)
	}
	sort.Strings(p.order)
	return p, nil
}

// Config 返回配置快照的副本，供派生新管道使用
func (p *Pipeline) Config() Config {
	cfg := p.cfg
	cfg.Appenders = make(map[string]*Appender, len(p.cfg.Appenders))
	for id, a := range p.cfg.Appenders {
		cfg.Appenders[id] = a
	}
	cfg.Middleware = append([]Middleware(nil), p.cfg.Middleware...)
	if p.cfg.Context != nil {
		cfg.Context = make(map[string]any, len(p.cfg.Context))
		for k, v := range p.cfg.Context {
			cfg.Context[k] = v
		}
	}
	return cfg
}

// Scoped 基于当前快照派生一个局部覆盖的管道，用于动态作用域
// 配置（随 context 传递）。派生管道持有自己的异步 worker，
// 使用方负责在作用域结束后 Shutdown（纯同步覆盖无需关停）。
// 派生管道与基础管道共享 appender 记录，其 Shutdown 只排空
// 自己的 worker，不执行 sink 的关停钩子。
func (p *Pipeline) Scoped(mutate func(*Config)) (*Pipeline, error) {
	cfg := p.Config()
	if mutate != nil {
		mutate(&cfg)
	}
	// 指标注册器不继承，避免同名指标重复注册
	cfg.Metrics = nil
	d, err := NewPipeline(cfg)
	if err != nil {
		return nil, err
	}
	d.derived = true
	return d, nil
}

// Log 执行一次完整分发：全局过滤 → 事件构建 → 中间件 →
// 逐 appender（过滤、限流、输出计算、同步或异步投递）。
// callDepth 为调用方相对本函数的栈帧数（1 表示直接调用者）。
func (p *Pipeline) Log(level config.LogLevel, ns string, kind MessageKind, callDepth int, extra map[string]any, args []any) error {
	if !level.Valid() {
		return &ConfigurationError{Source: "call.level", Value: level, Reason: "unknown log level"}
	}

	ok, err := p.global.admit(level, ns)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	evErr, meta, format, rest, callErr := buildEvent(kind, args)
	if callErr != nil {
		return callErr
	}

	file, line := callerInfo(callDepth)
	ev := &Event{
		Time:      p.clock.Now(),
		Level:     level,
		Namespace: ns,
		File:      file,
		Line:      line,
		Context:   p.mergeContext(extra),
		Err:       evErr,
		Kind:      kind,
		Format:    format,
		Args:      rest,
		Meta:      meta,
	}

	// 中间件是全局门：首个返回 nil 的变换终止链并放弃所有 appender
	ev = applyMiddleware(p.cfg.Middleware, ev)
	if ev == nil {
		p.m.incDropped()
		return nil
	}

	for _, id := range p.order {
		st := p.apps[id]
		if !st.app.Enabled {
			p.m.incSuppressed(id, reasonDisabled)
			continue
		}
		ok, err := st.f.admit(ev.Level, ev.Namespace)
		if err != nil {
			return err
		}
		if !ok {
			p.m.incSuppressed(id, reasonFiltered)
			continue
		}
		if !st.limiter.admit(ev.IdentityHash()) {
			// 限流压制是静默的准入控制，不构成错误
			p.m.incSuppressed(id, reasonRateLimit)
			continue
		}

		entry := &Entry{
			Event:      ev,
			AppenderID: id,
			Appender:   st.app,
			Config:     &p.cfg,
			Options:    st.opts,
		}
		// 输出在异步边界之前计算，OutputError 始终同步暴露
		if err := computeOutput(entry, st.output); err != nil {
			return err
		}

		if st.w != nil {
			st.w.enqueue(entry)
			continue
		}
		// 同步 appender：失败传播给调用方
		if err := st.app.Handler(entry); err != nil {
			return &AppenderError{Appender: id, Err: err}
		}
		p.m.incDispatched(id)
	}
	return nil
}

// computeOutput 调用生效输出函数并把任何失败（含 panic）
// 包装为携带调用位置的 OutputError
func computeOutput(e *Entry, fn OutputFunc) (err error) {
	wrap := func(cause error) error {
		return &OutputError{
			Level:     e.Level,
			Namespace: e.Namespace,
			File:      e.File,
			Line:      e.Line,
			Err:       cause,
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = wrap(fmt.Errorf("panic: %v", r))
		}
	}()
	out, cause := fn(e)
	if cause != nil {
		return wrap(cause)
	}
	e.output = out
	return nil
}

// Sync 排空全部异步队列并调用各 appender 的 Sync 钩子
func (p *Pipeline) Sync() error {
	var errs error
	for _, id := range p.order {
		st := p.apps[id]
		if st.w != nil {
			st.w.flushWait()
		}
		if st.app.Sync != nil {
			errs = multierr.Append(errs, st.app.Sync())
		}
	}
	return errs
}

// Shutdown 执行关停：停止并排空异步 worker，然后对每个
// appender（无论是否启用）执行至多一次关停钩子。钩子的失败
// 被包容，不影响后续钩子。返回本次实际执行了钩子的 appender
// 标识集合；重复调用不会再次执行钩子。
// Scoped 派生的管道只排空自己的 worker：sink 归基础管道所有，
// 钩子由基础管道的关停执行。
func (p *Pipeline) Shutdown() []string {
	var ran []string
	for _, id := range p.order {
		st := p.apps[id]
		if st.w != nil {
			st.w.stop()
		}
		if p.derived || st.app.Shutdown == nil {
			continue
		}
		st.shutOnce.Do(func() {
			defer func() {
				// 钩子 panic 同样被包容
				_ = recover()
			}()
			ran = append(ran, id)
			_ = st.app.Shutdown()
		})
	}
	return ran
}

func (p *Pipeline) mergeContext(extra map[string]any) map[string]any {
	if p.cfg.Context == nil && extra == nil && p.cfg.ServiceName == "" {
		return nil
	}
	merged := make(map[string]any, len(p.cfg.Context)+len(extra)+1)
	if p.cfg.ServiceName != "" {
		merged["service"] = p.cfg.ServiceName
	}
	for k, v := range p.cfg.Context {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func callerInfo(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "", 0
	}
	return file, line
}
