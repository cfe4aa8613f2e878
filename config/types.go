package config

import "time"

const (
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultBatchSize     = 100
	DefaultBatchInterval = 5 * time.Second
	DefaultMaxOpenConns  = 10
	DefaultMaxIdleConns  = 5
	DefaultFileMaxSizeMB = 100
	DefaultMaxBackups    = 5
	DefaultMaxAgeDays    = 30
	DefaultTimeFormat    = time.RFC3339Nano
	DefaultQueueSize     = 1024
)

// LogLevel 定义支持的日志级别（全序，严重程度递增）
// ReportLevel 位于 FatalLevel 之上，保留给"始终可见"的非错误状态信息
type LogLevel string

const (
	TraceLevel  LogLevel = "trace"
	DebugLevel  LogLevel = "debug"
	InfoLevel   LogLevel = "info"
	WarnLevel   LogLevel = "warn"
	ErrorLevel  LogLevel = "error"
	FatalLevel  LogLevel = "fatal"
	ReportLevel LogLevel = "report"
)

// LevelRule 定义一条 (命名空间模式, 级别) 规则，用于按命名空间解析最低级别
type LevelRule struct {
	Pattern string   `json:"pattern"` // 命名空间通配模式
	Level   LogLevel `json:"level"`   // 该模式下生效的最低级别
}

// MinLevel 定义生效最低级别：
// Rules 为空时直接使用 Level；否则按序取首个匹配规则，
// 无规则命中时回退到 Level（Level 为空则解析失败）
type MinLevel struct {
	Level LogLevel    `json:"level,omitempty"` // 单一级别，亦作为规则未命中时的默认值
	Rules []LevelRule `json:"rules,omitempty"` // 有序规则，首个匹配生效
}

// PatternSpec 命名空间过滤规格（标签式变体，三选一）：
//   - Match: 通配模式集合，任一命中即通过
//   - Allow/Deny: 允许/拒绝记录，Deny 优先于 Allow
//   - Predicate: 任意谓词函数，每次调用都重新求值，永不缓存
type PatternSpec struct {
	Match     []string             `json:"match,omitempty"`
	Allow     []string             `json:"allow,omitempty"`
	Deny      []string             `json:"deny,omitempty"`
	Predicate func(ns string) bool `json:"-"`
}

// Pattern 构建一个任一命中即通过的通配规格
func Pattern(globs ...string) *PatternSpec {
	return &PatternSpec{Match: globs}
}

// AllowDeny 构建一个允许/拒绝规格，Deny 优先
func AllowDeny(allow, deny []string) *PatternSpec {
	return &PatternSpec{Allow: allow, Deny: deny}
}

// RateLimitTier 定义一档限流：窗口 Window 内最多放行 Max 条
type RateLimitTier struct {
	Max    int           `json:"max"`
	Window time.Duration `json:"window"`
}

// OutputType 定义内置 appender 类型
type OutputType string

const (
	Stdout OutputType = "console"
	File   OutputType = "file"
	DB     OutputType = "database"
)

// EncodingType 定义编码类型
type EncodingType string

const (
	JSON    EncodingType = "json"
	Console EncodingType = "console"
)

// EncoderConfig 定义日志编码器配置
type EncoderConfig struct {
	TimeFormat   string `json:"timeFormat"`   // 时间格式
	TimeZone     string `json:"timeZone"`     // 时区
	MessageKey   string `json:"messageKey"`   // 消息键
	LevelKey     string `json:"levelKey"`     // 级别键
	TimeKey      string `json:"timeKey"`      // 时间键
	NamespaceKey string `json:"namespaceKey"` // 命名空间键
	CallerKey    string `json:"callerKey"`    // 调用者键
	ErrorKey     string `json:"errorKey"`     // 错误键
	ShortCaller  bool   `json:"shortCaller"`  // 简短调用路径
	EnableCaller bool   `json:"enableCaller"` // 启用调用者信息
}

// OutputConfig 定义一个内置 appender 的数据配置，
// 由 adapter 工厂翻译为可执行的 Appender 记录
type OutputConfig struct {
	Type      OutputType      `json:"type"`
	Level     LogLevel        `json:"level"`     // 该输出的最低级别（空值表示沿用全局）
	Namespace *PatternSpec    `json:"namespace"` // 该输出的命名空间过滤
	Encoding  EncodingType    `json:"encoding"`
	Enabled   bool            `json:"enabled"`
	Async     bool            `json:"async"`
	QueueSize int             `json:"queueSize"` // 异步队列容量，满时阻塞以保持顺序
	RateLimit []RateLimitTier `json:"rateLimit"`
	File      *FileConfig     `json:"file"`
	Database  *DatabaseConfig `json:"database"`

	// Metadata 用于测试等场景的元信息（不参与验证）
	Metadata map[string]string `json:"metadata,omitempty"`
}

// FileConfig 定义文件日志配置
type FileConfig struct {
	Path            string `json:"path"`
	MaxSizeMB       int    `json:"maxSizeMB"`
	MaxBackups      int    `json:"maxBackups"`
	MaxAgeDays      int    `json:"maxAgeDays"`
	Compress        bool   `json:"compress"`
	RotateOnStartup bool   `json:"rotateOnStartup"` // 启动时轮转（跨进程由文件锁协调）
	LocalTime       bool   `json:"localTime"`
}

// DatabaseConfig 定义数据库日志配置
type DatabaseConfig struct {
	DriverName      string        `json:"driver"`
	DataSourceName  string        `json:"dsn"`
	TableName       string        `json:"tableName"`
	BatchSize       int           `json:"batchSize"`
	BatchInterval   time.Duration `json:"batchInterval"`
	MaxConnLifetime time.Duration `json:"maxConnLifeTime"`
	MaxOpenConns    int           `json:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns"`
	RetryDelay      time.Duration `json:"retryDelay"`
}
