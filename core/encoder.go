package core

import (
	"crypto/sha1"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iuboy/alhena/config"
)

// MessageFunc 将事件渲染为消息文本
type MessageFunc func(e *Event) string

// ErrorFunc 将事件错误渲染为文本
type ErrorFunc func(err error) string

// OutputFunc 从事件视图产出交付给 sink 的最终输出
type OutputFunc func(e *Entry) ([]byte, error)

// OutputOptions 定义输出函数及其下游渲染函数的选项。
// Message 与 Error 可独立覆盖，缺省使用内置实现。
type OutputOptions struct {
	Encoding config.EncodingType
	Encoder  config.EncoderConfig
	Message  MessageFunc
	Error    ErrorFunc
}

func (o *OutputOptions) message(e *Event) string {
	if o != nil && o.Message != nil {
		return o.Message(e)
	}
	return DefaultMessage(e)
}

func (o *OutputOptions) renderError(err error) string {
	if o != nil && o.Error != nil {
		return o.Error(err)
	}
	return err.Error()
}

// DefaultMessage 是内置消息渲染：普通调用将参数以空格拼接，
// 格式化调用走 Sprintf，无消息调用返回空串
func DefaultMessage(e *Event) string {
	switch e.Kind {
	case KindFormatted:
		return fmt.Sprintf(e.Format, e.Args...)
	case KindPlain:
		return strings.TrimSuffix(fmt.Sprintln(e.Args...), "\n")
	default:
		return ""
	}
}

const maxEncoderCacheSize = 10

var (
	encoderCacheMu sync.RWMutex
	encoderCache   = make(map[string]zapcore.Encoder)
)

// getEncoder 返回按配置指纹缓存的 zapcore 编码器，
// 相同选项的重复构建直接命中缓存
func getEncoder(encCfg config.EncoderConfig, encoding config.EncodingType) zapcore.Encoder {
	defaultCfg := *encCfg.ApplyDefaults()

	var b strings.Builder
	b.Grow(256)
	b.WriteString(string(encoding))
	b.WriteByte('|')
	b.WriteString(defaultCfg.TimeFormat)
	b.WriteByte('|')
	b.WriteString(defaultCfg.TimeZone)
	b.WriteByte('|')
	b.WriteString(defaultCfg.MessageKey)
	b.WriteByte('|')
	b.WriteString(defaultCfg.LevelKey)
	b.WriteByte('|')
	b.WriteString(defaultCfg.TimeKey)
	b.WriteByte('|')
	b.WriteString(defaultCfg.NamespaceKey)
	b.WriteByte('|')
	b.WriteString(defaultCfg.CallerKey)
	b.WriteByte('|')
	b.WriteString(defaultCfg.ErrorKey)
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(defaultCfg.ShortCaller))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(defaultCfg.EnableCaller))
	cacheKey := fmt.Sprintf("%x", sha1.Sum([]byte(b.String())))

	encoderCacheMu.RLock()
	encoder, ok := encoderCache[cacheKey]
	encoderCacheMu.RUnlock()
	if ok {
		return encoder
	}

	encoder = createEncoder(defaultCfg, encoding)

	encoderCacheMu.Lock()
	if len(encoderCache) >= maxEncoderCacheSize {
		for k := range encoderCache {
			delete(encoderCache, k)
			break
		}
	}
	encoderCache[cacheKey] = encoder
	encoderCacheMu.Unlock()
	return encoder
}

// createEncoder 构建 zapcore 编码器。级别与时间以显式字符串字段
// 写入（LevelKey/TimeKey 置空），以承载 trace/report 级别和
// 跨 appender 共享的惰性时间戳。
func createEncoder(cfg config.EncoderConfig, encoding config.EncodingType) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     cfg.MessageKey,
		LevelKey:       "",
		TimeKey:        "",
		NameKey:        "",
		CallerKey:      "",
		StacktraceKey:  "",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	switch encoding {
	case config.Console:
		return zapcore.NewConsoleEncoder(encoderConfig)
	default: // JSON
		return zapcore.NewJSONEncoder(encoderConfig)
	}
}

// DefaultOutput 是内置输出函数：经缓存的 zapcore 编码器渲染事件
func DefaultOutput(e *Entry) ([]byte, error) {
	opts := e.Options
	cfg := *opts.Encoder.ApplyDefaults()
	encoder := getEncoder(cfg, opts.Encoding)

	fields := make([]zapcore.Field, 0, 8)
	fields = append(fields,
		zap.String(cfg.TimeKey, e.Timestamp(cfg.TimeFormat, cfg.TimeZone)),
		zap.String(cfg.LevelKey, string(e.Level)),
	)
	if e.Namespace != "" {
		fields = append(fields, zap.String(cfg.NamespaceKey, e.Namespace))
	}
	if cfg.EnableCaller && e.File != "" {
		caller := e.File
		if cfg.ShortCaller {
			caller = trimmedPath(e.File)
		}
		fields = append(fields, zap.String(cfg.CallerKey, caller+":"+strconv.Itoa(e.Line)))
	}
	if e.Err != nil {
		fields = append(fields, zap.String(cfg.ErrorKey, opts.renderError(e.Err)))
	}
	for k, v := range e.Context {
		fields = append(fields, zap.Any(k, v))
	}

	// 克隆编码器避免并发共享内部缓冲
	buf, err := encoder.Clone().EncodeEntry(zapcore.Entry{Message: e.Message()}, fields)
	if err != nil {
		return nil, fmt.Errorf("encode entry failed: %w", err)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	buf.Free()
	return out, nil
}

// trimmedPath 保留路径最后两段，对应 zapcore 的短调用者格式
func trimmedPath(file string) string {
	dir := filepath.Dir(file)
	return filepath.Join(filepath.Base(dir), filepath.Base(file))
}
