package core

import (
	"crypto/sha1"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iuboy/alhena/config"
)

// MessageKind 标记调用的消息形态
type MessageKind uint8

const (
	KindNone      MessageKind = iota // 无消息（仅字段/错误）
	KindPlain                        // 普通消息：参数以空格拼接
	KindFormatted                    // 格式化消息：首个剩余参数为格式串
)

// Meta 是调用点显式标注的元数据。以独立类型出现在参数
// 首部（错误参数之后）才会被识别并从参数序列中剥离。
type Meta struct {
	ID       string // 显式身份，与调用点和级别组合后参与 identity hash
	RawID    string // 完整身份覆盖，逐字作为 identity hash，绕过调用点与级别
	HashSeed string // 兼容旧 hash 种子，替代参数参与 hash
	Err      error  // 覆盖事件错误（优先于首参错误）
}

// Event 是单次日志调用构建出的不可变事件记录。
// 中间件只能通过 Clone 替换/增补，不得原地修改。
type Event struct {
	Time      time.Time
	Level     config.LogLevel
	Namespace string
	File      string
	Line      int
	Context   map[string]any
	Err       error
	Kind      MessageKind
	Format    string
	Args      []any
	Meta      *Meta

	idOnce sync.Once
	id     string

	tsMu       sync.Mutex
	timestamps map[string]string
}

// Clone 返回事件的浅拷贝，供中间件替换字段使用；
// 惰性派生值（identity hash、时间戳缓存）不随拷贝继承。
func (e *Event) Clone() *Event {
	c := &Event{
		Time:      e.Time,
		Level:     e.Level,
		Namespace: e.Namespace,
		File:      e.File,
		Line:      e.Line,
		Err:       e.Err,
		Kind:      e.Kind,
		Format:    e.Format,
		Meta:      e.Meta,
	}
	if e.Context != nil {
		c.Context = make(map[string]any, len(e.Context))
		for k, v := range e.Context {
			c.Context[k] = v
		}
	}
	c.Args = append([]any(nil), e.Args...)
	return c
}

// IdentityHash 返回事件的确定性指纹，用于限流分桶。
// 逻辑相同的调用（同调用点、级别、参数）产生相同指纹。
func (e *Event) IdentityHash() string {
	e.idOnce.Do(func() {
		if e.Meta != nil && e.Meta.RawID != "" {
			e.id = e.Meta.RawID
			return
		}
		var b strings.Builder
		b.Grow(256)
		b.WriteString(e.Namespace)
		b.WriteByte('|')
		b.WriteString(e.File)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(e.Line))
		b.WriteByte('|')
		b.WriteString(string(e.Level))
		b.WriteByte('|')
		switch {
		case e.Meta != nil && e.Meta.ID != "":
			b.WriteString(e.Meta.ID)
		case e.Meta != nil && e.Meta.HashSeed != "":
			b.WriteString(e.Meta.HashSeed)
		default:
			b.WriteString(e.Format)
			for _, a := range e.Args {
				b.WriteByte('|')
				fmt.Fprint(&b, a)
			}
		}
		e.id = fmt.Sprintf("%x", sha1.Sum([]byte(b.String())))
	})
	return e.id
}

// Timestamp 返回按 (format, zone) 渲染的时间戳。
// 同一事件内相同选项的结果只计算一次，跨 appender 共享。
func (e *Event) Timestamp(format, zone string) string {
	if format == "" {
		format = config.DefaultTimeFormat
	}
	key := format + "|" + zone
	e.tsMu.Lock()
	defer e.tsMu.Unlock()
	if ts, ok := e.timestamps[key]; ok {
		return ts
	}
	if e.timestamps == nil {
		e.timestamps = make(map[string]string, 2)
	}
	ts := e.Time.In(loadLocation(zone)).Format(format)
	e.timestamps[key] = ts
	return ts
}

func loadLocation(zone string) *time.Location {
	if zone == "" || zone == "UTC" {
		return time.UTC
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// buildEvent 将原始调用参数解析为事件的组成部分：
//  1. 首参为 error 时成为事件错误并被剥离（可被 Meta.Err 覆盖）
//  2. 紧随其后的 *Meta 被提取并剥离
//  3. 格式化调用要求下一个参数为格式串，否则返回 ArgumentError
//  4. 其余参数构成有序参数向量
//
// 纯函数，无副作用。
func buildEvent(kind MessageKind, args []any) (err error, meta *Meta, format string, rest []any, callErr error) {
	rest = args
	if len(rest) > 0 {
		if e, ok := rest[0].(error); ok {
			err = e
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		if m, ok := rest[0].(*Meta); ok {
			meta = m
			rest = rest[1:]
			if m.Err != nil {
				err = m.Err
			}
		}
	}
	if kind == KindFormatted {
		if len(rest) == 0 {
			return nil, nil, "", nil, &ArgumentError{Reason: "formatted call without a format string"}
		}
		s, ok := rest[0].(string)
		if !ok {
			return nil, nil, "", nil, &ArgumentError{
				Reason: fmt.Sprintf("formatted call requires a string format, got %T", rest[0]),
			}
		}
		format = s
		rest = rest[1:]
	}
	return err, meta, format, rest, nil
}
