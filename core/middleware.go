package core

// Middleware 是事件上的纯变换：返回替换后的事件，或返回 nil
// 表示丢弃（对所有 appender 生效）。实现方应基于 Event.Clone
// 构造新值，不得原地修改传入事件。
// 变换内的 panic 不在此处捕获，按普通调用失败向上传播。
type Middleware func(*Event) *Event

// applyMiddleware 从左到右应用变换链，遇到 nil 立即终止
func applyMiddleware(ms []Middleware, ev *Event) *Event {
	for _, m := range ms {
		ev = m(ev)
		if ev == nil {
			return nil
		}
	}
	return ev
}
