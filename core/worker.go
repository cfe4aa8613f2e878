package core

import (
	"sync"
)

type task struct {
	entry *Entry
	flush chan struct{} // 屏障任务：非 nil 时不投递，仅用于排空确认
}

// worker 为单个异步 appender 提供严格有序的串行投递。
// 同一 appender 的投递顺序与入队顺序一致；不同 appender 互不影响。
// handler 的失败（含 panic）被包容：计数后继续处理后续投递。
type worker struct {
	id      string
	handler HandlerFunc
	tasks   chan task
	done    chan struct{}
	m       *metrics

	mu      sync.RWMutex
	stopped bool
}

func newWorker(id string, size int, handler HandlerFunc, m *metrics) *worker {
	w := &worker{
		id:      id,
		handler: handler,
		tasks:   make(chan task, size),
		done:    make(chan struct{}),
		m:       m,
	}
	go w.run()
	return w
}

func (w *worker) run() {
	defer close(w.done)
	for t := range w.tasks {
		if t.flush != nil {
			close(t.flush)
			continue
		}
		w.deliver(t.entry)
	}
}

// deliver 以 continue-on-error 策略调用 handler
func (w *worker) deliver(e *Entry) {
	defer func() {
		if r := recover(); r != nil {
			w.m.incContained(w.id)
		}
	}()
	if err := w.handler(e); err != nil {
		w.m.incContained(w.id)
		return
	}
	w.m.incDispatched(w.id)
}

// enqueue 入队一次投递；队列满时阻塞以保持顺序与不丢失。
// worker 已停止时静默丢弃。
func (w *worker) enqueue(e *Entry) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	w.tasks <- task{entry: e}
}

// flushWait 等待此前入队的全部投递完成
func (w *worker) flushWait() {
	w.mu.RLock()
	if w.stopped {
		w.mu.RUnlock()
		<-w.done
		return
	}
	barrier := make(chan struct{})
	w.tasks <- task{flush: barrier}
	w.mu.RUnlock()

	select {
	case <-barrier:
	case <-w.done:
	}
}

// stop 关闭队列并等待剩余投递排空；可重复调用
func (w *worker) stop() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.tasks)
	}
	w.mu.Unlock()
	<-w.done
}
