package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/lumberjack"

	"github.com/iuboy/alhena/config"
	"github.com/iuboy/alhena/core"
)

const flockRetryDelay = 100 * time.Millisecond

type fileSink struct {
	lj     *lumberjack.Logger
	mu     sync.RWMutex
	closed atomic.Bool
}

// newFileAppender 构建带轮转的文件 appender
func newFileAppender(cfg config.FileConfig) (*core.Appender, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, err
	}

	if cfg.RotateOnStartup {
		if err := rotateOnStartup(cfg.Path); err != nil {
			return nil, err
		}
	}

	s := &fileSink{
		lj: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  cfg.LocalTime,
		},
	}

	return &core.Appender{
		Handler:  s.write,
		Shutdown: s.close,
	}, nil
}

func (s *fileSink) write(e *core.Entry) error {
	if s.closed.Load() {
		return os.ErrClosed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.lj.Write(e.Output())
	return err
}

func (s *fileSink) close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lj.Close(); err != nil {
		return fmt.Errorf("file close failed: %w", err)
	}
	return nil
}

// rotateOnStartup 启动时将已有日志改名备份。多进程共享同一
// 路径时由文件锁协调：拿不到锁说明其他进程正在处理，跳过。
func rotateOnStartup(logPath string) error {
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("stat log file failed: %w", err)
	}

	lock := flock.New(logPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil || !locked {
		return nil
	}
	defer lock.Unlock()

	backup := fmt.Sprintf("%s.%s", logPath, time.Now().Format("20060102_150405"))

	var lastErr error
	for i := 0; i < 3; i++ {
		if err := os.Rename(logPath, backup); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			lastErr = err
			time.Sleep(flockRetryDelay * time.Duration(i+1))
			continue
		}
		return nil
	}
	return fmt.Errorf("log rotation rename failed after retries: %w", lastErr)
}
