package adapter

import (
	"os"

	"github.com/iuboy/alhena/core"
)

// newConsoleAppender 构建写标准输出的同步 appender
func newConsoleAppender() (*core.Appender, error) {
	if os.Stdout == nil {
		return nil, os.ErrInvalid
	}
	return &core.Appender{
		Handler: func(e *core.Entry) error {
			_, err := os.Stdout.Write(e.Output())
			return err
		},
		Sync: func() error {
			return os.Stdout.Sync()
		},
	}, nil
}
