// Package adapter 将数据配置翻译为可执行的 appender 记录。
// 这里只是管道的外部协作方：核心引擎决定事件是否、如何交付，
// 这些 sink 决定拿到事件后做什么。
package adapter

import (
	"fmt"

	"github.com/iuboy/alhena/config"
	"github.com/iuboy/alhena/core"
)

// CreateAppender 根据输出配置创建 appender 记录
func CreateAppender(out config.OutputConfig) (*core.Appender, error) {
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("output config invalid: %w", err)
	}

	var (
		app *core.Appender
		err error
	)
	switch out.Type {
	case config.Stdout:
		app, err = newConsoleAppender()
	case config.File:
		app, err = newFileAppender(*out.File)
	case config.DB:
		app, err = newDatabaseAppender(*out.Database)
	default:
		return nil, fmt.Errorf("unsupported output type: %s", out.Type)
	}
	if err != nil {
		return nil, err
	}

	app.Enabled = out.Enabled
	app.Async = out.Async
	app.QueueSize = out.QueueSize
	app.RateLimit = out.RateLimit
	if out.Level != "" {
		app.MinLevel = &config.MinLevel{Level: out.Level}
	}
	app.Namespace = out.Namespace
	if out.Encoding != "" {
		app.Options = &core.OutputOptions{Encoding: out.Encoding}
	}
	return app, nil
}
