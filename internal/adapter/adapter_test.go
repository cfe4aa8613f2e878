package adapter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iuboy/alhena/config"
	"github.com/iuboy/alhena/core"
)

func TestCreateAppenderValidation(t *testing.T) {
	_, err := CreateAppender(config.OutputConfig{Type: "kafka"})
	assert.Error(t, err)

	_, err = CreateAppender(config.OutputConfig{Type: config.File})
	assert.Error(t, err, "文件输出缺少文件配置")

	_, err = CreateAppender(config.OutputConfig{Type: config.Stdout, Level: "loud"})
	assert.Error(t, err)
}

func TestCreateAppenderConsole(t *testing.T) {
	app, err := CreateAppender(config.OutputConfig{
		Type:      config.Stdout,
		Level:     config.WarnLevel,
		Namespace: config.Pattern("app.*"),
		Encoding:  config.Console,
		Enabled:   true,
		Async:     true,
		QueueSize: 64,
		RateLimit: []config.RateLimitTier{{Max: 5, Window: time.Second}},
	})
	require.NoError(t, err)

	assert.True(t, app.Enabled)
	assert.True(t, app.Async)
	assert.Equal(t, 64, app.QueueSize)
	require.NotNil(t, app.MinLevel)
	assert.Equal(t, config.WarnLevel, app.MinLevel.Level)
	assert.NotNil(t, app.Namespace)
	assert.Len(t, app.RateLimit, 1)
	require.NotNil(t, app.Options)
	assert.Equal(t, config.Console, app.Options.Encoding)
	assert.NotNil(t, app.Handler)
	assert.NotNil(t, app.Sync)
}

func TestFileAppenderWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "app.log")
	app, err := CreateAppender(config.OutputConfig{
		Type:     config.File,
		Level:    config.DebugLevel,
		Encoding: config.JSON,
		Enabled:  true,
		File:     &config.FileConfig{Path: logPath},
	})
	require.NoError(t, err)

	p, err := core.NewPipeline(core.Config{
		MinLevel:  config.MinLevel{Level: config.DebugLevel},
		Appenders: map[string]*core.Appender{"file": app},
	})
	require.NoError(t, err)

	require.NoError(t, p.Log(config.WarnLevel, "disk.monitor", core.KindFormatted, 1, nil,
		[]any{"space low: %d%%", 93}))
	ran := p.Shutdown()
	assert.Equal(t, []string{"file"}, ran)

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"space low: 93%"`)
	assert.Contains(t, string(content), `"level":"warn"`)
	assert.Contains(t, string(content), `"ns":"disk.monitor"`)
}

func TestFileAppenderClosedWrite(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "app.log")
	app, err := CreateAppender(config.OutputConfig{
		Type:    config.File,
		Enabled: true,
		File:    &config.FileConfig{Path: logPath},
	})
	require.NoError(t, err)

	require.NoError(t, app.Shutdown())
	require.NoError(t, app.Shutdown(), "重复关闭幂等")

	err = app.Handler(&core.Entry{Event: &core.Event{}, Options: &core.OutputOptions{}})
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestRotateOnStartup(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")

	t.Run("文件不存在时无动作", func(t *testing.T) {
		assert.NoError(t, rotateOnStartup(logPath))
	})

	t.Run("已有日志改名备份", func(t *testing.T) {
		require.NoError(t, os.WriteFile(logPath, []byte("old logs\n"), 0644))
		require.NoError(t, rotateOnStartup(logPath))

		_, err := os.Stat(logPath)
		assert.True(t, os.IsNotExist(err), "原文件应已改名")

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		backupFound := false
		for _, e := range entries {
			if e.Name() != "app.log" && e.Name() != "app.log.lock" &&
				filepath.Ext(e.Name()) != "" {
				backupFound = true
			}
		}
		assert.True(t, backupFound, "应存在备份文件")
	})
}
