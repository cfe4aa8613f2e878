package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/iuboy/alhena/config"
	"github.com/iuboy/alhena/core"
)

// LogStore 是批量写入后端
type LogStore interface {
	InsertBatch(ctx context.Context, records []LogRecord) error
	Close() error
}

// LogRecord 是落库的事件行
type LogRecord struct {
	Time      time.Time       `json:"time" gorm:"column:time"`
	Level     string          `json:"level" gorm:"column:level"`
	Namespace string          `json:"ns" gorm:"column:ns"`
	Message   string          `json:"msg" gorm:"column:msg"`
	Caller    string          `json:"caller" gorm:"column:caller"`
	Fields    json.RawMessage `json:"fields" gorm:"type:json"`
}

// newDatabaseAppender 构建 gorm 后端的批量写入 appender
func newDatabaseAppender(cfg config.DatabaseConfig) (*core.Appender, error) {
	var dialector gorm.Dialector
	switch cfg.DriverName {
	case "mysql":
		dialector = mysql.Open(cfg.DataSourceName)
	case "postgres":
		dialector = postgres.Open(cfg.DataSourceName)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.DriverName)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxConnLifetime)

	store := &sqlStore{
		db:        gdb,
		table:     cfg.TableName,
		batchSize: cfg.BatchSize,
	}
	return newBatchAppender(cfg, store), nil
}

type sqlStore struct {
	db        *gorm.DB
	table     string
	batchSize int
}

func (s *sqlStore) InsertBatch(ctx context.Context, records []LogRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Table(s.table).CreateInBatches(records, s.batchSize).Error
}

func (s *sqlStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// batcher 将事件异步攒批写入后端
type batcher struct {
	cfg     config.DatabaseConfig
	backend LogStore
	records chan LogRecord
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// newBatchAppender 把批量写入器包装成 appender 记录
func newBatchAppender(cfg config.DatabaseConfig, backend LogStore) *core.Appender {
	ctx, cancel := context.WithCancel(context.Background())
	b := &batcher{
		cfg:     cfg,
		backend: backend,
		records: make(chan LogRecord, cfg.BatchSize*10),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go b.run(ctx)

	return &core.Appender{
		Handler:  b.append,
		Shutdown: b.close,
	}
}

func (b *batcher) append(e *core.Entry) error {
	fields := make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		fields[k] = v
	}
	if e.Err != nil {
		fields["error"] = e.Err.Error()
	}
	fieldsBytes, err := json.Marshal(fields)
	if err != nil {
		fieldsBytes = []byte("{}")
	}
	rec := LogRecord{
		Time:      e.Time,
		Level:     string(e.Level),
		Namespace: e.Namespace,
		Message:   e.Message(),
		Caller:    e.File + ":" + strconv.Itoa(e.Line),
		Fields:    json.RawMessage(fieldsBytes),
	}

	// 与 close 竞争时丢弃，绝不向已关闭的通道发送
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	select {
	case b.records <- rec:
	default:
		fmt.Fprintln(os.Stderr, "db log dropped: channel full")
	}
	return nil
}

func (b *batcher) close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.cancel()
	close(b.records)
	b.mu.Unlock()

	<-b.done
	return b.backend.Close()
}

func (b *batcher) run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.BatchInterval)
	defer ticker.Stop()

	var batch []LogRecord

	for {
		select {
		case rec, ok := <-b.records:
			if !ok {
				b.flush(batch)
				return
			}
			batch = append(batch, rec)
			if len(batch) >= b.cfg.BatchSize {
				_ = b.backend.InsertBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				_ = b.backend.InsertBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			// 排空通道里剩余的记录后退出
			for rec := range b.records {
				batch = append(batch, rec)
			}
			b.flush(batch)
			return
		}
	}
}

// flush 带重试地写出剩余批次
func (b *batcher) flush(batch []LogRecord) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	for i := 0; i < 3; i++ {
		if err = b.backend.InsertBatch(ctx, batch); err == nil {
			return
		}
		time.Sleep(b.cfg.RetryDelay)
	}
	fmt.Fprintf(os.Stderr, "failed to flush batch to database: %v\n", err)
}
