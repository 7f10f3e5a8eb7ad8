package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields 结构化日志字段
type Fields = logrus.Fields

// Options 日志配置
type Options struct {
	Level      string // debug, info, warn, error
	Format     string // text, json
	Dir        string // 日志目录，为空时只输出到标准输出
	FileName   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultOptions 默认日志配置
func DefaultOptions() Options {
	return Options{
		Level:      "info",
		Format:     "text",
		Dir:        "logs",
		FileName:   "server.log",
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
		Compress:   true,
	}
}

var (
	std = logrus.New()
	mu  sync.Mutex
	out io.Closer
)

// SetupLogger 使用默认配置初始化日志（标准输出 + logs/server.log）
func SetupLogger() error {
	return Configure(DefaultOptions())
}

// Configure 按配置重新初始化日志输出
func Configure(opts Options) error {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	var formatter logrus.Formatter
	switch opts.Format {
	case "json":
		formatter = &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	default:
		formatter = &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"}
	}

	var output io.Writer = os.Stdout
	var closer io.Closer
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		name := opts.FileName
		if name == "" {
			name = "server.log"
		}
		rotating := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, name),
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		}
		output = io.MultiWriter(os.Stdout, rotating)
		closer = rotating
	}

	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		_ = out.Close()
	}
	out = closer
	std.SetLevel(level)
	std.SetFormatter(formatter)
	std.SetOutput(output)
	return nil
}

// Logger 返回底层 logrus 实例
func Logger() *logrus.Logger {
	return std
}

// Writer 返回 info 级别的 io.Writer，供 gin/gorm 等组件使用
func Writer() *io.PipeWriter {
	return std.Writer()
}

// Debug 调试日志
func Debug(format string, v ...interface{}) {
	std.Debugf(format, v...)
}

// Info 信息日志
func Info(format string, v ...interface{}) {
	std.Infof(format, v...)
}

// Warning 警告日志
func Warning(format string, v ...interface{}) {
	std.Warnf(format, v...)
}

// Error 错误日志
func Error(format string, v ...interface{}) {
	std.Errorf(format, v...)
}

// WithFields 带字段的日志条目
func WithFields(fields Fields) *logrus.Entry {
	return std.WithFields(fields)
}

// WithError 带错误的日志条目
func WithError(err error) *logrus.Entry {
	return std.WithError(err)
}
