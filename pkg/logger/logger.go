package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger 全局日志实例
	Logger *logrus.Logger
	// currentLogFile 当前日志文件路径
	currentLogFile string
	// savedConfig 初始化时保存的配置（轮转时复用）
	savedConfig Config
	// currentWindow 当前窗口时间戳（从市场 slug 提取，0 表示按钟面 15 分钟对齐）
	currentWindow int64
	// logMu 日志文件切换锁
	logMu sync.Mutex
)

// Config 日志配置
type Config struct {
	Level       string // debug, info, warn, error
	OutputFile  string // 为空则只输出到控制台
	MaxSize     int    // 单文件上限（MB）
	MaxBackups  int    // 保留的旧文件数
	MaxAge      int    // 保留天数
	Compress    bool   // 压缩旧文件
	LogByWindow bool   // 每个 15 分钟窗口一个日志文件
}

// windowLogPath 按窗口时间戳生成日志文件名，
// 如 logs/worker.log + 1765985400 → logs/worker_1765985400.log
func windowLogPath(basePath string, window int64) string {
	if window == 0 {
		window = time.Now().Truncate(15 * time.Minute).Unix()
	}
	dir := filepath.Dir(basePath)
	base := filepath.Base(basePath)
	ext := filepath.Ext(base)
	name := fmt.Sprintf("%s_%d%s", base[:len(base)-len(ext)], window, ext)
	if dir == "." || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

func newFormatter() *logrus.TextFormatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05",
		ForceColors:     true,
	}
}

func setOutput(config Config, logFilePath string) error {
	writers := []io.Writer{os.Stdout}
	if logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
			return err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
		currentLogFile = logFilePath
	}

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	out := io.MultiWriter(writers...)
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(newFormatter())
	logger.SetOutput(out)

	// 全局 logrus 同步设置，各处 logrus.WithField() 创建的 entry 也写入文件
	logrus.SetOutput(out)
	logrus.SetLevel(level)
	logrus.SetFormatter(newFormatter())

	Logger = logger
	return nil
}

// Init 初始化日志系统
func Init(config Config) error {
	logMu.Lock()
	defer logMu.Unlock()

	savedConfig = config
	logFilePath := config.OutputFile
	if config.OutputFile != "" && config.LogByWindow {
		logFilePath = windowLogPath(config.OutputFile, currentWindow)
	}
	return setOutput(config, logFilePath)
}

// InitDefault 使用默认配置初始化日志系统
func InitDefault() error {
	return Init(Config{
		Level:       "info",
		OutputFile:  "logs/worker.log",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      7,
		Compress:    true,
		LogByWindow: true,
	})
}

// SetWindow 切换到新窗口的日志文件。worker 在每个新窗口首个 tick 调用，
// 传入从市场 slug 提取的窗口时间戳（btc-updown-15m-1765985400 → 1765985400）。
// 窗口未变化时为空操作。
func SetWindow(window int64) error {
	logMu.Lock()
	defer logMu.Unlock()

	if !savedConfig.LogByWindow || savedConfig.OutputFile == "" || window == currentWindow {
		return nil
	}
	currentWindow = window

	logFilePath := windowLogPath(savedConfig.OutputFile, window)
	if logFilePath == currentLogFile {
		return nil
	}
	if err := setOutput(savedConfig, logFilePath); err != nil {
		return err
	}
	Logger.Infof("日志文件已切换到新窗口: %s", logFilePath)
	return nil
}

// GetCurrentLogFile 获取当前日志文件路径
func GetCurrentLogFile() string {
	logMu.Lock()
	defer logMu.Unlock()
	return currentLogFile
}

// Info 记录 INFO 级别日志
func Info(args ...interface{}) {
	if Logger != nil {
		Logger.Info(args...)
	}
}

// Warn 记录 WARN 级别日志
func Warn(args ...interface{}) {
	if Logger != nil {
		Logger.Warn(args...)
	}
}

// Error 记录 ERROR 级别日志
func Error(args ...interface{}) {
	if Logger != nil {
		Logger.Error(args...)
	}
}

// Debugf 记录格式化的 DEBUG 级别日志
func Debugf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Debugf(format, args...)
	}
}

// Infof 记录格式化的 INFO 级别日志
func Infof(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Infof(format, args...)
	}
}

// Warnf 记录格式化的 WARN 级别日志
func Warnf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Warnf(format, args...)
	}
}

// Errorf 记录格式化的 ERROR 级别日志
func Errorf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Errorf(format, args...)
	}
}

// WithField 添加字段到日志上下文
func WithField(key string, value interface{}) *logrus.Entry {
	if Logger != nil {
		return Logger.WithField(key, value)
	}
	return logrus.NewEntry(logrus.New())
}
