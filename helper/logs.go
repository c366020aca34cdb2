package helper

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// LogLevel 日志级别
type LogLevel string

const (
	LogLevelDEBUG LogLevel = "DEBUG"
	LogLevelINFO  LogLevel = "INFO"
	LogLevelWARN  LogLevel = "WARN"
	LogLevelERROR LogLevel = "ERROR"
)

var MaxSize = 100

// LogType 日志类型
type LogType string

const (
	LogTypeSystem     LogType = "系统"
	LogTypeCloudflare LogType = "Cloudflare"
	LogTypeEdgeOne    LogType = "EdgeOne"
	LogTypeESA        LogType = "ESA"
	LogTypeAPI        LogType = "接口"
	LogTypeAuth       LogType = "认证"
	LogTypeNetwork    LogType = "网络"
	LogTypeConfig     LogType = "配置"
)

var levelRank = map[LogLevel]int{
	LogLevelDEBUG: 0,
	LogLevelINFO:  1,
	LogLevelWARN:  2,
	LogLevelERROR: 3,
}

// ParseLogLevel 解析配置中的日志级别, 无法识别时为 INFO
func ParseLogLevel(s string) LogLevel {
	level := LogLevel(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelRank[level]; ok {
		return level
	}
	return LogLevelINFO
}

// LogEntry 日志条目
type LogEntry struct {
	Timestamp string   `json:"timestamp"` // 时间戳
	Level     LogLevel `json:"level"`     // 日志级别
	Type      LogType  `json:"type"`      // 日志类型
	Message   string   `json:"message"`   // 日志消息
}

// Logger 日志管理器
// 最近的日志保存在内存中供 /api/logs 查询, 同时输出到 zerolog
type Logger struct {
	mu       sync.RWMutex
	logs     []LogEntry
	maxSize  int  // 最大日志条数
	enabled  bool // 是否启用日志记录
	minLevel LogLevel
	sink     zerolog.Logger
}

var (
	// DefaultLogger 全局默认日志实例
	DefaultLogger *Logger
	once          sync.Once
)

// IsTerminal w 是否为终端
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewSink 创建 zerolog 输出, pretty 为 true 时使用易读格式, 否则输出 JSON
func NewSink(w io.Writer, pretty bool) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// InitLogger 初始化日志系统
func InitLogger(maxSize int) {
	once.Do(func() {
		if maxSize <= 0 {
			maxSize = MaxSize
		}
		DefaultLogger = &Logger{
			logs:     make([]LogEntry, 0, maxSize),
			maxSize:  maxSize,
			enabled:  true,
			minLevel: LogLevelINFO,
			sink:     NewSink(os.Stderr, IsTerminal(os.Stderr)),
		}
	})
}

// GetLogger 获取全局日志实例
func GetLogger() *Logger {
	InitLogger(MaxSize)
	return DefaultLogger
}

// NewLogger 创建独立的日志实例
func NewLogger(maxSize int, sink zerolog.Logger) *Logger {
	if maxSize <= 0 {
		maxSize = MaxSize
	}
	return &Logger{
		logs:     make([]LogEntry, 0, maxSize),
		maxSize:  maxSize,
		enabled:  true,
		minLevel: LogLevelINFO,
		sink:     sink,
	}
}

// addLog 添加日志（内部方法）
func (l *Logger) addLog(level LogLevel, logType LogType, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || levelRank[level] < levelRank[l.minLevel] {
		return
	}

	message := fmt.Sprintf(format, args...)

	entry := LogEntry{
		Timestamp: time.Now().Format(time.DateTime),
		Type:      logType,
		Level:     level,
		Message:   message,
	}

	// 如果超过最大条数，删除最旧的日志
	if len(l.logs) >= l.maxSize {
		l.logs = l.logs[1:]
	}
	l.logs = append(l.logs, entry)

	l.sink.WithLevel(zerologLevel(level)).Str("type", string(logType)).Msg(message)
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LogLevelDEBUG:
		return zerolog.DebugLevel
	case LogLevelWARN:
		return zerolog.WarnLevel
	case LogLevelERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug 记录调试日志
func (l *Logger) Debug(logType LogType, format string, args ...interface{}) {
	l.addLog(LogLevelDEBUG, logType, format, args...)
}

// Info 记录信息日志
func (l *Logger) Info(logType LogType, format string, args ...interface{}) {
	l.addLog(LogLevelINFO, logType, format, args...)
}

// Warn 记录警告日志
func (l *Logger) Warn(logType LogType, format string, args ...interface{}) {
	l.addLog(LogLevelWARN, logType, format, args...)
}

// Error 记录错误日志
func (l *Logger) Error(logType LogType, format string, args ...interface{}) {
	l.addLog(LogLevelERROR, logType, format, args...)
}

// GetLogs 获取所有日志（返回副本）
func (l *Logger) GetLogs() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	logsCopy := make([]LogEntry, len(l.logs))
	copy(logsCopy, l.logs)
	return logsCopy
}

// GetRecentLogs 获取最近的N条日志
func (l *Logger) GetRecentLogs(n int) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.logs) {
		n = len(l.logs)
	}

	start := len(l.logs) - n
	logsCopy := make([]LogEntry, n)
	copy(logsCopy, l.logs[start:])
	return logsCopy
}

// Query 按级别和类型过滤最近的日志, 空值表示不过滤
func (l *Logger) Query(level LogLevel, logType LogType, n int) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	filtered := make([]LogEntry, 0)
	for _, log := range l.logs {
		if level != "" && log.Level != level {
			continue
		}
		if logType != "" && log.Type != logType {
			continue
		}
		filtered = append(filtered, log)
	}
	if n > 0 && n < len(filtered) {
		filtered = filtered[len(filtered)-n:]
	}
	return filtered
}

// GetCount 获取当前日志条数
func (l *Logger) GetCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.logs)
}

// SetEnabled 设置是否启用日志记录
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// SetLevel 设置最低记录级别
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// SetSink 替换 zerolog 输出
func (l *Logger) SetSink(sink zerolog.Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
}

// SetMaxSize 设置最大日志条数
func (l *Logger) SetMaxSize(maxSize int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if maxSize <= 0 {
		maxSize = 1000
	}

	l.maxSize = maxSize

	// 如果当前日志数超过新的最大值，删除旧日志
	if len(l.logs) > maxSize {
		l.logs = l.logs[len(l.logs)-maxSize:]
	}
}

// 全局便捷方法

// Debug 全局调试日志
func Debug(logType LogType, format string, args ...interface{}) {
	GetLogger().Debug(logType, format, args...)
}

// Info 全局信息日志
func Info(logType LogType, format string, args ...interface{}) {
	GetLogger().Info(logType, format, args...)
}

// Warn 全局警告日志
func Warn(logType LogType, format string, args ...interface{}) {
	GetLogger().Warn(logType, format, args...)
}

// Error 全局错误日志
func Error(logType LogType, format string, args ...interface{}) {
	GetLogger().Error(logType, format, args...)
}

// ConfigureLogger 按配置调整全局日志
func ConfigureLogger(level string, maxSize int) {
	l := GetLogger()
	l.SetLevel(ParseLogLevel(level))
	if maxSize > 0 {
		l.SetMaxSize(maxSize)
	}
}
