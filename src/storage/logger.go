package storage

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// LogLevel 定义日志级别类型
type LogLevel int

// 日志级别常量定义
const (
	DEBUG   LogLevel = iota // 调试信息
	INFO                    // 普通信息
	WARNING                 // 警告信息
	ERROR                   // 错误信息
	FATAL                   // 致命错误
)

// Logger 日志记录器结构体
type Logger struct {
	filename    string
	maxBytes    int64         // 单个日志文件的大小上限，0表示不轮转
	file        *os.File      // 日志文件句柄
	mu          sync.Mutex    // 互斥锁，保证并发安全
	subscribers []chan string // 订阅者通道列表
}

// NewLogger 创建新的日志记录器
// maxBytes 超过该大小时在写入前轮转日志文件
func NewLogger(filename string, maxBytes int64) (*Logger, error) {
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &Logger{
		filename: filename,
		maxBytes: maxBytes,
		file:     file,
	}, nil
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Log 记录日志方法
func (l *Logger) Log(level LogLevel, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rotateIfNeeded()

	// 格式化日志条目: [时间] 级别: 消息
	entry := fmt.Sprintf("[%s] %s: %s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		level.String(),
		message)

	l.file.WriteString(entry)

	// 通知所有订阅者
	for _, ch := range l.subscribers {
		select {
		case ch <- entry: // 尝试发送日志条目
		default: // 如果通道已满则跳过
		}
	}
}

// rotateIfNeeded 超过大小上限时轮转日志，调用方需持有锁
func (l *Logger) rotateIfNeeded() {
	if l.maxBytes <= 0 {
		return
	}

	info, err := l.file.Stat()
	if err != nil || info.Size() < l.maxBytes {
		return
	}

	l.file.Close()
	os.Rename(l.filename, fmt.Sprintf("%s.%s", l.filename, time.Now().Format("20060102150405")))

	file, err := os.OpenFile(l.filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	l.file = file
}

// Subscribe 订阅日志消息
// 返回只读通道，用于接收日志消息
func (l *Logger) Subscribe() <-chan string {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 创建带缓冲的通道(容量100)
	ch := make(chan string, 100)
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// String 实现LogLevel的String方法
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// 以下是快捷日志方法
func (l *Logger) Debug(msg string)   { l.Log(DEBUG, msg) }   // 记录调试信息
func (l *Logger) Info(msg string)    { l.Log(INFO, msg) }    // 记录普通信息
func (l *Logger) Warning(msg string) { l.Log(WARNING, msg) } // 记录警告信息
func (l *Logger) Error(msg string)   { l.Log(ERROR, msg) }   // 记录错误信息
func (l *Logger) Fatal(msg string)   { l.Log(FATAL, msg) }   // 记录致命错误
