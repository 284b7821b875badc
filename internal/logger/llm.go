package logger

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LLMMessage 表示一次请求中的对话消息。
type LLMMessage struct {
	Role    string
	Content string
}

// LLMLogger 记录与模型端点交互的请求、重试、流分片与错误。
type LLMLogger interface {
	Request(model string, messages []LLMMessage, attempt int)
	Response(model string, content string, attempt int)
	StreamChunk(model string, chunk string, index int)
	StreamComplete(model string, attempt int)
	Retry(model string, err error, attempt int, delay time.Duration)
	Error(model string, err error, attempt int)
}

// LLMLog 是全局 LLM 日志器。
var LLMLog LLMLogger = NewLLMLogger(nil)

// SetGlobalLLMLogger 覆盖全局 LLM 日志器，nil 重置为默认实现。
func SetGlobalLLMLogger(l LLMLogger) {
	if l == nil {
		l = NewLLMLogger(nil)
	}
	LLMLog = l
}

// StdLLMLogger 基于 logrus 的实现。
type StdLLMLogger struct {
	logger *logrus.Entry
}

// NewLLMLogger 使用给定 logger（nil 时为标准 logger）构造 LLM 日志器。
func NewLLMLogger(l *Logger) *StdLLMLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &StdLLMLogger{logger: logrus.NewEntry(l).WithField("component", "llm")}
}

// NewLLMLoggerFromEntry 复用已有 entry（例如 SetupComponentFile 的返回值）。
func NewLLMLoggerFromEntry(entry *LogEntry) *StdLLMLogger {
	return &StdLLMLogger{logger: entry}
}

func (l *StdLLMLogger) Request(model string, messages []LLMMessage, attempt int) {
	l.printf(logrus.InfoLevel, "-> request attempt=%d model=%s messages=%d", attempt, model, len(messages))
	for i, msg := range messages {
		l.printf(logrus.DebugLevel, "-> message[%d] role=%s content=%s", i, msg.Role, sanitize(msg.Content))
	}
}

func (l *StdLLMLogger) Response(model string, content string, attempt int) {
	l.printf(logrus.InfoLevel, "<- response attempt=%d model=%s text=%s", attempt, model, sanitize(content))
}

func (l *StdLLMLogger) StreamChunk(model string, chunk string, index int) {
	l.printf(logrus.DebugLevel, "<- chunk model=%s seq=%d text=%s", model, index, sanitize(chunk))
}

func (l *StdLLMLogger) StreamComplete(model string, attempt int) {
	l.printf(logrus.InfoLevel, "<- stream completed attempt=%d model=%s", attempt, model)
}

func (l *StdLLMLogger) Retry(model string, err error, attempt int, delay time.Duration) {
	l.printf(logrus.WarnLevel, "~~ retry attempt=%d model=%s delay=%s err=%v", attempt, model, delay, err)
}

func (l *StdLLMLogger) Error(model string, err error, attempt int) {
	l.printf(logrus.ErrorLevel, "!! error attempt=%d model=%s err=%v", attempt, model, err)
}

// NoopLLMLogger 丢弃所有日志。
type NoopLLMLogger struct{}

func (NoopLLMLogger) Request(string, []LLMMessage, int)           {}
func (NoopLLMLogger) Response(string, string, int)                {}
func (NoopLLMLogger) StreamChunk(string, string, int)             {}
func (NoopLLMLogger) StreamComplete(string, int)                  {}
func (NoopLLMLogger) Retry(string, error, int, time.Duration)     {}
func (NoopLLMLogger) Error(string, error, int)                    {}

func (l *StdLLMLogger) printf(level logrus.Level, format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	if !l.logger.Logger.IsLevelEnabled(level) {
		return
	}
	entry := l.logger
	if caller := findCaller(); caller != "" {
		entry = entry.WithField("caller", caller)
	}
	entry.Log(level, fmt.Sprintf(format, args...))
}

func sanitize(text string) string {
	text = strings.ReplaceAll(text, "\n", `\n`)
	return strings.ReplaceAll(text, "\r", `\r`)
}

// findCaller 跳过 llm.go 自身的栈帧。
func findCaller() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.File != "" && !strings.HasSuffix(frame.File, "/logger/llm.go") {
			return fmt.Sprintf("%s:%d", relativeSource(frame.File), frame.Line)
		}
		if !more {
			return ""
		}
	}
}
