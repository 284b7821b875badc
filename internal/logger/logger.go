// Package logger 是 codemate 的 logrus 封装：主日志写 logs/codemate.log，
// tools/llm/eq 等组件各写一个文件，统一使用 LineFormatter。
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger/LogEntry/Fields 暴露底层类型，调用方无需直接引入 logrus。
type Logger = logrus.Logger
type LogEntry = logrus.Entry
type Fields = logrus.Fields

const (
	DefaultLogDir  = "logs"
	DefaultLogPath = DefaultLogDir + "/codemate.log"
)

// 这些字段单独排在行首，其余字段按键名排序追加在消息之后。
const (
	fieldComponent = "component"
	fieldCaller    = "caller"
	fieldType      = "type"
	fieldTurn      = "turn_id"
)

// secretKeys 中的片段出现在字段名里时，值替换为 redacted。
var secretKeys = []string{"token", "api_key", "apikey", "authorization", "secret", "password"}

const redacted = "***"

// Configure 让标准 logger 报告调用位置并使用 LineFormatter。
func Configure() {
	std := logrus.StandardLogger()
	std.SetReportCaller(true)
	std.SetFormatter(LineFormatter{})
}

// SetLevel 设置全局级别，空串保持不变。
func SetLevel(level string) error {
	if strings.TrimSpace(level) == "" {
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logrus.SetLevel(lvl)
	return nil
}

// SetupFile 把标准 logger 的输出改写到 logPath，空串使用 DefaultLogPath。
func SetupFile(logPath string) (io.Closer, string, error) {
	f, resolved, err := openLogFile(logPath)
	if err != nil {
		return nil, "", err
	}
	logrus.SetOutput(f)
	return f, resolved, nil
}

// SetupComponentFile 为组件打开独立日志文件。
func SetupComponentFile(component, logPath string) (*LogEntry, io.Closer, string, error) {
	f, resolved, err := openLogFile(logPath)
	if err != nil {
		return nil, nil, "", err
	}
	return NewComponent(component, f), f, resolved, nil
}

// NewComponent 构造写入 w 的组件 logger。
func NewComponent(component string, w io.Writer) *LogEntry {
	l := logrus.New()
	l.SetReportCaller(true)
	l.SetFormatter(LineFormatter{})
	l.SetOutput(w)
	return withComponent(logrus.NewEntry(l), component)
}

// Named 返回挂在标准 logger 上的组件入口。
func Named(component string) *LogEntry {
	return withComponent(logrus.NewEntry(logrus.StandardLogger()), component)
}

func withComponent(entry *LogEntry, component string) *LogEntry {
	if component == "" {
		return entry
	}
	return entry.WithField(fieldComponent, component)
}

// Warnf 写标准 logger，用于组件日志尚未就绪时。
func Warnf(format string, args ...any) {
	logrus.Warnf(format, args...)
}

// LineFormatter 每条日志一行：
//
//	caller [time] [LEVEL] [component] [type=..] [turn=..] message k=v ...
type LineFormatter struct{}

func (LineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry == nil {
		return nil, nil
	}
	var b strings.Builder
	if caller := callerOf(entry); caller != "" {
		b.WriteString(caller)
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "[%s] [%s]", entry.Time.UTC().Format(time.RFC3339Nano), strings.ToUpper(entry.Level.String()))
	if component, ok := entry.Data[fieldComponent].(string); ok && component != "" {
		fmt.Fprintf(&b, " [%s]", component)
	}
	if typ, ok := entry.Data[fieldType]; ok {
		fmt.Fprintf(&b, " [type=%v]", typ)
	}
	if turn, ok := entry.Data[fieldTurn]; ok && fmt.Sprint(turn) != "" {
		fmt.Fprintf(&b, " [turn=%v]", turn)
	}
	b.WriteByte(' ')
	b.WriteString(entry.Message)
	if rest := trailingFields(entry.Data); rest != "" {
		b.WriteByte(' ')
		b.WriteString(rest)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func callerOf(entry *logrus.Entry) string {
	if caller, ok := entry.Data[fieldCaller].(string); ok && caller != "" {
		return caller
	}
	if entry.HasCaller() && entry.Caller != nil {
		return fmt.Sprintf("%s:%d", relativeSource(entry.Caller.File), entry.Caller.Line)
	}
	return ""
}

func trailingFields(data logrus.Fields) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		switch k {
		case fieldComponent, fieldCaller, fieldType, fieldTurn:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v := data[k]
		if isSecretKey(k) {
			v = redacted
		}
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(pairs, " ")
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

// relativeSource 把绝对路径截成 internal/... 或 cmd/... 形式。
func relativeSource(file string) string {
	file = filepath.ToSlash(file)
	for _, marker := range []string{"/internal/", "/cmd/"} {
		if idx := strings.LastIndex(file, marker); idx != -1 {
			return file[idx+1:]
		}
	}
	return filepath.Base(file)
}

func openLogFile(logPath string) (*os.File, string, error) {
	if logPath == "" {
		logPath = DefaultLogPath
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, "", err
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, "", err
	}
	return f, logPath, nil
}
