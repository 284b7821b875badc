package tools

import (
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"codemate/internal/agent"
	"codemate/internal/logger"
)

// DefaultToolsLogPath 工具调用日志的默认路径。
var DefaultToolsLogPath = filepath.Join(logger.DefaultLogDir, "tools.log")

var (
	toolsLog           = logger.Named("tools")
	toolsLogConfigured bool
	toolsLogMu         sync.Mutex
	toolsLogCloser     io.Closer
)

// SetupToolsLog 将工具日志写入独立文件，多次调用只有首次生效。
func SetupToolsLog(logPath string) (io.Closer, string, error) {
	toolsLogMu.Lock()
	defer toolsLogMu.Unlock()

	if toolsLogConfigured {
		return toolsLogCloser, logPath, nil
	}
	if logPath == "" {
		logPath = DefaultToolsLogPath
	}
	entry, closer, resolved, err := logger.SetupComponentFile("tools", logPath)
	toolsLogConfigured = true
	if err != nil {
		return nil, resolved, err
	}
	toolsLog = entry
	toolsLogCloser = closer
	return closer, resolved, nil
}

// SetToolsLogger 替换工具日志 entry，主要用于测试。
func SetToolsLogger(entry *logger.LogEntry) {
	toolsLogMu.Lock()
	defer toolsLogMu.Unlock()
	if entry == nil {
		entry = logger.Named("tools")
	}
	toolsLog = entry
	toolsLogConfigured = true
}

// CloseToolsLog 关闭工具日志文件句柄。
func CloseToolsLog() {
	toolsLogMu.Lock()
	defer toolsLogMu.Unlock()
	if toolsLogCloser != nil {
		_ = toolsLogCloser.Close()
		toolsLogCloser = nil
	}
}

func toolsLogger() *logger.LogEntry {
	toolsLogMu.Lock()
	defer toolsLogMu.Unlock()
	return toolsLog
}

func logToolRequest(call agent.ToolCall, known bool) {
	status := "received"
	if !known {
		status = "unknown"
	}
	toolsLogger().Infof("tool_call id=%s name=%s status=%s payload=%s",
		call.ID, call.Name, status, sanitizeForLog(string(call.Arguments)))
}

func logToolResult(call agent.ToolCall, result agent.ToolResult, elapsed time.Duration) {
	status := "ok"
	if !result.Success {
		status = string(result.Class)
	}
	toolsLogger().Infof("tool_result id=%s name=%s status=%s truncated=%t duration_ms=%d error=%s bytes=%d",
		call.ID, call.Name, status, result.Truncated, elapsed.Milliseconds(), sanitizeForLog(result.Error), len(result.Payload))
}

func sanitizeForLog(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "(empty)"
	}
	text = strings.ReplaceAll(text, "\n", `\n`)
	return strings.ReplaceAll(text, "\r", `\r`)
}
