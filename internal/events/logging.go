package events

import (
	"encoding/json"
	"io"
	"strings"
	"sync"

	"codemate/internal/logger"
)

// DefaultEQLogPath 事件日志的默认路径。
const DefaultEQLogPath = "logs/eq.log"

var (
	eqLogMu     sync.Mutex
	eqLog       = logger.Named("eq")
	eqLogCloser io.Closer
)

// SetupEventLog 将事件日志写入独立文件；失败时退回全局 logger。
func SetupEventLog(path string) (io.Closer, error) {
	if path == "" {
		path = DefaultEQLogPath
	}
	entry, closer, _, err := logger.SetupComponentFile("eq", path)
	if err != nil {
		logger.Warnf("failed to set up eq log file (%s): %v", path, err)
		return nil, err
	}
	SetEventLogger(entry)
	eqLogMu.Lock()
	eqLogCloser = closer
	eqLogMu.Unlock()
	return closer, nil
}

// SetEventLogger 替换事件日志 entry，nil 恢复默认。
func SetEventLogger(entry *logger.LogEntry) {
	eqLogMu.Lock()
	defer eqLogMu.Unlock()
	if entry == nil {
		entry = logger.Named("eq")
	}
	eqLog = entry
}

// CloseEventLog 关闭事件日志文件。
func CloseEventLog() {
	eqLogMu.Lock()
	defer eqLogMu.Unlock()
	if eqLogCloser != nil {
		_ = eqLogCloser.Close()
		eqLogCloser = nil
	}
}

func eventLogger() *logger.LogEntry {
	eqLogMu.Lock()
	defer eqLogMu.Unlock()
	return eqLog
}

func logEvent(ev Event) {
	eventLogger().WithField("type", string(ev.Type)).Infof("turn=%s round=%d seq=%d payload=%s",
		ev.TurnID, ev.Round, ev.Seq, encodePayload(ev))
}

// encodePayload 以单行 JSON 记录事件载荷，省略已在前缀中出现的字段。
func encodePayload(ev Event) string {
	payload := map[string]any{}
	if ev.Text != "" {
		payload["text"] = ev.Text
	}
	if ev.Tool != nil {
		payload["tool"] = ev.Tool
	}
	if ev.Final != nil {
		payload["final"] = ev.Final
	}
	if len(payload) == 0 {
		return "{}"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "<unencodable>"
	}
	text := string(data)
	text = strings.ReplaceAll(text, "\n", `\n`)
	return strings.ReplaceAll(text, "\r", `\r`)
}
