package execution

import (
	"io"
	"path/filepath"
	"sync"

	"codemate/internal/logger"
)

// log 复用全局 logger。
var log = logger.Named("engine")

// errorLog 记录回合失败的阶段与上下文。
var errorLog = logger.Named("error")

// DefaultLLMLogPath 模型请求日志的默认路径。
var DefaultLLMLogPath = filepath.Join(logger.DefaultLogDir, "llm.log")

var (
	llmLogMu     sync.Mutex
	llmLogCloser io.Closer
)

// SetupLLMLog 将模型请求、重试与流分片日志写入独立文件并设为全局 LLM 日志器。
func SetupLLMLog(path string) (io.Closer, string, error) {
	llmLogMu.Lock()
	defer llmLogMu.Unlock()
	if llmLogCloser != nil {
		return llmLogCloser, path, nil
	}
	if path == "" {
		path = DefaultLLMLogPath
	}
	entry, closer, resolved, err := logger.SetupComponentFile("llm", path)
	if err != nil {
		return nil, resolved, err
	}
	logger.SetGlobalLLMLogger(logger.NewLLMLoggerFromEntry(entry))
	llmLogCloser = closer
	return closer, resolved, nil
}

// CloseLLMLog 关闭模型日志文件并恢复默认 LLM 日志器。
func CloseLLMLog() {
	llmLogMu.Lock()
	defer llmLogMu.Unlock()
	if llmLogCloser != nil {
		_ = llmLogCloser.Close()
		llmLogCloser = nil
	}
	logger.SetGlobalLLMLogger(nil)
}
