package execution

import "fmt"

// 回合失败时记录的阶段。
const (
	stageStream   = "stream"
	stageFallback = "fallback"
	stageRoundCap = "round_cap"
)

// stageError 为错误附带稳定的阶段标识，便于在错误日志中定位失败环节。
type stageError struct {
	Stage string
	Err   error
}

func (e stageError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%v", e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e stageError) Unwrap() error { return e.Err }
