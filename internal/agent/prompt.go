package agent

// ToolSpec 描述可供模型调用的工具，Parameters 为 JSON Schema 对象。
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Prompt 代表一次模型调用的完整请求。
// Tools 为空时模型只能输出文本。
type Prompt struct {
	Model             string
	Messages          []Message
	Tools             []ToolSpec
	ParallelToolCalls bool
}

// WithoutTools 返回去掉工具声明的副本，用于轮次上限后的总结请求。
func (p Prompt) WithoutTools() Prompt {
	p.Tools = nil
	p.ParallelToolCalls = false
	return p
}
