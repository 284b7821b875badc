package prompts

import (
	"fmt"
	"sort"
	"strings"

	"codemate/internal/agent"
)

const (
	repoPlaceholder     = "{{CURRENT_REPO}}"
	toolListPlaceholder = "{{TOOL_LIST}}"
)

// BuildSystemPrompt 渲染系统提示词：当前仓库 + 工具说明。每轮重新构建，switch_repo 之后立即生效。
func BuildSystemPrompt(currentRepo string, specs []agent.ToolSpec) string {
	repo := strings.TrimSpace(currentRepo)
	if repo == "" {
		repo = "(none selected)"
	}
	system := strings.ReplaceAll(builtinPrompts[PromptSystem], repoPlaceholder, repo)
	if len(specs) == 0 {
		return system
	}
	docs := strings.ReplaceAll(builtinPrompts[PromptToolDocs], toolListPlaceholder, RenderToolList(specs))
	return system + "\n\n" + docs
}

// RenderToolList 以 "N) name(args) - description" 的形式列出工具，可选参数带默认值标记。
func RenderToolList(specs []agent.ToolSpec) string {
	lines := make([]string, 0, len(specs))
	for i, spec := range specs {
		lines = append(lines, fmt.Sprintf("%d) %s(%s) - %s", i+1, spec.Name, renderParams(spec.Parameters), spec.Description))
	}
	return strings.Join(lines, "\n")
}

func renderParams(schema map[string]any) string {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return ""
	}
	required := map[string]bool{}
	switch req := schema["required"].(type) {
	case []string:
		for _, name := range req {
			required[name] = true
		}
	case []any:
		for _, name := range req {
			if s, ok := name.(string); ok {
				required[s] = true
			}
		}
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	// 必填参数在前，其余按字母序。
	sort.Slice(names, func(i, j int) bool {
		if required[names[i]] != required[names[j]] {
			return required[names[i]]
		}
		return names[i] < names[j]
	})
	parts := make([]string, 0, len(names))
	for _, name := range names {
		if required[name] {
			parts = append(parts, name)
		} else {
			parts = append(parts, name+"?")
		}
	}
	return strings.Join(parts, ", ")
}

// RoundCapInstruction 是轮次上限时追加的总结请求。
func RoundCapInstruction() string {
	return builtinPrompts[PromptRoundCap]
}
