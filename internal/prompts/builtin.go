package prompts

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed text/*
var builtinFS embed.FS

// Name 表示内置提示词的唯一标识。
type Name string

const (
	PromptSystem   Name = "system"
	PromptToolDocs Name = "tool-docs"
	PromptRoundCap Name = "round-cap"
)

var builtinFiles = map[Name]string{
	PromptSystem:   "text/system_prompt.md",
	PromptToolDocs: "text/tool_docs.md",
	PromptRoundCap: "text/round_cap_prompt.md",
}

var builtinPrompts = func() map[Name]string {
	out := make(map[Name]string, len(builtinFiles))
	for name, path := range builtinFiles {
		data, err := builtinFS.ReadFile(path)
		if err != nil {
			panic(fmt.Sprintf("load builtin prompt %q from %s: %v", name, path, err))
		}
		out[name] = strings.TrimSpace(string(data))
	}
	return out
}()

// Builtin 返回指定名称的内置提示词文本。
func Builtin(name Name) (string, bool) {
	text, ok := builtinPrompts[name]
	return text, ok
}

// Builtins 返回内置提示词的拷贝。
func Builtins() map[Name]string {
	out := make(map[Name]string, len(builtinPrompts))
	for k, v := range builtinPrompts {
		out[k] = v
	}
	return out
}
