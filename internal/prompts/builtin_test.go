package prompts

import (
	"strings"
	"testing"
)

func TestBuiltinPromptsLoaded(t *testing.T) {
	for _, name := range []Name{PromptSystem, PromptToolDocs, PromptRoundCap} {
		text, ok := Builtin(name)
		if !ok {
			t.Fatalf("missing builtin prompt %q", name)
		}
		if strings.TrimSpace(text) == "" {
			t.Fatalf("empty builtin prompt %q", name)
		}
	}
	if system, _ := Builtin(PromptSystem); !strings.Contains(system, repoPlaceholder) {
		t.Fatalf("system prompt should carry the repository placeholder")
	}
}

func TestBuiltinsReturnsCopy(t *testing.T) {
	all := Builtins()
	delete(all, PromptSystem)
	if _, ok := builtinPrompts[PromptSystem]; !ok {
		t.Fatalf("modifying Builtins result should not affect internal map")
	}
}
