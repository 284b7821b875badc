package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"codemate/internal/github"
	"codemate/internal/tools"
)

// Repository 是工具依赖的只读仓库客户端，由 *github.Client 实现。
type Repository interface {
	CurrentRepo() github.Target
	SwitchRepo(owner, repo string) github.Target
	GetRepoInfo(ctx context.Context) (github.RepoInfo, error)
	GetFileContents(ctx context.Context, path string) (github.FileContent, error)
	ListFiles(ctx context.Context, path string) ([]github.Entry, error)
	ListAllFiles(ctx context.Context) ([]string, bool, error)
	SearchCode(ctx context.Context, query, path string) (github.SearchResult, error)
}

// Default returns the built-in repository tools.
func Default(repo Repository) []tools.Handler {
	return []tools.Handler{
		SearchCodeHandler{Repo: repo},
		FileContentsHandler{Repo: repo},
		ListFilesHandler{Repo: repo},
		RepoInfoHandler{Repo: repo},
		SwitchRepoHandler{Repo: repo},
		ListAllFilesHandler{Repo: repo},
	}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string, minLength int) map[string]any {
	prop := map[string]any{"type": "string", "description": description}
	if minLength > 0 {
		prop["minLength"] = minLength
	}
	return prop
}
