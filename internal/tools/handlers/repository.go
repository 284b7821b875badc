package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"codemate/internal/agent"
	"codemate/internal/tools"
)

type FileContentsHandler struct {
	Repo Repository
}

func (FileContentsHandler) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "get_file_contents",
		Description: "Read a single file of the current repository by its path relative to the repository root.",
		Parameters: objectSchema(map[string]any{
			"path": stringProp("File path, e.g. 'cmd/server/main.go'.", 1),
		}, "path"),
	}
}

func (h FileContentsHandler) Handle(ctx context.Context, raw json.RawMessage) (tools.Output, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return tools.Output{}, err
	}
	file, err := h.Repo.GetFileContents(ctx, args.Path)
	if err != nil {
		return tools.Output{}, err
	}
	return tools.Output{Payload: file}, nil
}

type ListFilesHandler struct {
	Repo Repository
}

func (ListFilesHandler) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "list_files",
		Description: "List the files and directories directly under a path. Defaults to the repository root.",
		Parameters: objectSchema(map[string]any{
			"path": stringProp("Directory path; '.' or empty for the root.", 0),
		}),
	}
}

func (h ListFilesHandler) Handle(ctx context.Context, raw json.RawMessage) (tools.Output, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return tools.Output{}, err
	}
	dir := strings.TrimSpace(args.Path)
	if dir == "" {
		dir = "."
	}
	entries, err := h.Repo.ListFiles(ctx, dir)
	if err != nil {
		return tools.Output{}, err
	}
	return tools.Output{Payload: map[string]any{"path": dir, "entries": entries}}, nil
}

type RepoInfoHandler struct {
	Repo Repository
}

func (RepoInfoHandler) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "get_repo_info",
		Description: "Get metadata of the current repository: description, default branch, language, stars.",
		Parameters:  objectSchema(map[string]any{}),
	}
}

func (h RepoInfoHandler) Handle(ctx context.Context, _ json.RawMessage) (tools.Output, error) {
	info, err := h.Repo.GetRepoInfo(ctx)
	if err != nil {
		return tools.Output{}, err
	}
	return tools.Output{Payload: info}, nil
}

type SwitchRepoHandler struct {
	Repo Repository
}

func (SwitchRepoHandler) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "switch_repo",
		Description: "Switch the repository that subsequent tool calls inspect.",
		Parameters: objectSchema(map[string]any{
			"owner": stringProp("Repository owner (user or organization).", 1),
			"repo":  stringProp("Repository name.", 1),
		}, "owner", "repo"),
	}
}

// ChangesState 标记 switch_repo 会改变同一轮中后续调用检查的仓库。
func (SwitchRepoHandler) ChangesState() bool { return true }

func (h SwitchRepoHandler) Handle(_ context.Context, raw json.RawMessage) (tools.Output, error) {
	var args struct {
		Owner string `json:"owner"`
		Repo  string `json:"repo"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return tools.Output{}, err
	}
	target := h.Repo.SwitchRepo(args.Owner, args.Repo)
	return tools.Output{Payload: map[string]any{
		"message":  fmt.Sprintf("Switched to repository: %s", target),
		"new_repo": target.String(),
	}}, nil
}

type ListAllFilesHandler struct {
	Repo Repository
}

func (ListAllFilesHandler) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "list_all_files",
		Description: "List every file path in the current repository (recursive).",
		Parameters:  objectSchema(map[string]any{}),
	}
}

func (h ListAllFilesHandler) Handle(ctx context.Context, _ json.RawMessage) (tools.Output, error) {
	files, truncated, err := h.Repo.ListAllFiles(ctx)
	if err != nil {
		return tools.Output{}, err
	}
	if files == nil {
		files = []string{}
	}
	payload := map[string]any{
		"repo":  h.Repo.CurrentRepo().String(),
		"count": len(files),
		"files": files,
	}
	if truncated {
		payload["truncated"] = true
	}
	return tools.Output{Payload: payload}, nil
}
