package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"codemate/internal/agent"
	"codemate/internal/tools"
)

// GitHub 代码搜索不接受的字符。
var unsupportedQueryChars = regexp.MustCompile(`[^\w.\-/ ]`)

type SearchCodeHandler struct {
	Repo Repository
}

func (SearchCodeHandler) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name: "search_code",
		Description: "Search the current repository. Matches file names in the full file tree " +
			"and file contents via GitHub code search. Use plain identifiers or file names as the query.",
		Parameters: objectSchema(map[string]any{
			"query": stringProp("Identifier, keyword or file name to search for.", 1),
			"path":  stringProp("Optional directory to restrict the search to, e.g. 'src/api'.", 0),
		}, "query"),
	}
}

func (h SearchCodeHandler) Handle(ctx context.Context, raw json.RawMessage) (tools.Output, error) {
	var args struct {
		Query string `json:"query"`
		Path  string `json:"path"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return tools.Output{}, err
	}
	query := NormalizeQuery(args.Query)
	if query == "" {
		return tools.Output{}, errors.New("query is empty after removing unsupported characters")
	}

	var notes []string
	if query != args.Query {
		notes = append(notes, fmt.Sprintf("Normalized query from %q to %q", args.Query, query))
	}
	notes = append(notes, "Strategy: filename match + content search")

	res, err := h.Repo.SearchCode(ctx, query, strings.TrimSpace(args.Path))
	if err != nil {
		return tools.Output{}, err
	}
	return tools.Output{Payload: res, Notes: notes}, nil
}

// NormalizeQuery 去掉反引号、统一路径分隔符、移除搜索不支持的标点并合并空白。
func NormalizeQuery(q string) string {
	q = strings.ReplaceAll(q, "`", "")
	q = strings.ReplaceAll(q, `\`, "/")
	q = unsupportedQueryChars.ReplaceAllString(q, " ")
	return strings.Join(strings.Fields(q), " ")
}
