package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v66/github"
)

// Target 标识当前检查的仓库。Branch 为空表示使用仓库默认分支。
type Target struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch,omitempty"`
}

func (t Target) String() string {
	return t.Owner + "/" + t.Repo
}

type Options struct {
	Token      string
	Owner      string
	Repo       string
	Branch     string
	BaseURL    string
	HTTPClient *http.Client
}

// Client 是只读的 GitHub 仓库客户端，当前目标可在会话中切换。
type Client struct {
	api *gh.Client

	mu     sync.RWMutex
	target Target
	// defaultBranches 缓存 owner/repo -> 默认分支。
	defaultBranches map[string]string
}

func New(opts Options) (*Client, error) {
	owner, repo := strings.TrimSpace(opts.Owner), strings.TrimSpace(opts.Repo)
	if owner == "" || repo == "" {
		return nil, errors.New("github owner and repo are required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	api := gh.NewClient(httpClient)
	if token := strings.TrimSpace(opts.Token); token != "" {
		api = api.WithAuthToken(token)
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		u, err := url.Parse(strings.TrimRight(base, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github base_url %q: %w", base, err)
		}
		api.BaseURL = u
	}
	api.UserAgent = "codemate"

	return &Client{
		api:             api,
		target:          Target{Owner: owner, Repo: repo, Branch: strings.TrimSpace(opts.Branch)},
		defaultBranches: make(map[string]string),
	}, nil
}

// CurrentRepo 返回当前目标仓库。
func (c *Client) CurrentRepo() Target {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target
}

// SwitchRepo 切换目标仓库，分支重置为新仓库的默认分支。
func (c *Client) SwitchRepo(owner, repo string) Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = Target{Owner: strings.TrimSpace(owner), Repo: strings.TrimSpace(repo)}
	return c.target
}

// ref 返回读取内容时使用的分支，未配置时查询仓库默认分支。
func (c *Client) ref(ctx context.Context, t Target) (string, error) {
	if t.Branch != "" {
		return t.Branch, nil
	}
	key := t.String()
	c.mu.RLock()
	branch, ok := c.defaultBranches[key]
	c.mu.RUnlock()
	if ok {
		return branch, nil
	}
	info, err := c.repoInfo(ctx, t)
	if err != nil {
		return "", err
	}
	return info.DefaultBranch, nil
}

// RepoInfo 是 get_repo_info 返回的仓库元数据。
type RepoInfo struct {
	FullName      string   `json:"full_name"`
	Description   string   `json:"description,omitempty"`
	DefaultBranch string   `json:"default_branch"`
	Language      string   `json:"language,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	Stars         int      `json:"stargazers_count"`
	Forks         int      `json:"forks_count"`
	OpenIssues    int      `json:"open_issues_count"`
	HTMLURL       string   `json:"html_url"`
	Private       bool     `json:"private"`
	Archived      bool     `json:"archived"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
}

func (c *Client) GetRepoInfo(ctx context.Context) (RepoInfo, error) {
	return c.repoInfo(ctx, c.CurrentRepo())
}

// repoInfo 查询 t 的元数据并缓存其默认分支。
func (c *Client) repoInfo(ctx context.Context, t Target) (RepoInfo, error) {
	repo, _, err := c.api.Repositories.Get(ctx, t.Owner, t.Repo)
	if err != nil {
		return RepoInfo{}, wrapError(err, "get repository "+t.String())
	}
	info := RepoInfo{
		FullName:      repo.GetFullName(),
		Description:   repo.GetDescription(),
		DefaultBranch: repo.GetDefaultBranch(),
		Language:      repo.GetLanguage(),
		Topics:        repo.Topics,
		Stars:         repo.GetStargazersCount(),
		Forks:         repo.GetForksCount(),
		OpenIssues:    repo.GetOpenIssuesCount(),
		HTMLURL:       repo.GetHTMLURL(),
		Private:       repo.GetPrivate(),
		Archived:      repo.GetArchived(),
	}
	if ts := repo.GetUpdatedAt(); !ts.IsZero() {
		info.UpdatedAt = ts.Format(time.RFC3339)
	}
	if info.DefaultBranch != "" {
		c.mu.Lock()
		c.defaultBranches[t.String()] = info.DefaultBranch
		c.mu.Unlock()
	}
	return info, nil
}

// FileContent 是单个文件的解码内容。
type FileContent struct {
	Path    string `json:"path"`
	Size    int    `json:"size"`
	Content string `json:"content"`
}

func (c *Client) GetFileContents(ctx context.Context, filePath string) (FileContent, error) {
	t := c.CurrentRepo()
	ref, err := c.ref(ctx, t)
	if err != nil {
		return FileContent{}, err
	}
	filePath = cleanPath(filePath)
	file, dir, _, err := c.api.Repositories.GetContents(ctx, t.Owner, t.Repo, filePath, &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return FileContent{}, wrapError(err, "get file "+filePath)
	}
	if file == nil {
		if dir != nil {
			return FileContent{}, fmt.Errorf("path %s is a directory, use list_files instead", filePath)
		}
		return FileContent{}, fmt.Errorf("path %s is not a file", filePath)
	}
	content, err := file.GetContent()
	if err != nil {
		return FileContent{}, fmt.Errorf("decode %s: %w", filePath, err)
	}
	return FileContent{Path: file.GetPath(), Size: file.GetSize(), Content: content}, nil
}

// Entry 是目录列表中的一项。
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
	Size int    `json:"size,omitempty"`
}

func (c *Client) ListFiles(ctx context.Context, dirPath string) ([]Entry, error) {
	t := c.CurrentRepo()
	ref, err := c.ref(ctx, t)
	if err != nil {
		return nil, err
	}
	dirPath = cleanPath(dirPath)
	file, dir, _, err := c.api.Repositories.GetContents(ctx, t.Owner, t.Repo, dirPath, &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, wrapError(err, "list "+displayPath(dirPath))
	}
	if file != nil {
		return []Entry{{Name: file.GetName(), Path: file.GetPath(), Type: file.GetType(), Size: file.GetSize()}}, nil
	}
	out := make([]Entry, 0, len(dir))
	for _, item := range dir {
		out = append(out, Entry{Name: item.GetName(), Path: item.GetPath(), Type: item.GetType(), Size: item.GetSize()})
	}
	return out, nil
}

// ListAllFiles 通过递归 git tree 列出所有文件路径。truncated 表示 GitHub 截断了结果。
func (c *Client) ListAllFiles(ctx context.Context) (files []string, truncated bool, err error) {
	t := c.CurrentRepo()
	ref, err := c.ref(ctx, t)
	if err != nil {
		return nil, false, err
	}
	return c.treeFiles(ctx, t, ref)
}

func (c *Client) treeFiles(ctx context.Context, t Target, ref string) (files []string, truncated bool, err error) {
	tree, _, err := c.api.Git.GetTree(ctx, t.Owner, t.Repo, ref, true)
	if err != nil {
		return nil, false, wrapError(err, "get tree "+ref)
	}
	for _, entry := range tree.Entries {
		if entry.GetType() == "blob" {
			files = append(files, entry.GetPath())
		}
	}
	return files, tree.GetTruncated(), nil
}

// FileMatch 是一次文件名或内容搜索命中。
type FileMatch struct {
	Path string `json:"path"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SearchFilenames 在文件树中查找文件名包含 query 的文件（大小写不敏感），
// dirFilter 非空时只保留路径中包含它的文件。
func (c *Client) SearchFilenames(ctx context.Context, query, dirFilter string, limit int) ([]FileMatch, error) {
	// 同一次搜索的文件树与链接使用同一个仓库快照。
	t := c.CurrentRepo()
	ref, err := c.ref(ctx, t)
	if err != nil {
		return nil, err
	}
	files, _, err := c.treeFiles(ctx, t, ref)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	dirFilter = cleanPath(dirFilter)
	if dirFilter == "." {
		dirFilter = ""
	}

	var out []FileMatch
	for _, p := range files {
		name := path.Base(p)
		if !strings.Contains(strings.ToLower(name), needle) {
			continue
		}
		if dirFilter != "" && !strings.Contains(p, dirFilter) {
			continue
		}
		out = append(out, FileMatch{
			Path: p,
			Name: name,
			URL:  fmt.Sprintf("https://github.com/%s/blob/%s/%s", t, ref, p),
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ContentSearch 是代码内容搜索结果。
type ContentSearch struct {
	Total      int         `json:"total_count"`
	Incomplete bool        `json:"incomplete_results,omitempty"`
	Items      []FileMatch `json:"items"`
}

// SearchContent 调用 GitHub 代码搜索，限定在当前仓库（及可选路径）内。
func (c *Client) SearchContent(ctx context.Context, query, dirFilter string, limit int) (ContentSearch, error) {
	t := c.CurrentRepo()
	q := fmt.Sprintf("%s repo:%s", query, t)
	if p := cleanPath(dirFilter); p != "" && p != "." {
		q += " path:" + p
	}
	opts := &gh.SearchOptions{ListOptions: gh.ListOptions{PerPage: limit}}
	res, _, err := c.api.Search.Code(ctx, q, opts)
	if err != nil {
		return ContentSearch{}, wrapError(err, "search code")
	}
	out := ContentSearch{Total: res.GetTotal(), Incomplete: res.GetIncompleteResults()}
	for _, item := range res.CodeResults {
		out.Items = append(out.Items, FileMatch{Path: item.GetPath(), Name: item.GetName(), URL: item.GetHTMLURL()})
	}
	return out, nil
}

const (
	filenameMatchLimit = 50
	contentMatchLimit  = 20
)

// SearchResult 合并文件名匹配与内容匹配。某一路失败时记录在对应的 *Error 字段。
type SearchResult struct {
	Query           string      `json:"query"`
	Path            string      `json:"path,omitempty"`
	TotalMatches    int         `json:"total_matches"`
	FilenameMatches []FileMatch `json:"filename_matches"`
	ContentMatches  []FileMatch `json:"content_matches"`
	FilenameError   string      `json:"filename_error,omitempty"`
	ContentError    string      `json:"content_error,omitempty"`
}

// SearchCode 先按文件名匹配文件树，再调用代码搜索，两路都失败才返回错误。
func (c *Client) SearchCode(ctx context.Context, query, dirFilter string) (SearchResult, error) {
	out := SearchResult{Query: query, Path: dirFilter, FilenameMatches: []FileMatch{}, ContentMatches: []FileMatch{}}

	names, nameErr := c.SearchFilenames(ctx, query, dirFilter, filenameMatchLimit)
	if nameErr != nil {
		out.FilenameError = nameErr.Error()
	} else if names != nil {
		out.FilenameMatches = names
	}

	content, contentErr := c.SearchContent(ctx, query, dirFilter, contentMatchLimit)
	if contentErr != nil {
		out.ContentError = contentErr.Error()
	} else if content.Items != nil {
		out.ContentMatches = content.Items
	}

	if nameErr != nil && contentErr != nil {
		return SearchResult{}, fmt.Errorf("search %q: %w", query, nameErr)
	}
	out.TotalMatches = len(out.FilenameMatches) + len(out.ContentMatches)
	return out, nil
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, "/")
	if p == "" || p == "." || p == "./" {
		return ""
	}
	return path.Clean(p)
}

func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
