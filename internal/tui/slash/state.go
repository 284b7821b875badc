package slash

import (
	"sort"
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"
)

// Options 控制弹窗高度。
type Options struct {
	MaxLines int
}

// Input 是输入框当前文本与光标位置。
type Input struct {
	Value        string
	CursorLine   int
	CursorColumn int
}

// ActionKind 描述按键处理结果。
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionClose
	ActionInsert
	ActionSubmit
	ActionError
)

// Action 汇总一次按键或提交的处理结果。
type Action struct {
	Kind         ActionKind
	Command      Command
	Args         string
	NewValue     string
	CursorColumn int
	Message      string
}

const unknownCommandMessage = "unknown command, type / to see the list"

// State 维护斜杠弹窗的过滤与选中状态。
type State struct {
	items    []Item
	matches  []match
	selected int
	open     bool
	token    tokenInfo
	rest     string
	maxLines int
}

type match struct {
	item       Item
	highlights []int
	score      int
}

type tokenInfo struct {
	found  bool
	active bool
	value  string
	end    int
	args   string
}

func NewState(opts Options) *State {
	maxLines := opts.MaxLines
	if maxLines <= 0 {
		maxLines = 8
	}
	return &State{items: Builtins(), maxLines: maxLines}
}

func (s *State) Open() bool {
	return s != nil && s.open
}

// SyncInput 根据最新输入刷新匹配列表。光标离开命令词或不在首行时关闭弹窗。
func (s *State) SyncInput(in Input) {
	if s == nil {
		return
	}
	first, rest := splitFirstLine(in.Value)
	s.token = locateToken([]rune(first), in.CursorColumn)
	s.rest = rest
	s.open = s.token.found && s.token.active && in.CursorLine == 0
	if !s.open {
		s.matches = nil
		return
	}
	s.matches = filterMatches(s.items, s.token.value)
	if s.selected >= len(s.matches) {
		s.selected = 0
	}
}

// ResolveSubmit 解析按 Enter 提交的整行输入，与弹窗状态无关。
func (s *State) ResolveSubmit(value string) Action {
	first, _ := splitFirstLine(value)
	token := locateToken([]rune(first), len([]rune(first)))
	if !token.found || token.value == "" {
		return Action{Kind: ActionNone}
	}
	for _, item := range s.items {
		if strings.EqualFold(item.Token(), token.value) {
			return Action{Kind: ActionSubmit, Command: item.Command, Args: strings.TrimSpace(token.args)}
		}
	}
	return Action{Kind: ActionError, Message: unknownCommandMessage}
}

// HandleKey 处理弹窗打开时的按键，第二个返回值表示按键是否被消费。
func (s *State) HandleKey(key string) (Action, bool) {
	if s == nil || !s.open {
		return Action{}, false
	}
	switch key {
	case "up", "ctrl+p":
		if len(s.matches) == 0 {
			return Action{Kind: ActionClose}, true
		}
		s.selected = (s.selected - 1 + len(s.matches)) % len(s.matches)
		return Action{Kind: ActionNone}, true
	case "down", "ctrl+n":
		if len(s.matches) == 0 {
			return Action{Kind: ActionClose}, true
		}
		s.selected = (s.selected + 1) % len(s.matches)
		return Action{Kind: ActionNone}, true
	case "esc":
		s.open = false
		return Action{Kind: ActionClose}, true
	case "tab":
		if len(s.matches) == 0 {
			return Action{Kind: ActionError, Message: unknownCommandMessage}, true
		}
		cmd := s.matches[s.selected].item.Command
		value := "/" + string(cmd) + " "
		if args := strings.TrimSpace(s.token.args); args != "" {
			value += args
		}
		return Action{Kind: ActionInsert, Command: cmd, NewValue: value + s.rest, CursorColumn: len([]rune(value))}, true
	case "enter":
		if len(s.matches) == 0 {
			return Action{Kind: ActionError, Message: unknownCommandMessage}, true
		}
		s.open = false
		return Action{Kind: ActionSubmit, Command: s.matches[s.selected].item.Command, Args: strings.TrimSpace(s.token.args)}, true
	default:
		return Action{}, false
	}
}

func filterMatches(items []Item, query string) []match {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		out := make([]match, 0, len(items))
		for _, item := range items {
			out = append(out, match{item: item})
		}
		return out
	}
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = strings.ToLower(item.Token())
	}
	results := fuzzy.Find(query, keys)
	out := make([]match, 0, len(results))
	for _, res := range results {
		out = append(out, match{
			item: items[res.Index],
			// DisplayName 带前导斜杠，高亮下标整体右移一位。
			highlights: shift(res.MatchedIndexes, 1),
			score:      res.Score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score == out[j].score {
			return out[i].item.Token() < out[j].item.Token()
		}
		return out[i].score > out[j].score
	})
	return out
}

func shift(indexes []int, offset int) []int {
	out := make([]int, len(indexes))
	for i, idx := range indexes {
		out[i] = idx + offset
	}
	return out
}

func splitFirstLine(value string) (string, string) {
	if idx := strings.IndexByte(value, '\n'); idx >= 0 {
		return value[:idx], value[idx:]
	}
	return value, ""
}

// locateToken 识别首行开头的 /command，命令词内再出现 / 时视为路径而非命令。
func locateToken(runes []rune, cursor int) tokenInfo {
	if len(runes) == 0 || runes[0] != '/' {
		return tokenInfo{}
	}
	end := len(runes)
	for i := 1; i < len(runes); i++ {
		if unicode.IsSpace(runes[i]) {
			end = i
			break
		}
		if runes[i] == '/' {
			return tokenInfo{}
		}
	}
	return tokenInfo{
		found:  true,
		active: cursor <= end,
		value:  string(runes[1:end]),
		end:    end,
		args:   strings.TrimLeftFunc(string(runes[end:]), unicode.IsSpace),
	}
}
