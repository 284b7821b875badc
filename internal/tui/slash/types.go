package slash

// Command 表示内置斜杠命令。
type Command string

const (
	CommandHelp  Command = "help"
	CommandRepo  Command = "repo"
	CommandTools Command = "tools"
	CommandCopy  Command = "copy"
	CommandNew   Command = "new"
	CommandClear Command = "clear"
	CommandQuit  Command = "quit"
	CommandExit  Command = "exit"
)

// Item 是弹窗中的一行。
type Item struct {
	Command     Command
	Usage       string
	Description string
}

// Token 返回无前导斜杠的匹配键。
func (i Item) Token() string {
	return string(i.Command)
}

// DisplayName 返回带斜杠的展示名。
func (i Item) DisplayName() string {
	if i.Command == "" {
		return ""
	}
	return "/" + string(i.Command)
}

// Builtins 返回内置命令，顺序即弹窗默认顺序。
func Builtins() []Item {
	return []Item{
		{Command: CommandHelp, Description: "show commands and key bindings"},
		{Command: CommandRepo, Usage: "[owner/repo]", Description: "show or switch the current repository"},
		{Command: CommandTools, Description: "list the repository tools the model can call"},
		{Command: CommandCopy, Description: "copy the last answer to the clipboard"},
		{Command: CommandNew, Description: "start a new conversation"},
		{Command: CommandClear, Description: "clear the transcript and history"},
		{Command: CommandQuit, Description: "exit codemate"},
		{Command: CommandExit, Description: "exit codemate"},
	}
}
