// Command codemate 是一个只读的代码仓库问答助手：模型通过 GitHub 工具查看仓库后回答问题。
package main

import (
	"fmt"
	"io"
	"os"

	"codemate/internal/events"
	"codemate/internal/execution"
	"codemate/internal/logger"
	"codemate/internal/tools"
)

var log = logger.Named("cli")

func main() {
	logger.Configure()
	closers := setupLogs()
	code := run(os.Args[1:])
	for _, c := range closers {
		_ = c.Close()
	}
	os.Exit(code)
}

// setupLogs 打开主日志与各组件日志，失败时只告警，不影响运行。
func setupLogs() []io.Closer {
	var closers []io.Closer
	if f, _, err := logger.SetupFile(logger.DefaultLogPath); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to initialize log file: %v\n", err)
	} else {
		closers = append(closers, f)
	}
	if c, _, err := tools.SetupToolsLog(tools.DefaultToolsLogPath); err != nil {
		log.Warnf("failed to initialize tools log (%s): %v", tools.DefaultToolsLogPath, err)
	} else if c != nil {
		closers = append(closers, c)
	}
	if c, err := events.SetupEventLog(events.DefaultEQLogPath); err != nil {
		log.Warnf("failed to initialize event log (%s): %v", events.DefaultEQLogPath, err)
	} else if c != nil {
		closers = append(closers, c)
	}
	if c, _, err := execution.SetupLLMLog(execution.DefaultLLMLogPath); err != nil {
		log.Warnf("failed to initialize llm log (%s): %v", execution.DefaultLLMLogPath, err)
	} else if c != nil {
		closers = append(closers, c)
	}
	return closers
}

func run(args []string) int {
	root, rest, err := parseRootArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "codemate: %v\n", err)
		return 2
	}
	cmd := "chat"
	if len(rest) > 0 {
		switch rest[0] {
		case "chat", "exec", "ping", "tools":
			cmd, rest = rest[0], rest[1:]
		case "help", "-h", "--help":
			printUsage(os.Stdout)
			return 0
		}
	}

	switch cmd {
	case "exec":
		err = runExec(root, rest, os.Stdin, os.Stdout)
	case "ping":
		err = runPing(root, rest, os.Stdout)
	case "tools":
		err = runTools(os.Stdout)
	default:
		err = runChat(root, rest)
	}
	if err != nil {
		log.WithError(err).Errorf("%s failed", cmd)
		fmt.Fprintf(os.Stderr, "codemate %s: %v\n", cmd, err)
		return 1
	}
	return 0
}

func setLogLevel(level string) error {
	return logger.SetLevel(level)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: codemate [-c key=value]... [--config path] [command] [args]

Commands:
  chat [prompt]            interactive chat (default)
  exec [--json] <prompt>   run one turn and print the answer ("-" reads stdin)
  ping                     check the model endpoint with a single request
  tools                    print the tool catalog as JSON

Examples:
  codemate -c github.owner=acme -c github.repo=widgets
  codemate exec --json "where is the HTTP server started?"
`)
}
