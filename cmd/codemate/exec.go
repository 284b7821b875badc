package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"codemate/internal/events"
	"codemate/internal/repl"
)

const defaultExecWidth = 100

type execOptions struct {
	jsonl           bool
	lastMessageFile string
	width           int
}

// runExec 非交互地执行一个回合，结果写到 stdout。
func runExec(root rootArgs, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var cfgPath, model, repo string
	var overrides overrideFlags
	var opts execOptions
	fs.StringVar(&cfgPath, "config", "", "Path to config file (default ~/.codemate/config.toml)")
	fs.Var(&overrides, "c", "Override config value key=value (repeatable)")
	fs.BoolVar(&opts.jsonl, "json", false, "Print events as JSON lines")
	fs.StringVar(&opts.lastMessageFile, "output-last-message", "", "Write the final answer to this file")
	fs.StringVar(&model, "model", "", "Override the model")
	fs.StringVar(&repo, "repo", "", "Override the repository (owner/repo)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	prompt, err := readPrompt(fs.Args(), stdin)
	if err != nil {
		return err
	}
	if model != "" {
		overrides.add("model", model)
	}
	if repo != "" {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok || owner == "" || name == "" {
			return fmt.Errorf("--repo must be owner/repo, got %q", repo)
		}
		overrides.add("github.owner", owner)
		overrides.add("github.repo", name)
	}

	cfg, err := loadConfig(root, cfgPath, overrides)
	if err != nil {
		return err
	}
	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts.width = terminalWidth()
	return executeTurn(ctx, repl.NewGateway(rt.engine), prompt, opts, stdout)
}

// readPrompt 拼接位置参数；为空或为 "-" 时从 stdin 读取。
func readPrompt(args []string, stdin io.Reader) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" || prompt == "-" {
		if stdin == nil {
			return "", errors.New("no prompt provided")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read prompt from stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return "", errors.New("no prompt provided")
	}
	return prompt, nil
}

func executeTurn(ctx context.Context, gw *repl.Gateway, prompt string, opts execOptions, out io.Writer) error {
	ch, err := gw.SubmitUserInput(ctx, prompt)
	if err != nil {
		return err
	}

	var handle func(events.Event)
	var renderer *repl.Renderer
	if opts.jsonl {
		w := repl.NewJSONLWriter(out)
		handle = func(evt events.Event) {
			if err := w.Handle(evt); err != nil {
				log.Warnf("write event: %v", err)
			}
		}
	} else {
		renderer = repl.NewRenderer(repl.RendererOptions{Width: opts.width, Writer: out})
		renderer.AppendUser(prompt)
		handle = renderer.Handle
	}

	final, ok := repl.Drain(ch, handle)
	if !ok {
		if renderer != nil {
			renderer.Interrupted()
		}
		return errors.New("turn interrupted")
	}
	if opts.lastMessageFile != "" {
		if err := os.WriteFile(opts.lastMessageFile, []byte(final.Text), 0o644); err != nil {
			return fmt.Errorf("write last message: %w", err)
		}
	}
	if final.Final != nil && final.Final.Reason == events.ReasonTransportFailure {
		return errors.New(final.Text)
	}
	return nil
}

func terminalWidth() int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("COLUMNS"))); err == nil && n > 0 {
		return n
	}
	return defaultExecWidth
}
