package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"codemate/internal/agent"
	openaimodel "codemate/internal/agent/openai"
	"codemate/internal/config"
)

// runPing 用一次非流式请求检查模型端点与凭证。
func runPing(root rootArgs, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ping", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var cfgPath, model, baseURL, apiKey string
	var overrides overrideFlags
	var timeout time.Duration
	fs.StringVar(&cfgPath, "config", "", "Path to config file (default ~/.codemate/config.toml)")
	fs.Var(&overrides, "c", "Override config value key=value (repeatable)")
	fs.StringVar(&model, "model", "", "Override the model")
	fs.StringVar(&baseURL, "base-url", "", "Override the model base URL")
	fs.StringVar(&apiKey, "api-key", "", "Override the model token")
	fs.DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(root, cfgPath, overrides)
	if err != nil {
		return err
	}
	if model != "" {
		cfg.Model = model
	}
	if baseURL != "" {
		cfg.URL = baseURL
	}
	if apiKey != "" {
		cfg.Token = apiKey
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return errors.New("model token is empty (set token or GROQ_API_KEY)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if cfg.Provider == config.ProviderOpenAI || cfg.Provider == "" {
		if err := openaimodel.CheckBaseURLReachable(ctx, cfg.URL); err != nil {
			return err
		}
	}
	client, err := buildModelClient(cfg)
	if err != nil {
		return err
	}
	resp, err := client.Complete(ctx, agent.Prompt{
		Model:    cfg.Model,
		Messages: []agent.Message{agent.UserMessage("Reply with the single word: pong")},
	})
	if err != nil {
		return fmt.Errorf("ping %s: %w", cfg.Model, err)
	}
	fmt.Fprintf(out, "ok: %s\n", strings.TrimSpace(resp.Text))
	return nil
}
