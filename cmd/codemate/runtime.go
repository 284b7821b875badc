package main

import (
	"fmt"
	"strings"
	"time"

	"codemate/internal/agent"
	anthropicmodel "codemate/internal/agent/anthropic"
	openaimodel "codemate/internal/agent/openai"
	"codemate/internal/config"
	"codemate/internal/execution"
	"codemate/internal/github"
	"codemate/internal/prompts"
	"codemate/internal/tools"
	"codemate/internal/tools/handlers"
	"codemate/internal/transport"
)

// runtime 汇总一次进程内共享的组件。
type runtime struct {
	cfg       config.Config
	repo      *github.Client
	catalog   *tools.Catalog
	executor  *tools.Executor
	client    agent.ModelClient
	transport *transport.Transport
	engine    *execution.Engine
}

// loadConfig 读取配置文件并依次应用根参数与子命令的 -c 覆盖。
func loadConfig(root rootArgs, cfgPath string, overrides []string) (config.Config, error) {
	if strings.TrimSpace(cfgPath) == "" {
		cfgPath = root.cfgPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	cfg = config.ApplyKVOverrides(cfg, prependOverrides(root.overrides, overrides))
	if err := setLogLevel(cfg.LogLevel); err != nil {
		log.Warnf("ignoring log_level %q: %v", cfg.LogLevel, err)
	}
	return cfg, nil
}

func buildModelClient(cfg config.Config) (agent.ModelClient, error) {
	timeout := cfg.Engine.RequestTimeout()
	switch cfg.Provider {
	case config.ProviderAnthropic:
		client, err := anthropicmodel.New(anthropicmodel.Options{
			Token:          cfg.Token,
			BaseURL:        cfg.URL,
			Model:          cfg.Model,
			RequestTimeout: timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init anthropic client: %w", err)
		}
		return client, nil
	case config.ProviderOpenAI, "":
		client, err := openaimodel.New(openaimodel.Options{
			APIKey:         cfg.Token,
			BaseURL:        cfg.URL,
			Model:          cfg.Model,
			RequestTimeout: timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init openai client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func buildTransport(cfg config.Config, client agent.ModelClient) *transport.Transport {
	return transport.New(client, transport.Options{
		Policy: transport.PolicyFromConfig(cfg.Retry),
		OnRetry: func(attempt int, delay time.Duration, err error) {
			log.Warnf("model request attempt %d failed, retrying in %s: %v", attempt, delay.Round(time.Millisecond), err)
		},
	})
}

// buildCatalog 构造工具目录，repo 为 nil 时只能用于列出声明。
func buildCatalog(repo handlers.Repository) (*tools.Catalog, error) {
	catalog, err := tools.NewCatalog(handlers.Default(repo)...)
	if err != nil {
		return nil, fmt.Errorf("build tool catalog: %w", err)
	}
	return catalog, nil
}

func buildRuntime(cfg config.Config) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	repo, err := github.New(github.Options{
		Token:   cfg.GitHub.Token,
		Owner:   cfg.GitHub.Owner,
		Repo:    cfg.GitHub.Repo,
		Branch:  cfg.GitHub.Branch,
		BaseURL: cfg.GitHub.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("init github client: %w", err)
	}
	catalog, err := buildCatalog(repo)
	if err != nil {
		return nil, err
	}
	executor := tools.NewExecutor(catalog, tools.ExecutorOptions{MaxOutputBytes: cfg.Engine.MaxToolOutputBytes})

	client, err := buildModelClient(cfg)
	if err != nil {
		return nil, err
	}
	tr := buildTransport(cfg, client)

	engine, err := execution.NewEngine(execution.Options{
		Transport:       tr,
		Tools:           executor,
		Catalog:         catalog,
		Model:           cfg.Model,
		MaxToolRounds:   cfg.Engine.MaxToolRounds,
		ParallelTools:   cfg.Engine.ParallelTools,
		Fallback:        cfg.Engine.Fallback,
		FallbackMinText: cfg.Engine.FallbackMinText,
		SystemPrompt: func() string {
			return prompts.BuildSystemPrompt(repo.CurrentRepo().String(), catalog.Specs())
		},
	})
	if err != nil {
		return nil, err
	}
	log.Infof("runtime ready provider=%s model=%s repo=%s tools=%d max_tool_rounds=%d",
		cfg.Provider, cfg.Model, repo.CurrentRepo(), len(catalog.Names()), cfg.Engine.MaxToolRounds)
	return &runtime{
		cfg:       cfg,
		repo:      repo,
		catalog:   catalog,
		executor:  executor,
		client:    client,
		transport: tr,
		engine:    engine,
	}, nil
}
