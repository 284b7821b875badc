package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DefaultURL   = "https://api.groq.com/openai/v1"
	DefaultModel = "llama-3.3-70b-versatile"

	FallbackEmpty = "empty"
	FallbackNever = "never"
)

// Config 是 ~/.codemate/config.toml 的完整结构。
type Config struct {
	Provider string       `toml:"provider"`
	URL      string       `toml:"url"`
	Token    string       `toml:"token"`
	Model    string       `toml:"model"`
	LogLevel string       `toml:"log_level,omitempty"`
	GitHub   GitHubConfig `toml:"github"`
	Engine   EngineConfig `toml:"engine"`
	Retry    RetryConfig  `toml:"retry"`
	Source   string       `toml:"-"`
}

// GitHubConfig 描述只读仓库访问参数。
type GitHubConfig struct {
	Token   string `toml:"token"`
	Owner   string `toml:"owner"`
	Repo    string `toml:"repo"`
	Branch  string `toml:"branch"`
	BaseURL string `toml:"base_url,omitempty"`
}

// EngineConfig 控制对话引擎的轮次与回退策略。
type EngineConfig struct {
	MaxToolRounds         int    `toml:"max_tool_rounds"`
	ParallelTools         bool   `toml:"parallel_tools"`
	Fallback              string `toml:"fallback"`
	FallbackMinText       int    `toml:"fallback_min_text"`
	MaxToolOutputBytes    int    `toml:"max_tool_output_bytes"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// RetryConfig 控制传输层的退避策略，单位毫秒。
type RetryConfig struct {
	MaxAttempts    int   `toml:"max_attempts"`
	BaseDelayMS    int64 `toml:"base_delay_ms"`
	MaxDelayMS     int64 `toml:"max_delay_ms"`
	MaxTotalWaitMS int64 `toml:"max_total_wait_ms"`
	JitterMS       int64 `toml:"jitter_ms"`
}

func Default() Config {
	return Config{
		Provider: ProviderOpenAI,
		URL:      DefaultURL,
		Model:    DefaultModel,
		Engine: EngineConfig{
			MaxToolRounds:         8,
			ParallelTools:         true,
			Fallback:              FallbackEmpty,
			FallbackMinText:       1,
			MaxToolOutputBytes:    4000,
			RequestTimeoutSeconds: 120,
		},
		Retry: RetryConfig{
			MaxAttempts:    6,
			BaseDelayMS:    1000,
			MaxDelayMS:     30000,
			MaxTotalWaitMS: 90000,
			JitterMS:       500,
		},
	}
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".codemate", "config.toml")
}

// Load 读取配置文件（不存在时使用默认值），随后应用环境变量覆盖。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, errors.New("config path is empty and $HOME is not set")
	}
	cfg.Source = path

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := toml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.URL, "CODEMATE_BASE_URL")
	setFromEnv(&cfg.Model, "GROQ_MODEL")
	switch cfg.Provider {
	case ProviderAnthropic:
		setFromEnv(&cfg.URL, "ANTHROPIC_BASE_URL")
		setFromEnv(&cfg.Token, "ANTHROPIC_AUTH_TOKEN")
	default:
		setFromEnv(&cfg.Token, "OPENAI_API_KEY")
		setFromEnv(&cfg.Token, "GROQ_API_KEY")
	}
	setFromEnv(&cfg.GitHub.Token, "GITHUB_TOKEN")
	setFromEnv(&cfg.GitHub.Owner, "GITHUB_OWNER")
	setFromEnv(&cfg.GitHub.Repo, "GITHUB_REPO")
	setFromEnv(&cfg.GitHub.Branch, "REPO_BRANCH")
}

func setFromEnv(dst *string, key string) {
	if env := strings.TrimSpace(os.Getenv(key)); env != "" {
		*dst = env
	}
}

// Validate 检查启动对话所需的最小配置。
func (c Config) Validate() error {
	var problems []string
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		problems = append(problems, fmt.Sprintf("unknown provider %q", c.Provider))
	}
	if strings.TrimSpace(c.Token) == "" {
		problems = append(problems, "model token is empty (set token or GROQ_API_KEY)")
	}
	if strings.TrimSpace(c.Model) == "" {
		problems = append(problems, "model is empty")
	}
	if strings.TrimSpace(c.GitHub.Owner) == "" || strings.TrimSpace(c.GitHub.Repo) == "" {
		problems = append(problems, "github owner/repo is empty (set GITHUB_OWNER and GITHUB_REPO)")
	}
	switch c.Engine.Fallback {
	case FallbackEmpty, FallbackNever:
	default:
		problems = append(problems, fmt.Sprintf("unknown engine.fallback %q", c.Engine.Fallback))
	}
	if c.Engine.MaxToolRounds < 0 {
		problems = append(problems, "engine.max_tool_rounds must be >= 0")
	}
	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (r RetryConfig) BaseDelay() time.Duration    { return time.Duration(r.BaseDelayMS) * time.Millisecond }
func (r RetryConfig) MaxDelay() time.Duration     { return time.Duration(r.MaxDelayMS) * time.Millisecond }
func (r RetryConfig) MaxTotalWait() time.Duration { return time.Duration(r.MaxTotalWaitMS) * time.Millisecond }
func (r RetryConfig) Jitter() time.Duration       { return time.Duration(r.JitterMS) * time.Millisecond }

func (e EngineConfig) RequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutSeconds) * time.Second
}
