package config

import (
	"strconv"
	"strings"
)

// ApplyKVOverrides applies free-form -c key=value overrides.
// Nested keys use dotted names, e.g. github.repo=foo or engine.max_tool_rounds=3.
func ApplyKVOverrides(cfg Config, overrides []string) Config {
	for _, raw := range overrides {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		switch key {
		case "provider":
			cfg.Provider = val
		case "url":
			cfg.URL = val
		case "token":
			cfg.Token = val
		case "model":
			cfg.Model = val
		case "log_level":
			cfg.LogLevel = val
		case "github.token":
			cfg.GitHub.Token = val
		case "github.owner":
			cfg.GitHub.Owner = val
		case "github.repo":
			cfg.GitHub.Repo = val
		case "github.branch":
			cfg.GitHub.Branch = val
		case "github.base_url":
			cfg.GitHub.BaseURL = val
		case "engine.max_tool_rounds":
			setInt(&cfg.Engine.MaxToolRounds, val)
		case "engine.parallel_tools":
			if b, err := strconv.ParseBool(val); err == nil {
				cfg.Engine.ParallelTools = b
			}
		case "engine.fallback":
			cfg.Engine.Fallback = val
		case "engine.fallback_min_text":
			setInt(&cfg.Engine.FallbackMinText, val)
		case "engine.max_tool_output_bytes":
			setInt(&cfg.Engine.MaxToolOutputBytes, val)
		case "engine.request_timeout_seconds":
			setInt(&cfg.Engine.RequestTimeoutSeconds, val)
		case "retry.max_attempts":
			setInt(&cfg.Retry.MaxAttempts, val)
		case "retry.base_delay_ms":
			setInt64(&cfg.Retry.BaseDelayMS, val)
		case "retry.max_delay_ms":
			setInt64(&cfg.Retry.MaxDelayMS, val)
		case "retry.max_total_wait_ms":
			setInt64(&cfg.Retry.MaxTotalWaitMS, val)
		case "retry.jitter_ms":
			setInt64(&cfg.Retry.JitterMS, val)
		}
	}
	return cfg
}

func setInt(dst *int, val string) {
	if n, err := strconv.Atoi(val); err == nil {
		*dst = n
	}
}

func setInt64(dst *int64, val string) {
	if n, err := strconv.ParseInt(val, 10, 64); err == nil {
		*dst = n
	}
}
