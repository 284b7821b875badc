package openai

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// CheckBaseURLReachable 仅做 TCP 连通性探测，不发送任何请求体。
func CheckBaseURLReachable(ctx context.Context, baseURL string) error {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil
	}

	parsed, err := url.Parse(normalizeBaseURL(raw))
	if err != nil || parsed == nil {
		return fmt.Errorf("invalid base_url %q: %w", baseURL, err)
	}
	host := parsed.Hostname()
	if parsed.Scheme == "" || host == "" {
		return fmt.Errorf("invalid base_url %q: scheme=%q host=%q", baseURL, parsed.Scheme, parsed.Host)
	}

	port := parsed.Port()
	if port == "" {
		switch strings.ToLower(parsed.Scheme) {
		case "http":
			port = "80"
		case "https":
			port = "443"
		default:
			return fmt.Errorf("unsupported base_url scheme %q (base_url=%q)", parsed.Scheme, baseURL)
		}
	}

	addr := net.JoinHostPort(host, port)
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("cannot connect to %s (base_url=%q): %w", addr, baseURL, err)
	}
	_ = conn.Close()
	return nil
}
