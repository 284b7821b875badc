package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPingRoundTrip(t *testing.T) {
	for _, key := range []string{"OPENAI_API_KEY", "GROQ_API_KEY", "GROQ_MODEL", "CODEMATE_BASE_URL"} {
		t.Setenv(key, "")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := strings.TrimSpace(r.Header.Get("Authorization")); got != "Bearer test-key" {
			http.Error(w, "missing auth", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":0,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"pong","refusal":""}}]}`))
	}))
	t.Cleanup(srv.Close)

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, []byte(`
provider = "openai"
url = "`+srv.URL+`"
token = "test-key"
model = "m"
`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	if err := runPing(rootArgs{}, []string{"--config", cfgPath}, &out); err != nil {
		t.Fatalf("runPing: %v", err)
	}
	if !strings.Contains(out.String(), "ok: pong") {
		t.Fatalf("ping output = %q, want it to include %q", out.String(), "ok: pong")
	}
}

func TestPingRequiresToken(t *testing.T) {
	for _, key := range []string{"OPENAI_API_KEY", "GROQ_API_KEY"} {
		t.Setenv(key, "")
	}
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, []byte("provider = \"openai\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	err := runPing(rootArgs{}, []string{"--config", cfgPath}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "token") {
		t.Fatalf("expected token error, got %v", err)
	}
}
