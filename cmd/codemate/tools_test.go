package main

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestRunToolsPrintsCatalog(t *testing.T) {
	var buf bytes.Buffer
	if err := runTools(&buf); err != nil {
		t.Fatalf("runTools: %v", err)
	}
	var specs []struct {
		Name       string         `json:"name"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal(buf.Bytes(), &specs); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	names := map[string]bool{}
	for _, s := range specs {
		names[s.Name] = true
		if s.Parameters["type"] != "object" {
			t.Fatalf("tool %s parameters must be an object schema: %v", s.Name, s.Parameters)
		}
	}
	for _, want := range []string{"search_code", "get_file_contents", "list_files", "get_repo_info", "switch_repo", "list_all_files"} {
		if !names[want] {
			t.Fatalf("missing tool %s in %v", want, names)
		}
	}
}
