package main

import (
	"reflect"
	"testing"
)

func TestParseRootArgsAllowsUnknownFlags(t *testing.T) {
	orig := []string{"--prompt", "测试"}
	root, rest, err := parseRootArgs(orig)
	if err != nil {
		t.Fatalf("parseRootArgs returned error: %v", err)
	}
	if len(root.overrides) != 0 || root.cfgPath != "" {
		t.Fatalf("expected empty root args, got %+v", root)
	}
	if !reflect.DeepEqual(rest, orig) {
		t.Fatalf("expected rest to preserve args %v, got %v", orig, rest)
	}
}

func TestParseRootArgsExtractsOverrides(t *testing.T) {
	args := []string{
		"-c", "github.repo=widgets",
		"-c=engine.max_tool_rounds=3",
		"--config", "/tmp/codemate.toml",
		"exec", "-c", "model=ignored-here",
	}
	root, rest, err := parseRootArgs(args)
	if err != nil {
		t.Fatalf("parseRootArgs returned error: %v", err)
	}
	expectedOverrides := []string{"github.repo=widgets", "engine.max_tool_rounds=3"}
	if !reflect.DeepEqual(root.overrides, expectedOverrides) {
		t.Fatalf("unexpected overrides: got %v, want %v", root.overrides, expectedOverrides)
	}
	if root.cfgPath != "/tmp/codemate.toml" {
		t.Fatalf("unexpected config path %q", root.cfgPath)
	}
	expectedRest := []string{"exec", "-c", "model=ignored-here"}
	if !reflect.DeepEqual(rest, expectedRest) {
		t.Fatalf("unexpected rest args: got %v, want %v", rest, expectedRest)
	}
}

func TestParseRootArgsRejectsBadOverride(t *testing.T) {
	if _, _, err := parseRootArgs([]string{"-c", "novalue"}); err == nil {
		t.Fatalf("expected error for override without '='")
	}
	if _, _, err := parseRootArgs([]string{"-c"}); err == nil {
		t.Fatalf("expected error for missing override value")
	}
}

func TestOverrideFlagsValidateAndCollect(t *testing.T) {
	var o overrideFlags
	if err := o.Set(" model=gpt-4o "); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := o.Set("=orphan"); err == nil {
		t.Fatalf("expected error for override without key")
	}
	if err := o.Set("github.repo"); err == nil {
		t.Fatalf("expected error for override without '='")
	}
	o.add("github.owner", "acme")
	want := []string{"model=gpt-4o", "github.owner=acme"}
	if !reflect.DeepEqual([]string(o), want) {
		t.Fatalf("unexpected overrides: got %v, want %v", o, want)
	}
	if o.String() != "model=gpt-4o,github.owner=acme" {
		t.Fatalf("unexpected String(): %q", o.String())
	}
}
