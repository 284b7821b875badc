package main

import (
	"flag"
	"io"
	"strings"

	"codemate/internal/repl"
)

func runChat(root rootArgs, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var cfgPath string
	var overrides overrideFlags
	var altScreen bool
	fs.StringVar(&cfgPath, "config", "", "Path to config file (default ~/.codemate/config.toml)")
	fs.Var(&overrides, "c", "Override config value key=value (repeatable)")
	fs.BoolVar(&altScreen, "alt-screen", true, "Use the terminal alternate screen")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(root, cfgPath, overrides)
	if err != nil {
		return err
	}
	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}

	gateway := repl.NewGateway(rt.engine)
	res, err := repl.RunUI(repl.UIOptions{
		Gateway:       gateway,
		Repository:    rt.repo,
		Tools:         rt.catalog.Specs(),
		Model:         cfg.Model,
		InitialPrompt: strings.TrimSpace(strings.Join(fs.Args(), " ")),
		AltScreen:     altScreen,
	})
	if err != nil {
		return err
	}
	log.Infof("chat closed with %d messages", len(res.History))
	return nil
}
