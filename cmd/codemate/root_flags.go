package main

import (
	"fmt"
	"strings"
)

// rootArgs 是出现在子命令之前的全局参数。
type rootArgs struct {
	cfgPath   string
	overrides []string
}

// parseRootArgs 只消费 -c 与 --config，遇到第一个其它参数即停止，其余原样交给子命令。
func parseRootArgs(args []string) (rootArgs, []string, error) {
	var root rootArgs
	i := 0
	for i < len(args) {
		name, value, hasValue := splitFlag(args[i])
		switch name {
		case "c":
			if !hasValue {
				if i+1 >= len(args) {
					return rootArgs{}, nil, fmt.Errorf("flag -c requires key=value")
				}
				i++
				value = args[i]
			}
			kv, err := checkOverride(value)
			if err != nil {
				return rootArgs{}, nil, err
			}
			root.overrides = append(root.overrides, kv)
		case "config":
			if !hasValue {
				if i+1 >= len(args) {
					return rootArgs{}, nil, fmt.Errorf("flag --config requires a path")
				}
				i++
				value = args[i]
			}
			root.cfgPath = value
		default:
			return root, append([]string{}, args[i:]...), nil
		}
		i++
	}
	return root, nil, nil
}

func splitFlag(arg string) (name, value string, hasValue bool) {
	if !strings.HasPrefix(arg, "-") || arg == "-" || arg == "--" {
		return "", "", false
	}
	trimmed := strings.TrimLeft(arg, "-")
	name, value, hasValue = strings.Cut(trimmed, "=")
	return name, value, hasValue
}

func prependOverrides(root []string, overrides []string) []string {
	merged := append([]string{}, root...)
	return append(merged, overrides...)
}
