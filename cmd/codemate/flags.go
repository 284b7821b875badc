package main

import (
	"fmt"
	"strings"
)

// overrideFlags 收集子命令上重复出现的 -c key=value，格式错误在解析阶段报出。
type overrideFlags []string

func (o *overrideFlags) String() string {
	return strings.Join(*o, ",")
}

func (o *overrideFlags) Set(v string) error {
	kv, err := checkOverride(v)
	if err != nil {
		return err
	}
	*o = append(*o, kv)
	return nil
}

// add 追加由专用参数（如 --model）转换来的覆盖项。
func (o *overrideFlags) add(key, value string) {
	*o = append(*o, key+"="+value)
}

func checkOverride(v string) (string, error) {
	key, _, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("invalid override %q, expected key=value", v)
	}
	return strings.TrimSpace(v), nil
}
