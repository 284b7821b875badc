package main

import (
	"encoding/json"
	"io"
)

// runTools 以 JSON 输出工具声明，与发送给模型的声明一致。
func runTools(out io.Writer) error {
	catalog, err := buildCatalog(nil)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(catalog.Specs())
}
