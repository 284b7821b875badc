package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"codemate/internal/agent"

	"github.com/xeipuuv/gojsonschema"
)

// Handler 定义一个只读工具：声明 schema 并执行已通过校验的参数。
type Handler interface {
	Spec() agent.ToolSpec
	Handle(ctx context.Context, args json.RawMessage) (Output, error)
}

// StatefulHandler 由会改变后续调用所见状态的工具实现，例如 switch_repo。
// 并行执行时这类调用独占执行，前后的调用不会与它交错。
type StatefulHandler interface {
	Handler
	ChangesState() bool
}

// Output 是 handler 的成功结果。Payload 会被序列化为 JSON 写回对话；
// Notes 以 reasoning_note 事件展示给用户，不进入历史。
type Output struct {
	Payload any
	Notes   []string
}

type catalogEntry struct {
	handler Handler
	spec    agent.ToolSpec
	schema  *gojsonschema.Schema
}

// Catalog 是启动时构建、之后只读的工具目录。
type Catalog struct {
	entries map[string]catalogEntry
	order   []string
}

// NewCatalog 编译每个工具的参数 schema，名称重复或 schema 非法时返回错误。
func NewCatalog(handlers ...Handler) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]catalogEntry, len(handlers))}
	for _, h := range handlers {
		if h == nil {
			continue
		}
		spec := h.Spec()
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, errors.New("tool with empty name")
		}
		if _, dup := c.entries[name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(spec.Parameters))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", name, err)
		}
		c.entries[name] = catalogEntry{handler: h, spec: spec, schema: schema}
		c.order = append(c.order, name)
	}
	return c, nil
}

// Specs 按注册顺序返回工具声明。
func (c *Catalog) Specs() []agent.ToolSpec {
	out := make([]agent.ToolSpec, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.entries[name].spec)
	}
	return out
}

func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

func (c *Catalog) Handler(name string) (Handler, bool) {
	entry, ok := c.entries[name]
	return entry.handler, ok
}

// ChangesState 报告 name 对应的工具是否会改变后续调用所见的状态。
func (c *Catalog) ChangesState(name string) bool {
	entry, ok := c.entries[name]
	if !ok {
		return false
	}
	sh, ok := entry.handler.(StatefulHandler)
	return ok && sh.ChangesState()
}

// ValidateArguments 校验参数是否为符合 schema 的 JSON 对象。
// 未知工具返回 agent.ErrUnknownTool。
func (c *Catalog) ValidateArguments(name string, args json.RawMessage) error {
	entry, ok := c.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", agent.ErrUnknownTool, name)
	}
	if !json.Valid(args) {
		return errors.New("arguments are not valid JSON")
	}
	result, err := entry.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}
