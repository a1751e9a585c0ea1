// Package tools holds the declarative tool registry shared by the agent loop
// and the MCP server.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/capitalize-ai/scheduling-agent/internal/llm"
)

var (
	// ErrUnknownTool is returned when a call names an unregistered tool.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrMissingHandler is returned when a declared tool has no handler.
	ErrMissingHandler = errors.New("missing tool handler")
	// ErrInvalidArguments is returned when required arguments are absent.
	ErrInvalidArguments = errors.New("invalid tool arguments")
	// ErrToolPanic is returned when a handler panics.
	ErrToolPanic = errors.New("tool panicked")
)

// Session carries the per-turn context every handler needs. It is passed
// explicitly on each dispatch; the model never supplies these fields.
type Session struct {
	UserID   string
	Location *time.Location
}

// Handler executes one tool and returns the natural-language result the model
// consumes. Handlers report failures in the returned string.
type Handler func(ctx context.Context, sess Session, args Args) string

// Call is one model-requested invocation.
type Call struct {
	ID        string
	Name      string
	Arguments map[string]any
}

type entry struct {
	tool    mcp.Tool
	handler Handler
}

// Registry maps tool names to their schema and handler.
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a tool. Empty names, nil handlers and duplicates are rejected.
func (r *Registry) Register(tool mcp.Tool, handler Handler) error {
	if strings.TrimSpace(tool.Name) == "" {
		return errors.New("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("%w: %s", ErrMissingHandler, tool.Name)
	}
	if _, exists := r.entries[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}
	r.entries[tool.Name] = entry{tool: tool, handler: handler}
	return nil
}

// Validate fails unless every name is registered with a handler.
func (r *Registry) Validate(names ...string) error {
	var missing []string
	for _, name := range names {
		if e, ok := r.entries[name]; !ok || e.handler == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingHandler, strings.Join(missing, ", "))
	}
	return nil
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns the MCP tool declarations, sorted by name.
func (r *Registry) Tools() []mcp.Tool {
	names := r.Names()
	out := make([]mcp.Tool, len(names))
	for i, name := range names {
		out[i] = r.entries[name].tool
	}
	return out
}

// Definitions exports provider-neutral tool definitions for the model.
func (r *Registry) Definitions() []llm.ToolDefinition {
	tools := r.Tools()
	defs := make([]llm.ToolDefinition, len(tools))
	for i, tool := range tools {
		defs[i] = llm.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  schemaOf(tool),
		}
	}
	return defs
}

func schemaOf(tool mcp.Tool) map[string]any {
	schemaType := tool.InputSchema.Type
	if schemaType == "" {
		schemaType = "object"
	}
	properties := tool.InputSchema.Properties
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":       schemaType,
		"properties": properties,
	}
	if len(tool.InputSchema.Required) > 0 {
		schema["required"] = tool.InputSchema.Required
	}
	return schema
}

// Dispatch runs call for sess. The returned string is always suitable to feed
// back to the model; err classifies failures for logging and metrics.
func (r *Registry) Dispatch(ctx context.Context, sess Session, call Call) (result string, err error) {
	e, ok := r.entries[call.Name]
	if !ok {
		return fmt.Sprintf("Error: Function '%s' not found.", call.Name), fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	args := Args(call.Arguments)
	for _, name := range e.tool.InputSchema.Required {
		if args.String(name) == "" {
			return fmt.Sprintf("Error: missing required argument '%s' for %s.", name, call.Name),
				fmt.Errorf("%w: %s requires %s", ErrInvalidArguments, call.Name, name)
		}
	}

	defer func() {
		if p := recover(); p != nil {
			result = fmt.Sprintf("Error: %s failed unexpectedly.", call.Name)
			err = fmt.Errorf("%w: %s: %v", ErrToolPanic, call.Name, p)
		}
	}()

	return e.handler(ctx, sess, args), nil
}
