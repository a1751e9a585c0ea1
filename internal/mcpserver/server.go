// Package mcpserver exposes the calendar tools over the Model Context
// Protocol so MCP clients can drive one user's calendar directly.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/capitalize-ai/scheduling-agent/internal/tools"
	"github.com/capitalize-ai/scheduling-agent/pkg/metrics"
)

const serverName = "scheduling-agent"

// New builds an MCP server serving every registry tool for sess.
func New(reg *tools.Registry, sess tools.Session, version string) *server.MCPServer {
	srv := server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	for _, tool := range reg.Tools() {
		srv.AddTool(tool, toolHandler(reg, sess, tool.Name))
	}
	return srv
}

// ServeStdio blocks serving srv on stdin/stdout.
func ServeStdio(srv *server.MCPServer) error {
	if err := server.ServeStdio(srv); err != nil {
		return fmt.Errorf("mcp server stopped: %w", err)
	}
	return nil
}

func toolHandler(reg *tools.Registry, sess tools.Session, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		result, err := reg.Dispatch(ctx, sess, tools.Call{Name: name, Arguments: args})
		if err != nil {
			metrics.RecordToolCall(name, "error")
			return mcp.NewToolResultError(result), nil
		}
		metrics.RecordToolCall(name, "ok")
		return mcp.NewToolResultText(result), nil
	}
}
