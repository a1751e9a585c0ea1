package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/scheduling-agent/internal/calendar"
	"github.com/capitalize-ai/scheduling-agent/internal/store"
	"github.com/capitalize-ai/scheduling-agent/internal/tools"
	"github.com/capitalize-ai/scheduling-agent/pkg/logger"
)

func newRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "mcp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	reg := tools.NewRegistry()
	cal := calendar.NewService(store.NewEventStore(db), calendar.WithLogger(logger.NewNop()))
	require.NoError(t, cal.RegisterTools(reg))
	return reg
}

func call(t *testing.T, reg *tools.Registry, sess tools.Session, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := toolHandler(reg, sess, name)(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestToolHandler_BookAndCheck(t *testing.T) {
	reg := newRegistry(t)
	sess := tools.Session{UserID: "alice", Location: time.UTC}

	res := call(t, reg, sess, calendar.ToolBookMeeting, map[string]interface{}{
		"start_time_iso": "2025-01-06T09:00:00Z",
		"title":          "Standup",
	})
	assert.False(t, res.IsError)
	assert.Equal(t, "OK. Meeting 'Standup' booked for 2025-01-06 09:00 (UTC).", text(t, res))

	res = call(t, reg, sess, calendar.ToolCheckAvailability, map[string]interface{}{"date": "2025-01-06"})
	assert.Equal(t, "Busy slots on 2025-01-06 (UTC): 09:00-09:30.", text(t, res))

	other := tools.Session{UserID: "bob", Location: time.UTC}
	res = call(t, reg, other, calendar.ToolCheckAvailability, map[string]interface{}{"date": "2025-01-06"})
	assert.Equal(t, "The entire day of 2025-01-06 is free.", text(t, res))
}

func TestToolHandler_MissingArgument(t *testing.T) {
	reg := newRegistry(t)
	sess := tools.Session{UserID: "alice", Location: time.UTC}

	res := call(t, reg, sess, calendar.ToolBookMeeting, nil)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "missing required argument")
}

func TestNew_ListsEveryTool(t *testing.T) {
	reg := newRegistry(t)
	srv := New(reg, tools.Session{UserID: "alice", Location: time.UTC}, "test")
	ctx := context.Background()

	srv.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`))
	resp := srv.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var out struct {
		Result struct {
			Tools []struct {
				Name        string `json:"name"`
				InputSchema struct {
					Required []string `json:"required"`
				} `json:"inputSchema"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))

	names := make([]string, 0, len(out.Result.Tools))
	for _, tool := range out.Result.Tools {
		names = append(names, tool.Name)
		if tool.Name == calendar.ToolBookMeeting {
			assert.ElementsMatch(t, []string{"start_time_iso", "title"}, tool.InputSchema.Required)
		}
	}
	assert.ElementsMatch(t, calendar.ToolNames, names)
}
