package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() mcp.Tool {
	return mcp.NewTool("echo",
		mcp.WithDescription("Echoes text back"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to echo")),
		mcp.WithString("suffix", mcp.Description("Optional suffix")),
	)
}

func newEchoRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool(), func(ctx context.Context, sess Session, args Args) string {
		out := sess.UserID + ":" + args.String("text")
		if suffix, ok := args.Optional("suffix"); ok {
			out += suffix
		}
		return out
	}))
	return r
}

func TestRegistry_Register(t *testing.T) {
	r := newEchoRegistry(t)

	err := r.Register(echoTool(), func(context.Context, Session, Args) string { return "" })
	assert.Error(t, err, "duplicate names are rejected")

	err = r.Register(mcp.NewTool("nohandler"), nil)
	assert.True(t, errors.Is(err, ErrMissingHandler))

	err = r.Register(mcp.NewTool(" "), func(context.Context, Session, Args) string { return "" })
	assert.Error(t, err)
}

func TestRegistry_Validate(t *testing.T) {
	r := newEchoRegistry(t)
	assert.NoError(t, r.Validate("echo"))

	err := r.Validate("echo", "book_meeting")
	assert.True(t, errors.Is(err, ErrMissingHandler))
	assert.Contains(t, err.Error(), "book_meeting")
}

func TestRegistry_Dispatch(t *testing.T) {
	r := newEchoRegistry(t)
	sess := Session{UserID: "alice", Location: time.UTC}
	ctx := context.Background()

	out, err := r.Dispatch(ctx, sess, Call{Name: "echo", Arguments: map[string]any{"text": "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "alice:hi", out)

	out, err = r.Dispatch(ctx, sess, Call{Name: "echo", Arguments: map[string]any{"text": "hi", "suffix": "!"}})
	require.NoError(t, err)
	assert.Equal(t, "alice:hi!", out)

	out, err = r.Dispatch(ctx, sess, Call{Name: "echo", Arguments: map[string]any{"text": "hi", "suffix": "None"}})
	require.NoError(t, err)
	assert.Equal(t, "alice:hi", out)
}

func TestRegistry_DispatchUnknownTool(t *testing.T) {
	r := newEchoRegistry(t)

	out, err := r.Dispatch(context.Background(), Session{}, Call{Name: "launch_rocket"})
	assert.True(t, errors.Is(err, ErrUnknownTool))
	assert.Equal(t, "Error: Function 'launch_rocket' not found.", out)
}

func TestRegistry_DispatchMissingArgument(t *testing.T) {
	r := newEchoRegistry(t)

	out, err := r.Dispatch(context.Background(), Session{}, Call{Name: "echo", Arguments: map[string]any{}})
	assert.True(t, errors.Is(err, ErrInvalidArguments))
	assert.Contains(t, out, "missing required argument 'text'")
}

func TestRegistry_DispatchRecoversPanic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mcp.NewTool("boom"), func(context.Context, Session, Args) string {
		panic("kaboom")
	}))

	out, err := r.Dispatch(context.Background(), Session{}, Call{Name: "boom"})
	assert.True(t, errors.Is(err, ErrToolPanic))
	assert.Equal(t, "Error: boom failed unexpectedly.", out)
}

func TestRegistry_Definitions(t *testing.T) {
	r := newEchoRegistry(t)
	require.NoError(t, r.Register(mcp.NewTool("alpha", mcp.WithDescription("first")),
		func(context.Context, Session, Args) string { return "" }))

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "echo", defs[1].Name)
	assert.Equal(t, "Echoes text back", defs[1].Description)

	params := defs[1].Parameters
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []string{"text"}, params["required"])
	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "text")
	assert.Contains(t, props, "suffix")

	_, hasRequired := defs[0].Parameters["required"]
	assert.False(t, hasRequired)
}

func TestArgs(t *testing.T) {
	args := Args{
		"s":     "  padded  ",
		"n":     float64(3),
		"b":     true,
		"null":  nil,
		"obj":   map[string]any{"k": "v"},
		"none":  "NONE",
		"empty": "",
	}

	assert.Equal(t, "padded", args.String("s"))
	assert.Equal(t, "3", args.String("n"))
	assert.Equal(t, "true", args.String("b"))
	assert.Equal(t, "", args.String("null"))
	assert.Equal(t, "", args.String("obj"))
	assert.Equal(t, "", args.String("missing"))

	_, ok := args.Optional("none")
	assert.False(t, ok)
	_, ok = args.Optional("empty")
	assert.False(t, ok)
	v, ok := args.Optional("s")
	assert.True(t, ok)
	assert.Equal(t, "padded", v)
}
