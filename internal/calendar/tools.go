package calendar

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/capitalize-ai/scheduling-agent/internal/tools"
)

// Tool names as seen by the model.
const (
	ToolCheckAvailability = "check_availability"
	ToolBookMeeting       = "book_meeting"
	ToolCancelMeetings    = "cancel_meetings"
)

// ToolNames lists every calendar tool.
var ToolNames = []string{ToolCheckAvailability, ToolBookMeeting, ToolCancelMeetings}

func checkAvailabilityTool() mcp.Tool {
	return mcp.NewTool(ToolCheckAvailability,
		mcp.WithDescription("Lists the busy time slots on one calendar day for the current user."),
		mcp.WithString("date",
			mcp.Required(),
			mcp.Description("Day to check, formatted YYYY-MM-DD"),
		),
	)
}

func bookMeetingTool() mcp.Tool {
	return mcp.NewTool(ToolBookMeeting,
		mcp.WithDescription("Books a 30 minute meeting for the current user."),
		mcp.WithString("start_time_iso",
			mcp.Required(),
			mcp.Description("Start time as YYYY-MM-DDTHH:MM:SS+HH:MM in the user's timezone"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Meeting title"),
		),
	)
}

func cancelMeetingsTool() mcp.Tool {
	return mcp.NewTool(ToolCancelMeetings,
		mcp.WithDescription("Cancels the current user's meetings that start within a date range, optionally filtered by a title keyword."),
		mcp.WithString("start_date",
			mcp.Required(),
			mcp.Description("First day of the range, YYYY-MM-DD"),
		),
		mcp.WithString("end_date",
			mcp.Description("Last day of the range, YYYY-MM-DD. Defaults to start_date"),
		),
		mcp.WithString("title_keyword",
			mcp.Description("Case-insensitive title filter. Use 'none' to cancel every meeting in the range"),
		),
	)
}

// RegisterTools adds the calendar tools to r.
func (s *Service) RegisterTools(r *tools.Registry) error {
	entries := []struct {
		tool    mcp.Tool
		handler tools.Handler
	}{
		{checkAvailabilityTool(), func(ctx context.Context, sess tools.Session, args tools.Args) string {
			return s.CheckAvailability(ctx, sess, args.String("date"))
		}},
		{bookMeetingTool(), func(ctx context.Context, sess tools.Session, args tools.Args) string {
			return s.BookMeeting(ctx, sess, args.String("start_time_iso"), args.String("title"))
		}},
		{cancelMeetingsTool(), func(ctx context.Context, sess tools.Session, args tools.Args) string {
			keyword, _ := args.Optional("title_keyword")
			return s.CancelMeetings(ctx, sess, args.String("start_date"), args.String("end_date"), keyword)
		}},
	}

	for _, e := range entries {
		if err := r.Register(e.tool, e.handler); err != nil {
			return err
		}
	}
	return r.Validate(ToolNames...)
}
