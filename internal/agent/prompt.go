package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/capitalize-ai/scheduling-agent/internal/timeutil"
)

// systemPrompt anchors the model to the session clock and zone.
func systemPrompt(now time.Time, loc *time.Location) string {
	local := now.In(loc)
	weekStart := timeutil.StartOfWeek(local, loc)
	weekEnd := weekStart.AddDate(0, 0, 6)
	zone := loc.String()
	offset := local.Format("-07:00")

	var b strings.Builder
	b.WriteString("You are a scheduling assistant that manages the user's calendar with the provided tools.\n\n")
	fmt.Fprintf(&b, "Current time: %s (%s).\n", timeutil.Format(local, timeutil.DateTimeLayout), local.Weekday())
	fmt.Fprintf(&b, "Timezone: %s (UTC offset %s). Interpret every date and time in this zone.\n\n", zone, offset)

	b.WriteString("Rules:\n")
	b.WriteString("- Use the earlier messages to resolve follow-ups such as \"the same time\" or \"that meeting\".\n")
	fmt.Fprintf(&b, "- book_meeting needs start_time_iso as YYYY-MM-DDTHH:MM:SS%s and a short title. Meetings last 30 minutes.\n", offset)
	b.WriteString("- check_availability and cancel_meetings take dates as YYYY-MM-DD.\n")
	fmt.Fprintf(&b, "- \"today\" means %s.\n", timeutil.Format(local, timeutil.DateLayout))
	fmt.Fprintf(&b, "- \"this week\" means Monday %s through Sunday %s.\n",
		timeutil.Format(weekStart, timeutil.DateLayout), timeutil.Format(weekEnd, timeutil.DateLayout))
	b.WriteString("- To cancel regardless of title (\"everything\", \"all meetings\"), pass title_keyword \"none\".\n")
	b.WriteString("- Ask a clarifying question instead of guessing when a request is ambiguous.\n")
	b.WriteString("- After using tools, reply with a short confirmation of what changed.\n")
	return b.String()
}
