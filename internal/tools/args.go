package tools

import (
	"fmt"
	"strings"
)

// Args is the string-keyed argument mapping supplied by the model.
type Args map[string]any

// String returns the trimmed string value of key, or "" when absent or null.
// Scalar non-string values are rendered with fmt.
func (a Args) String(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	case map[string]any, []any:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Optional returns the value of key and whether it was meaningfully set. The
// literal "none" (any case) counts as unset.
func (a Args) Optional(key string) (string, bool) {
	v := a.String(key)
	if v == "" || strings.EqualFold(v, "none") {
		return "", false
	}
	return v, true
}
