package alerting

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/mnaflow/crm-guard/internal/security"
)

// escapeText escapes the characters Slack treats as control sequences
func escapeText(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

func codeText(text string) string {
	return fmt.Sprintf("`%s`", strings.ReplaceAll(text, "`", "'"))
}

func bulletList(items []string) string {
	var result strings.Builder
	for _, item := range items {
		result.WriteString("• " + item + "\n")
	}
	return result.String()
}

// formatData renders event data as sorted "key: value" lines. Values are
// sanitized again and stripped of markup before escaping.
func formatData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	clean, _ := security.Sanitize(data).(map[string]any)

	keys := make([]string, 0, len(clean))
	for k := range clean {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		value := html.UnescapeString(security.StripHTML(fmt.Sprintf("%v", clean[k])))
		lines = append(lines, fmt.Sprintf("%s: %s", codeText(k), escapeText(value)))
	}
	return bulletList(lines)
}
