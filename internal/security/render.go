package security

import "github.com/microcosm-cc/bluemonday"

// bluemonday policies are safe for concurrent use once built
var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// RenderSafeHTML returns content reduced to markup that is safe to render
// (formatting, links, images). It is separate from ValidateHTMLContent,
// which only reports.
func RenderSafeHTML(content string) string {
	return ugcPolicy.Sanitize(content)
}

// StripHTML removes all markup, leaving text
func StripHTML(content string) string {
	return strictPolicy.Sanitize(content)
}
