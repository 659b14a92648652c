package security

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	customErrors "github.com/mnaflow/crm-guard/internal/common/errors"
	"github.com/mnaflow/crm-guard/internal/monitoring"
)

// ErrInvalidInput is returned by boundary checks for content the detectors
// cannot inspect
var ErrInvalidInput = customErrors.New("invalid input")

// Error codes used on security-domain errors
const (
	CodeInvalidInput   = "invalid_input"
	CodeInvalidPattern = "invalid_pattern"
	CodeInvalidPolicy  = "invalid_policy"
)

// PatternRule pairs a regular expression with the issue reported when it matches
type PatternRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// DefaultHTMLRules returns the built-in ordered HTML checks
func DefaultHTMLRules() []PatternRule {
	return []PatternRule{
		{Pattern: `(?i)<\s*script\b`, Message: "Script tags are not allowed"},
		{Pattern: `(?i)\bon[a-z]+\s*=`, Message: "Inline event handlers are not allowed"},
		{Pattern: `(?i)javascript\s*:`, Message: "javascript: URLs are not allowed"},
		{Pattern: `(?i)vbscript\s*:`, Message: "vbscript: URLs are not allowed"},
		{Pattern: `(?i)<\s*iframe\b`, Message: "Iframe tags are not allowed"},
		{Pattern: `(?i)<\s*object\b`, Message: "Object tags are not allowed"},
		{Pattern: `(?i)<\s*embed\b`, Message: "Embed tags are not allowed"},
		{Pattern: `(?i)<\s*link\b`, Message: "Link tags are not allowed"},
		{Pattern: `(?i)<\s*meta\b`, Message: "Meta tags are not allowed"},
	}
}

// HTMLReport is the result of ValidateHTMLContent
type HTMLReport struct {
	Safe   bool     `json:"safe"`
	Issues []string `json:"issues"`
}

type compiledRule struct {
	re      *regexp.Regexp
	message string
}

// HTMLInspector runs an ordered list of pattern rules over raw HTML.
// It only detects; use RenderSafeHTML to produce markup that is safe to render.
type HTMLInspector struct {
	rules []compiledRule
}

// NewHTMLInspector compiles rules in order
func NewHTMLInspector(rules []PatternRule) (*HTMLInspector, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &HTMLInspector{rules: compiled}, nil
}

// DefaultHTMLInspector uses DefaultHTMLRules
func DefaultHTMLInspector() *HTMLInspector {
	inspector, err := NewHTMLInspector(DefaultHTMLRules())
	if err != nil {
		panic(err)
	}
	return inspector
}

func compileRules(rules []PatternRule) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, rule := range rules {
		if rule.Message == "" {
			return nil, customErrors.NewSecurityError(CodeInvalidPattern,
				fmt.Sprintf("rule %d has no message", i)).WithData("index", i)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, customErrors.WrapSecurityError(err, CodeInvalidPattern,
				fmt.Sprintf("rule %d has an invalid pattern", i)).WithData("index", i)
		}
		compiled = append(compiled, compiledRule{re: re, message: rule.Message})
	}
	return compiled, nil
}

// ValidateHTMLContent runs every rule against content and reports one issue
// per matching rule, in rule order. Content is never modified. Content that
// is not valid UTF-8 is reported as unsafe without running the rules.
func (h *HTMLInspector) ValidateHTMLContent(content string) HTMLReport {
	if !utf8.ValidString(content) {
		monitoring.RecordContentFinding("html")
		return HTMLReport{Safe: false, Issues: []string{"Content is not valid UTF-8"}}
	}

	issues := []string{}
	for _, rule := range h.rules {
		if rule.re.MatchString(content) {
			issues = append(issues, rule.message)
		}
	}
	if len(issues) > 0 {
		monitoring.RecordContentFinding("html")
	}
	return HTMLReport{Safe: len(issues) == 0, Issues: issues}
}

// Inspect is the boundary check for untyped input: only string and []byte
// holding valid UTF-8 are inspected, anything else is ErrInvalidInput.
func (h *HTMLInspector) Inspect(content any) (HTMLReport, error) {
	var s string
	switch v := content.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return HTMLReport{}, customErrors.WrapSecurityError(ErrInvalidInput, CodeInvalidInput,
			fmt.Sprintf("HTML content must be a string, got %T", content))
	}
	if !utf8.ValidString(s) {
		return HTMLReport{}, customErrors.WrapSecurityError(ErrInvalidInput, CodeInvalidInput, "HTML content is not valid UTF-8")
	}
	return h.ValidateHTMLContent(s), nil
}
