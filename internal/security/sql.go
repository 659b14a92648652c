package security

import (
	"regexp"

	"github.com/mnaflow/crm-guard/internal/monitoring"
)

// DefaultSQLPattern flags quotes, comment markers, statement separators and
// common keywords. It has a high false-positive rate and is meant for logging.
const DefaultSQLPattern = `(?i)('|"|--|;|/\*|\*/|\b(or|union|select|insert|delete|drop|update)\b)`

// SQLInspector flags input that looks like an injection attempt. It never
// gates query construction; that is the job of parameterized queries.
type SQLInspector struct {
	re *regexp.Regexp
}

// NewSQLInspector compiles pattern ("" uses DefaultSQLPattern)
func NewSQLInspector(pattern string) (*SQLInspector, error) {
	if pattern == "" {
		pattern = DefaultSQLPattern
	}
	rules, err := compileRules([]PatternRule{{Pattern: pattern, Message: "sql"}})
	if err != nil {
		return nil, err
	}
	return &SQLInspector{re: rules[0].re}, nil
}

// DefaultSQLInspector uses DefaultSQLPattern
func DefaultSQLInspector() *SQLInspector {
	return &SQLInspector{re: regexp.MustCompile(DefaultSQLPattern)}
}

// DetectSQLInjectionPattern reports whether input matches the pattern
func (s *SQLInspector) DetectSQLInjectionPattern(input string) bool {
	if !s.re.MatchString(input) {
		return false
	}
	monitoring.RecordContentFinding("sql")
	return true
}
