package security

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mnaflow/crm-guard/internal/common/logging"
)

// DefaultAction is the ActionLimits key used for actions without their own entry
const DefaultAction = "*"

// ActionLimit caps an action per user within a sliding window
type ActionLimit struct {
	Limit  int
	Window time.Duration
}

func (s ActionLimitSpec) parse() (ActionLimit, error) {
	d, err := time.ParseDuration(s.Window)
	if err != nil {
		return ActionLimit{}, err
	}
	if d <= 0 {
		return ActionLimit{}, fmt.Errorf("window must be positive")
	}
	return ActionLimit{Limit: s.Limit, Window: d}, nil
}

// DefaultActionLimits returns the built-in per-action limits
func DefaultActionLimits() map[string]ActionLimit {
	return map[string]ActionLimit{
		"login":               {Limit: 5, Window: 15 * time.Minute},
		"password_reset":      {Limit: 3, Window: time.Hour},
		"export":              {Limit: 10, Window: time.Hour},
		"document_generation": {Limit: 20, Window: time.Hour},
		"valuation_request":   {Limit: 30, Window: time.Hour},
		DefaultAction:         {Limit: 100, Window: time.Minute},
	}
}

// ActionDecision represents the result of an action check
type ActionDecision struct {
	Allowed bool   // Whether the action may proceed
	Reason  string // Human-readable reason for the decision
}

// ActionGuard combines the limiter, the event monitor and the SQL heuristic
// into the checks the application runs before user actions
type ActionGuard struct {
	mu      sync.RWMutex
	limits  map[string]ActionLimit
	limiter Limiter
	monitor *EventMonitor
	sql     *SQLInspector
	html    *HTMLInspector
	logger  *logging.Logger
}

// NewActionGuard creates a guard. limits nil uses DefaultActionLimits and sql
// nil uses DefaultSQLInspector.
func NewActionGuard(limiter Limiter, monitor *EventMonitor, limits map[string]ActionLimit, sql *SQLInspector, logger *logging.Logger) *ActionGuard {
	if limits == nil {
		limits = DefaultActionLimits()
	}
	if sql == nil {
		sql = DefaultSQLInspector()
	}
	if logger == nil {
		logger = logging.New("action-guard", logging.LevelInfo)
	}
	return &ActionGuard{
		limits:  limits,
		limiter: limiter,
		monitor: monitor,
		sql:     sql,
		html:    DefaultHTMLInspector(),
		logger:  logger,
	}
}

// WithHTMLInspector sets the inspector InspectHTML uses; nil keeps the default
func (g *ActionGuard) WithHTMLInspector(html *HTMLInspector) *ActionGuard {
	if html != nil {
		g.html = html
	}
	return g
}

// Identifier composes the rate limit key for a user action
func Identifier(userID, action string) string {
	return userID + ":" + action
}

// LimitFor returns the limit applied to action
func (g *ActionGuard) LimitFor(action string) (ActionLimit, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if limit, ok := g.limits[action]; ok {
		return limit, true
	}
	limit, ok := g.limits[DefaultAction]
	return limit, ok
}

// CheckAction rate limits userID performing action and records the outcome
// as a resource_access or rate_limited event
func (g *ActionGuard) CheckAction(userID, action string) *ActionDecision {
	var decision *ActionDecision

	limit, ok := g.LimitFor(action)
	switch {
	case strings.TrimSpace(userID) == "" || strings.TrimSpace(action) == "":
		decision = &ActionDecision{Allowed: false, Reason: "Missing user or action"}
	case !ok:
		decision = &ActionDecision{Allowed: true, Reason: "No limit configured"}
	case g.limiter.IsAllowed(Identifier(userID, action), limit.Limit, limit.Window):
		decision = &ActionDecision{Allowed: true, Reason: "Within rate limit"}
	default:
		decision = &ActionDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("Rate limit of %d per %s exceeded", limit.Limit, limit.Window),
		}
	}

	if g.monitor != nil {
		eventType := EventResourceAccess
		if !decision.Allowed {
			eventType = EventRateLimited
		}
		g.monitor.RecordEvent(eventType, map[string]any{"user_id": userID, "action": action})
	}

	g.logDecision(userID, action, decision)
	return decision
}

// RecordAuthFailure records an auth_failure event for userID. data is
// sanitized by the monitor before it is stored.
func (g *ActionGuard) RecordAuthFailure(userID string, data map[string]any) {
	event := make(map[string]any, len(data)+1)
	for k, v := range data {
		event[k] = v
	}
	event["user_id"] = userID

	g.logger.WarnKV("Authentication failure", "user_id", userID)
	if g.monitor != nil {
		g.monitor.RecordEvent(EventAuthFailure, event)
	}
}

// InspectInput flags field values that look like SQL injection. The input is
// never rejected here; a hit is logged and recorded as suspicious_input.
func (g *ActionGuard) InspectInput(userID, field, value string) bool {
	if !g.sql.DetectSQLInjectionPattern(value) {
		return false
	}
	g.logger.WarnKV("Suspicious input", "user_id", userID, "field", field, "length", len(value))
	if g.monitor != nil {
		g.monitor.RecordEvent(EventSuspiciousInput, map[string]any{"user_id": userID, "field": field})
	}
	return true
}

// InspectHTML runs the HTML heuristics over content. Unsafe content is logged
// and recorded as suspicious_input; it is never rewritten.
func (g *ActionGuard) InspectHTML(userID, field, content string) HTMLReport {
	report := g.html.ValidateHTMLContent(content)
	if report.Safe {
		return report
	}
	g.logger.WarnKV("Suspicious HTML content", "user_id", userID, "field", field, "issues", len(report.Issues))
	if g.monitor != nil {
		g.monitor.RecordEvent(EventSuspiciousInput, map[string]any{"user_id": userID, "field": field, "kind": "html"})
	}
	return report
}

// UpdateLimits replaces the per-action limits
func (g *ActionGuard) UpdateLimits(limits map[string]ActionLimit) {
	g.mu.Lock()
	g.limits = limits
	g.mu.Unlock()
	g.logger.InfoKV("Action limits updated", "actions", len(limits))
}

// logDecision logs granted actions at debug and denials as warnings
func (g *ActionGuard) logDecision(userID, action string, decision *ActionDecision) {
	logMessage := fmt.Sprintf("Action %s", map[bool]string{true: "allowed", false: "denied"}[decision.Allowed])

	if decision.Allowed {
		g.logger.DebugKV(logMessage,
			"user_id", userID,
			"action", action,
			"reason", decision.Reason,
		)
		return
	}
	g.logger.WarnKV(logMessage,
		"user_id", userID,
		"action", action,
		"reason", decision.Reason,
	)
}
