// Package alerting delivers operator alerts to a Slack incoming webhook
package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/slack-go/slack"

	customErrors "github.com/mnaflow/crm-guard/internal/common/errors"
	customHTTP "github.com/mnaflow/crm-guard/internal/common/http"
	"github.com/mnaflow/crm-guard/internal/common/logging"
	"github.com/mnaflow/crm-guard/internal/monitoring"
	"github.com/mnaflow/crm-guard/internal/security"
)

// Attachment colors
const (
	colorWarning = "warning"
	colorDanger  = "danger"
	colorGood    = "good"
)

// CodeDeliveryFailed is the alerting-domain code for failed webhook posts
const CodeDeliveryFailed = "delivery_failed"

// SlackNotifier posts alerts to an incoming webhook. It implements
// security.Reporter for suspicious activity and also sends configuration
// health alerts.
type SlackNotifier struct {
	webhookURL  string
	environment string
	client      *customHTTP.Client
	logger      *logging.Logger
	now         func() time.Time
}

// NewSlackNotifier creates a notifier. The webhook URL is never logged.
func NewSlackNotifier(webhookURL, environment string, logger *logging.Logger) *SlackNotifier {
	if logger == nil {
		logger = logging.New("alerting", logging.LevelInfo)
	}
	opts := customHTTP.DefaultOptions()
	opts.RequestLogger = func(method string, attempt int) {
		if attempt > 0 {
			logger.DebugKV("Retrying webhook post", "method", method, "attempt", attempt)
		}
	}
	opts.ResponseLogger = func(statusCode int, err error) {
		if err != nil {
			logger.DebugKV("Webhook post failed", "status", statusCode, "error", err)
		}
	}
	return NewSlackNotifierWithClient(webhookURL, environment, customHTTP.NewClient(opts), logger)
}

// NewSlackNotifierWithClient creates a notifier over an existing HTTP client
func NewSlackNotifierWithClient(webhookURL, environment string, client *customHTTP.Client, logger *logging.Logger) *SlackNotifier {
	if logger == nil {
		logger = logging.New("alerting", logging.LevelInfo)
	}
	return &SlackNotifier{
		webhookURL:  webhookURL,
		environment: environment,
		client:      client,
		logger:      logger,
		now:         time.Now,
	}
}

// ReportSuspiciousActivity implements security.Reporter
func (n *SlackNotifier) ReportSuspiciousActivity(ctx context.Context, activity security.SuspiciousActivity) error {
	text := fmt.Sprintf("%d %s events in the last %s (threshold %d)",
		activity.Count, codeText(activity.EventType), activity.Window, activity.Threshold)
	if details := formatData(activity.Data); details != "" {
		text += "\nLatest event:\n" + details
	}

	msg := &slack.WebhookMessage{
		Text: "Suspicious activity detected",
		Attachments: []slack.Attachment{{
			Color:      colorDanger,
			Title:      "Suspicious activity: " + escapeText(activity.EventType),
			Text:       text,
			MarkdownIn: []string{"text"},
			Fields:     n.fields(),
			Ts:         timestamp(activity.Timestamp),
		}},
	}
	return n.send(ctx, msg)
}

// NotifyDegraded reports configuration values that failed a health check.
// Problems must already be free of secret values; SecretStore errors are.
func (n *SlackNotifier) NotifyDegraded(ctx context.Context, problems []string) error {
	escaped := make([]string, len(problems))
	for i, p := range problems {
		escaped[i] = escapeText(p)
	}

	msg := &slack.WebhookMessage{
		Text: "Configuration degraded",
		Attachments: []slack.Attachment{{
			Color:      colorWarning,
			Title:      fmt.Sprintf("%d configuration value(s) failed validation", len(problems)),
			Text:       bulletList(escaped),
			MarkdownIn: []string{"text"},
			Fields:     n.fields(),
			Ts:         timestamp(n.now()),
		}},
	}
	return n.send(ctx, msg)
}

// NotifyRecovered reports that a previously degraded configuration is healthy
func (n *SlackNotifier) NotifyRecovered(ctx context.Context) error {
	msg := &slack.WebhookMessage{
		Text: "Configuration recovered",
		Attachments: []slack.Attachment{{
			Color:  colorGood,
			Title:  "All configuration values pass validation",
			Fields: n.fields(),
			Ts:     timestamp(n.now()),
		}},
	}
	return n.send(ctx, msg)
}

func (n *SlackNotifier) fields() []slack.AttachmentField {
	if n.environment == "" {
		return nil
	}
	return []slack.AttachmentField{{Title: "Environment", Value: n.environment, Short: true}}
}

func (n *SlackNotifier) send(ctx context.Context, msg *slack.WebhookMessage) error {
	err := slack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.client.HTTPClient(), msg)
	monitoring.RecordAlert(err == nil)
	if err != nil {
		status := webhookStatus(err)
		err = customHTTP.StripURL(err)
		n.logger.ErrorKV("Failed to deliver alert", "status", status, "error", err)
		return customErrors.WrapAlertingError(err, CodeDeliveryFailed, "failed to deliver alert").
			WithData("status", status)
	}
	n.logger.DebugKV("Alert delivered", "title", msg.Text)
	return nil
}

// webhookStatus extracts the HTTP status from a slack webhook error, or 0
func webhookStatus(err error) int {
	var statusErr slack.StatusCodeError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	var rateErr *slack.RateLimitedError
	if errors.As(err, &rateErr) {
		return http.StatusTooManyRequests
	}
	return 0
}

func timestamp(t time.Time) json.Number {
	return json.Number(strconv.FormatInt(t.Unix(), 10))
}
