// Package slack sends escalation and overdue-deadline notifications to Slack
// via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/klaxon/internal/alert"
	"github.com/linnemanlabs/klaxon/internal/sla"
)

const httpTimeout = 10 * time.Second

// Notifier posts alert notifications to a Slack webhook, routed by the
// optional escalation policy.
type Notifier struct {
	webhookURL string
	policy     *Policy
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, sends are no-ops.
func New(webhookURL string, policy *Policy) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		policy:     policy,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Escalated posts an escalation notice for the alert.
func (n *Notifier) Escalated(ctx context.Context, a *alert.Alert, escalateTo, reason, priority string) error {
	route := n.policy.Route(a.Bureau, a.Severity)
	return n.post(ctx, buildEscalationMessage(a, escalateTo, reason, priority, route))
}

// Overdue posts a notice that a tracked deadline has passed.
func (n *Notifier) Overdue(ctx context.Context, item sla.TrackedItem) error {
	route := n.policy.Route(item.Bureau, alert.SeverityCritical)
	return n.post(ctx, buildOverdueMessage(item, route))
}

func (n *Notifier) post(ctx context.Context, msg map[string]any) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildEscalationMessage(a *alert.Alert, escalateTo, reason, priority string, route *Route) map[string]any {
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Severity:* %s", a.Severity)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Escalated to:* %s", escalateTo)},
	}
	if priority != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Priority:* %s", priority)})
	}
	if a.Bureau != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Bureau:* %s", a.Bureau)})
	}

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf("%s Escalated: %s", severityEmoji(a.Severity), a.Title),
			},
		},
		{"type": "section", "fields": fields},
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason*\n%s", reason)},
		},
		contextBlock(fmt.Sprintf("klaxon • alert %s • %s", a.ID, time.Now().UTC().Format("2006-01-02 15:04 UTC"))),
	}

	return applyRoute(map[string]any{"blocks": blocks}, route)
}

func buildOverdueMessage(item sla.TrackedItem, route *Route) map[string]any {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf("\U0001f534 Deadline overdue: %s", item.Title),
			},
		},
		{
			"type": "section",
			"fields": []map[string]any{
				{"type": "mrkdwn", "text": fmt.Sprintf("*Due:* %s", item.DueAt.UTC().Format("2006-01-02 15:04 UTC"))},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Type:* %s", item.EventType)},
			},
		},
		contextBlock(fmt.Sprintf("klaxon • tracked item %s", item.ID)),
	}

	return applyRoute(map[string]any{"blocks": blocks}, route)
}

func applyRoute(msg map[string]any, route *Route) map[string]any {
	if route == nil {
		return msg
	}
	if route.Channel != "" {
		msg["channel"] = route.Channel
	}
	if route.Mention != "" {
		msg["text"] = route.Mention
	}
	return msg
}

func contextBlock(text string) map[string]any {
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{"type": "mrkdwn", "text": text},
		},
	}
}

func severityEmoji(severity alert.Severity) string {
	switch severity {
	case alert.SeverityCritical:
		return "\U0001f534" // red circle
	case alert.SeverityWarning:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}
