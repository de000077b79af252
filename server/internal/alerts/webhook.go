package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const deliveryTimeout = 15 * time.Second

// deliver sends notifications for a to all configured targets.
// Errors are logged but do not affect the caller.
func (e *Engine) deliver(a *Alert) {
	e.mu.Lock()
	targets := e.webhooks
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	for _, wh := range targets {
		var err error
		switch wh.Type {
		case "email":
			err = sendEmail(ctx, wh, a)
		case "slack", "teams", "pagerduty", "http":
			url := wh.URL()
			if url == "" {
				continue
			}
			err = e.sendWebhook(ctx, wh.Type, url, a)
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("alerts: delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"err", err,
			)
		} else {
			slog.Debug("alerts: delivered",
				"type", wh.Type,
				"rule", a.RuleName,
				"state", a.State,
			)
		}
	}
}

func (e *Engine) sendWebhook(ctx context.Context, kind, url string, a *Alert) error {
	var payload any
	switch kind {
	case "slack":
		payload = map[string]string{
			"text": fmt.Sprintf("*%s* %s", severityLabel(a.Severity), summary(a)),
		}
	case "teams":
		payload = map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": severityColor(a.Severity),
			"summary":    a.RuleName,
			"title":      fmt.Sprintf("StewardLens Alert: %s", a.RuleName),
			"text":       summary(a),
		}
	case "pagerduty":
		action := "trigger"
		if a.State == StateResolved {
			action = "resolve"
		}
		payload = map[string]any{
			"event_action": action,
			"dedup_key":    a.RuleName + ":" + a.SourceID,
			"payload": map[string]any{
				"summary":  a.Message,
				"source":   a.SourceID,
				"severity": pagerDutySeverity(a.Severity),
			},
		}
	default:
		payload = map[string]any{"alert": a}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return e.post(ctx, url, body)
}

func (e *Engine) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// summary is the one-line text used by chat targets.
func summary(a *Alert) string {
	if a.State == StateResolved {
		return fmt.Sprintf("RESOLVED: %s on %s", a.RuleName, displaySource(a))
	}
	return a.Message
}

func displaySource(a *Alert) string {
	if a.SourceName != "" {
		return a.SourceName
	}
	return a.SourceID
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "C0392B"
	case "warning":
		return "E67E22"
	default:
		return "2E86C1"
	}
}

func pagerDutySeverity(s string) string {
	switch s {
	case "critical", "warning", "info":
		return s
	default:
		return "warning"
	}
}
