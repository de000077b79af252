package alerts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"github.com/stewardlens/stewardlens/server/internal/config"
)

// mdRenderer converts alert bodies to HTML. Raw HTML in the input is escaped.
var mdRenderer = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()),
)

// newMailClient is swapped in tests to point at a local server.
var newMailClient = func(apiKey string) *resend.Client {
	return resend.NewClient(apiKey)
}

// sendEmail delivers a through the Resend API.
func sendEmail(ctx context.Context, wh config.WebhookConfig, a *Alert) error {
	key := wh.APIKey()
	if key == "" {
		return errors.New("email: api key is empty")
	}

	md := emailMarkdown(a)
	html, err := renderMarkdown(md)
	if err != nil {
		return err
	}

	_, err = newMailClient(key).Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    wh.From,
		To:      wh.To,
		Subject: emailSubject(a),
		Html:    html,
		Text:    md,
	})
	if err != nil {
		return fmt.Errorf("email: send: %w", err)
	}
	return nil
}

func emailSubject(a *Alert) string {
	if a.State == StateResolved {
		return fmt.Sprintf("Resolved: %s on %s", a.RuleName, displaySource(a))
	}
	return fmt.Sprintf("%s %s on %s", severityLabel(a.Severity), a.RuleName, displaySource(a))
}

// emailMarkdown composes the alert body.
func emailMarkdown(a *Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", a.RuleName)
	if a.State == StateResolved {
		fmt.Fprintf(&b, "The alert for **%s** has resolved.\n\n", displaySource(a))
	} else {
		fmt.Fprintf(&b, "%s\n\n", a.Message)
	}
	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Congregation | %s |\n", displaySource(a))
	fmt.Fprintf(&b, "| Condition | `%s` |\n", a.Condition)
	fmt.Fprintf(&b, "| Value | %.2f |\n", a.Value)
	fmt.Fprintf(&b, "| Severity | %s |\n", a.Severity)
	fmt.Fprintf(&b, "| Fired | %s |\n", a.FiredAt.UTC().Format(time.RFC1123))
	if a.ResolvedAt != nil {
		fmt.Fprintf(&b, "| Resolved | %s |\n", a.ResolvedAt.UTC().Format(time.RFC1123))
	}
	return b.String()
}

func renderMarkdown(md string) (string, error) {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("email: render markdown: %w", err)
	}
	return buf.String(), nil
}
