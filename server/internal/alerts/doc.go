// Package alerts evaluates threshold rules against every assessed snapshot
// and notifies Slack, Teams, PagerDuty, generic HTTP endpoints or email
// (Resend, Markdown body rendered with goldmark) when a rule fires or
// resolves. Rules can be swapped at runtime with SetRules.
package alerts
