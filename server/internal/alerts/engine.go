package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stewardlens/stewardlens/pkg/wire"
	"github.com/stewardlens/stewardlens/server/internal/config"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	SourceID   string     `json:"source_id"`
	SourceName string     `json:"source_name,omitempty"`
	Severity   string     `json:"severity"`
	Condition  string     `json:"condition"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

// Engine evaluates alert rules against incoming Snapshots and delivers
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: "ruleName:sourceID"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts

	client *http.Client
	now    func() time.Time
	newID  func() string
	wg     sync.WaitGroup
}

// New creates an Engine from the server alert configuration.
// An Engine with empty rules is valid; Evaluate becomes a no-op.
// Rules with malformed conditions are logged and skipped.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	e.SetRules(cfg)
	return e
}

// SetRules replaces rules and webhooks. Firing alerts whose rule was removed
// are dropped without a resolve notification.
func (e *Engine) SetRules(cfg config.AlertsConfig) {
	rules := make([]config.AlertRule, 0, len(cfg.Rules))
	names := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if err := checkCondition(r.Condition); err != nil {
			slog.Error("alerts: skipping rule", "rule", r.Name, "err", err)
			continue
		}
		rules = append(rules, r)
		names[r.Name] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
	e.webhooks = append([]config.WebhookConfig(nil), cfg.Webhooks...)
	for key, a := range e.active {
		if !names[a.RuleName] {
			delete(e.active, key)
			delete(e.lastFire, key)
		}
	}
}

// Rules returns the rules currently in effect.
func (e *Engine) Rules() []config.AlertRule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]config.AlertRule(nil), e.rules...)
}

// Observe adapts Evaluate to the receiver's observer interface.
func (e *Engine) Observe(_ context.Context, snap *wire.Snapshot) {
	e.Evaluate(snap)
}

// Evaluate tests all configured rules against snap.
// Alerts that fire are stored and delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(snap *wire.Snapshot) {
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()
	if len(rules) == 0 {
		return
	}

	now := e.now()
	for _, rule := range rules {
		key := rule.Name + ":" + snap.SourceID
		fires, value := evalCondition(rule.Condition, snap)

		e.mu.Lock()
		var notify *Alert
		if fires {
			notify = e.fire(key, rule, snap, value, now)
		} else {
			notify = e.resolve(key, now)
		}
		e.mu.Unlock()

		if notify == nil {
			continue
		}
		if notify.State == StateFiring {
			slog.Warn("alerts: alert fired",
				"rule", rule.Name,
				"source", snap.SourceID,
				"value", value,
				"severity", notify.Severity,
			)
		} else {
			slog.Info("alerts: alert resolved",
				"rule", rule.Name,
				"source", snap.SourceID,
			)
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.deliver(notify)
		}()
	}
}

// fire records a firing alert unless the rule is cooling down. e.mu must be held.
func (e *Engine) fire(key string, rule config.AlertRule, snap *wire.Snapshot, value float64, now time.Time) *Alert {
	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if last, ok := e.lastFire[key]; ok && now.Sub(last) <= cooldown {
		return nil
	}

	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	name := snap.Name
	if name == "" {
		name = snap.SourceID
	}
	a := &Alert{
		ID:         e.newID(),
		RuleName:   rule.Name,
		SourceID:   snap.SourceID,
		SourceName: snap.Name,
		Severity:   sev,
		Condition:  rule.Condition,
		Value:      value,
		Message: fmt.Sprintf("[%s] %s fired on %s: %s (value %.2f)",
			sev, rule.Name, name, rule.Condition, value),
		FiredAt: now,
		State:   StateFiring,
	}
	e.active[key] = a
	e.lastFire[key] = now
	cp := *a
	return &cp
}

// resolve closes a firing alert. e.mu must be held.
func (e *Engine) resolve(key string, now time.Time) *Alert {
	a, ok := e.active[key]
	if !ok || a.State != StateFiring {
		return nil
	}
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	cp := *a
	return &cp
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FiredAt.After(out[j].FiredAt)
	})
	return out
}

// FiringCount returns the number of alerts currently firing.
func (e *Engine) FiringCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Wait blocks until all in-flight deliveries have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}
