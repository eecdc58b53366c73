package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitalops/vitalops/server/internal/config"
	"github.com/vitalops/vitalops/server/internal/vitals"
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
	Condition  string     `json:"condition"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// compiledRule is a configured alert rule with its condition parsed.
type compiledRule struct {
	config.AlertRule
	cond vitals.Condition
}

// compileRules parses every rule condition. Rules whose condition does not
// parse are logged and left out.
func compileRules(in []config.AlertRule) []compiledRule {
	out := make([]compiledRule, 0, len(in))
	for _, r := range in {
		c, err := vitals.ParseCondition(r.Condition)
		if err != nil {
			slog.Warn("alerts: skipping rule", "rule", r.Name, "err", err)
			continue
		}
		out = append(out, compiledRule{AlertRule: r, cond: c})
	}
	return out
}

// Engine evaluates alert rules against incoming readings and delivers
// webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []compiledRule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: rule name
	lastFire map[string]time.Time // last fire time per rule (for cooldown)
	history  []*Alert             // recently resolved alerts

	client     *http.Client
	attempts   uint
	retryDelay time.Duration
	now        func() time.Time
	wg         sync.WaitGroup
}

// New creates an Engine from the server alert configuration.
// An Engine with empty rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		rules:      compileRules(cfg.Rules),
		webhooks:   cfg.Webhooks,
		active:     make(map[string]*Alert),
		lastFire:   make(map[string]time.Time),
		client:     &http.Client{Timeout: 10 * time.Second},
		attempts:   3,
		retryDelay: time.Second,
		now:        time.Now,
	}
}

// SetConfig replaces the rules and webhook targets, e.g. after a config
// reload. Firing alerts whose rule no longer exists are dropped.
func (e *Engine) SetConfig(cfg config.AlertsConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = compileRules(cfg.Rules)
	e.webhooks = cfg.Webhooks

	names := make(map[string]struct{}, len(cfg.Rules))
	for _, r := range cfg.Rules {
		names[r.Name] = struct{}{}
	}
	for key := range e.active {
		if _, ok := names[key]; !ok {
			delete(e.active, key)
		}
	}
}

// Evaluate tests all configured rules against r and returns copies of the
// alerts that fired. Firing alerts whose condition is now false are resolved.
// Webhook delivery happens asynchronously.
func (e *Engine) Evaluate(r vitals.StoredReading) []*Alert {
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()

	if len(rules) == 0 {
		return nil
	}

	var fired []*Alert
	now := e.now()
	for _, rule := range rules {
		fires, value := rule.cond.Eval(r.Reading)

		e.mu.Lock()
		if fires {
			cooldown := rule.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			// A rule that stays true re-fires once per cooldown as a reminder.
			if now.Sub(e.lastFire[rule.Name]) <= cooldown {
				e.mu.Unlock()
				continue
			}

			sev := rule.Severity
			if sev == "" {
				sev = "warning"
			}
			a := &Alert{
				ID:        uuid.NewString(),
				RuleName:  rule.Name,
				Condition: rule.Condition,
				Severity:  sev,
				Value:     value,
				Message: fmt.Sprintf("[%s] %s fired: %s (value %.2f at %s)",
					sev, rule.Name, rule.Condition, value, r.TimestampServer.Format(time.RFC3339)),
				FiredAt: now,
				State:   StateFiring,
			}
			e.active[rule.Name] = a
			e.lastFire[rule.Name] = now
			alertCopy := *a
			e.mu.Unlock()

			slog.Warn("alert fired",
				"rule", rule.Name,
				"value", value,
				"severity", sev,
			)
			fired = append(fired, &alertCopy)
			e.dispatch(&alertCopy)
			continue
		}

		a, ok := e.active[rule.Name]
		if !ok {
			e.mu.Unlock()
			continue
		}
		resolved := now
		a.State = StateResolved
		a.ResolvedAt = &resolved
		delete(e.active, rule.Name)

		e.history = append(e.history, a)
		if len(e.history) > maxHistoryLen {
			e.history = e.history[len(e.history)-maxHistoryLen:]
		}
		alertCopy := *a
		e.mu.Unlock()

		slog.Info("alert resolved", "rule", rule.Name)
		e.dispatch(&alertCopy)
	}
	return fired
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
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
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Wait blocks until all in-flight webhook deliveries have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) dispatch(a *Alert) {
	e.mu.Lock()
	webhooks := e.webhooks
	e.mu.Unlock()
	if len(webhooks) == 0 {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(webhooks, a)
	}()
}
