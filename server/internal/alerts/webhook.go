package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/avast/retry-go"

	"github.com/vitalops/vitalops/server/internal/config"
)

// encoders build the request body for each supported webhook type.
var encoders = map[string]func(a *Alert) ([]byte, error){
	"slack": slackBody,
	"teams": teamsBody,
	"http":  httpBody,
}

// deliver posts a to every target in turn, retrying each one e.attempts
// times. Failures are logged only.
func (e *Engine) deliver(webhooks []config.WebhookConfig, a *Alert) {
	for _, wh := range webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		encode, ok := encoders[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}
		body, err := encode(a)
		if err != nil {
			slog.Error("alerts: encode webhook body", "type", wh.Type, "err", err)
			continue
		}

		log := slog.With("type", wh.Type, "rule", a.RuleName, "state", a.State)
		err = retry.Do(
			func() error { return e.post(url, body) },
			retry.Attempts(e.attempts),
			retry.Delay(e.retryDelay),
			retry.OnRetry(func(n uint, err error) {
				log.Debug("alerts: webhook attempt failed", "attempt", n+1, "err", err)
			}),
		)
		if err != nil {
			log.Error("alerts: webhook delivery failed", "err", err)
			continue
		}
		log.Debug("alerts: webhook delivered")
	}
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func slackBody(a *Alert) ([]byte, error) {
	return json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s", label(a), a.Message),
	})
}

// teamsBody renders a legacy Office 365 connector MessageCard.
func teamsBody(a *Alert) ([]byte, error) {
	return json.Marshal(map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": colour(a),
		"summary":    a.RuleName,
		"title":      "VitalOps alert: " + a.RuleName,
		"text":       label(a) + " " + a.Message,
	})
}

func httpBody(a *Alert) ([]byte, error) {
	return json.Marshal(map[string]any{"alert": a})
}

func label(a *Alert) string {
	if a.State == StateResolved {
		return "[RESOLVED]"
	}
	switch a.Severity {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	}
	return "[INFO]"
}

func colour(a *Alert) string {
	if a.State == StateResolved {
		return "2EB886"
	}
	switch a.Severity {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	}
	return "00D4FF"
}
