package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"fx-signal-engine/internal/engine"
)

// SignalPayload is the structured notification body derived from an emitted
// signal.
type SignalPayload struct {
	Symbol            string    `json:"symbol"`
	SignalType        string    `json:"signal_type"`
	OverallConfidence float64   `json:"overall_confidence"`
	EntryPrice        float64   `json:"entry_price"`
	StopLoss          float64   `json:"stop_loss"`
	TakeProfit        []float64 `json:"take_profit"`
	Gate1Pattern      string    `json:"gate1_pattern"`
	Gate1Confidence   float64   `json:"gate1_confidence"`
	Gate2Pattern      string    `json:"gate2_pattern"`
	Gate2Confidence   float64   `json:"gate2_confidence"`
	Gate3Pattern      string    `json:"gate3_pattern"`
	Gate3Confidence   float64   `json:"gate3_confidence"`
	Timestamp         string    `json:"timestamp"`
}

// NewSignalPayload flattens a three-gate result for outbound delivery.
func NewSignalPayload(result *engine.ThreeGateResult) *SignalPayload {
	return &SignalPayload{
		Symbol:            result.Symbol,
		SignalType:        string(result.SignalType),
		OverallConfidence: result.OverallConfidence,
		EntryPrice:        result.EntryPrice,
		StopLoss:          result.StopLoss,
		TakeProfit:        result.TakeProfit,
		Gate1Pattern:      result.Gate1.Pattern,
		Gate1Confidence:   result.Gate1.Confidence,
		Gate2Pattern:      result.Gate2.Pattern,
		Gate2Confidence:   result.Gate2.Confidence,
		Gate3Pattern:      result.Gate3.Pattern,
		Gate3Confidence:   result.Gate3.Confidence,
		Timestamp:         result.Timestamp.UTC().Format(time.RFC3339),
	}
}

// Notifier delivers a signal payload to one outbound channel.
type Notifier interface {
	Send(payload *SignalPayload) error
	Name() string
	IsEnabled() bool
}

// Manager fans a signal out to every enabled notifier. Delivery failures
// are logged and swallowed; notifications never block the pipeline.
type Manager struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

// NewManager creates an empty notification manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{logger: logger}
}

// AddNotifier registers a notification provider.
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// NotifySignal delivers the signal to all providers, reporting whether
// every enabled provider accepted it.
func (m *Manager) NotifySignal(result *engine.ThreeGateResult) bool {
	return m.NotifyPayload(NewSignalPayload(result))
}

// NotifyPayload fans a prebuilt payload out to every enabled notifier.
func (m *Manager) NotifyPayload(payload *SignalPayload) bool {
	ok := true
	for _, n := range m.notifiers {
		if !n.IsEnabled() {
			continue
		}
		if err := n.Send(payload); err != nil {
			m.logger.Warn().Err(err).Str("notifier", n.Name()).
				Str("symbol", payload.Symbol).Msg("notification delivery failed")
			ok = false
		}
	}
	return ok
}

// =============================================================================
// WEBHOOK NOTIFIER
// =============================================================================

// WebhookNotifier posts the raw payload as JSON to a configured URL.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewWebhookNotifier creates a generic JSON webhook notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:     url,
		enabled: url != "",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) IsEnabled() bool { return w.enabled }

func (w *WebhookNotifier) Send(payload *SignalPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends signals via Discord webhook embeds.
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// NewDiscordNotifier creates a Discord webhook notifier.
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		enabled:    webhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string { return "discord" }

func (d *DiscordNotifier) IsEnabled() bool { return d.enabled }

func (d *DiscordNotifier) Send(payload *SignalPayload) error {
	color := 0x00FF00
	if payload.SignalType == "SELL" {
		color = 0xFF0000
	}

	description := fmt.Sprintf(
		"Entry: %.5f\nStop: %.5f\nTargets: %.5f / %.5f / %.5f\nConfidence: %.2f",
		payload.EntryPrice, payload.StopLoss,
		tpAt(payload.TakeProfit, 0), tpAt(payload.TakeProfit, 1), tpAt(payload.TakeProfit, 2),
		payload.OverallConfidence,
	)

	embed := map[string]interface{}{
		"title":       fmt.Sprintf("%s signal: %s", payload.SignalType, payload.Symbol),
		"description": description,
		"color":       color,
		"timestamp":   payload.Timestamp,
		"fields": []map[string]interface{}{
			{"name": "Gate 1", "value": fmt.Sprintf("%s (%.2f)", payload.Gate1Pattern, payload.Gate1Confidence), "inline": true},
			{"name": "Gate 2", "value": fmt.Sprintf("%s (%.2f)", payload.Gate2Pattern, payload.Gate2Confidence), "inline": true},
			{"name": "Gate 3", "value": fmt.Sprintf("%s (%.2f)", payload.Gate3Pattern, payload.Gate3Confidence), "inline": true},
		},
	}

	body, err := json.Marshal(map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to post discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}
	return nil
}

func tpAt(tps []float64, i int) float64 {
	if i < len(tps) {
		return tps[i]
	}
	return 0
}
