// Package alert renders and dispatches one neutral, informational alert per
// drift record to whichever sinks are configured.
package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marcus-qen/agentobservatory/internal/model"
)

const defaultDeliveryHistoryLimit = 100

// forbiddenPhrases must never appear in a rendered alert message; the
// emitter reports drift, it does not judge it.
var forbiddenPhrases = []string{
	"better", "worse", "correct", "incorrect", "optimal", "suboptimal",
	"degraded", "improved", "fix", "should",
}

// Store persists dispatched alerts.
type Store interface {
	InsertAlertLog(ctx context.Context, a model.AlertLog) (model.AlertLog, error)
}

// DeliveryObserver is notified of the outcome of every sink attempt, for
// feeding delivery-rate metrics.
type DeliveryObserver interface {
	RecordAlertDelivery(channel model.AlertChannel, status model.DeliveryStatus, duration time.Duration)
}

// WebhookSink is a single configured webhook endpoint.
type WebhookSink struct {
	URL    string
	Secret string
}

// slackSink and pagerDutySink carry the single configured endpoint for
// each of those optional sinks; unlike webhooks there is at most one of
// each, matching spec §6.4's "Slack webhook URL (optional), PagerDuty
// routing key (optional)".
type slackSink struct {
	URL string
}

type pagerDutySink struct {
	RoutingKey string
}

// pagerDutyEventsURL is the fixed Events API v2 endpoint; only the routing
// key varies per account.
const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// DeliveryRecord captures one sink dispatch attempt for introspection.
type DeliveryRecord struct {
	Timestamp time.Time
	DriftID   string
	Channel   model.AlertChannel
	Status    model.DeliveryStatus
	Error     string
}

// Emitter implements the Alert Emitter component.
type Emitter struct {
	store         Store
	logger        *zap.Logger
	httpClient    *http.Client
	webhooks      []WebhookSink
	slack         *slackSink
	pagerDuty     *pagerDutySink
	observer      DeliveryObserver
	logSinkOn     bool
	databaseSinkOn bool

	deliveryMu sync.Mutex
	deliveries []DeliveryRecord
}

// Option configures an Emitter at construction time.
type Option func(*Emitter)

// WithWebhook registers a webhook sink. May be called multiple times.
func WithWebhook(sink WebhookSink) Option {
	return func(e *Emitter) { e.webhooks = append(e.webhooks, sink) }
}

// WithSlackWebhook registers the Slack incoming-webhook sink.
func WithSlackWebhook(url string) Option {
	return func(e *Emitter) { e.slack = &slackSink{URL: url} }
}

// WithPagerDuty registers the PagerDuty Events API v2 sink under routingKey.
func WithPagerDuty(routingKey string) Option {
	return func(e *Emitter) { e.pagerDuty = &pagerDutySink{RoutingKey: routingKey} }
}

// WithDeliveryObserver registers a metrics-feed observer.
func WithDeliveryObserver(o DeliveryObserver) Option {
	return func(e *Emitter) { e.observer = o }
}

// WithoutLogSink disables the always-on log sink, for tests.
func WithoutLogSink() Option {
	return func(e *Emitter) { e.logSinkOn = false }
}

// New constructs an Emitter. The log and database sinks are enabled by
// default; webhook sinks are opt-in via WithWebhook.
func New(store Store, logger *zap.Logger, opts ...Option) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Emitter{
		store:          store,
		logger:         logger,
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		logSinkOn:      true,
		databaseSinkOn: true,
		deliveries:     make([]DeliveryRecord, 0, defaultDeliveryHistoryLimit),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit renders one alert for d and dispatches it to every configured sink.
// Each sink is attempted independently; a failing sink is logged and
// recorded with delivery_status=failed but never prevents the others, or
// subsequent drift processing, from proceeding.
func (e *Emitter) Emit(ctx context.Context, d model.BehaviorDrift) {
	message := RenderMessage(d)
	if violation := firstForbiddenPhrase(message); violation != "" {
		e.logger.Error("rendered alert message contains a forbidden evaluative phrase, suppressing dispatch",
			zap.String("drift_id", d.DriftID), zap.String("phrase", violation))
		return
	}

	if e.logSinkOn {
		e.dispatchLog(d, message)
	}
	if e.databaseSinkOn {
		e.dispatchDatabase(ctx, d, message)
	}
	for _, wh := range e.webhooks {
		e.dispatchWebhook(ctx, d, message, wh)
	}
	if e.slack != nil {
		e.dispatchSlack(ctx, d, message)
	}
	if e.pagerDuty != nil {
		e.dispatchPagerDuty(ctx, d, message)
	}
}

// RenderMessage produces the neutral, fully-templated alert text. It names
// only facts: the agent identity triple, metric, values, statistics, and
// timing. Never a judgement of whether the change is desirable.
func RenderMessage(d model.BehaviorDrift) string {
	return fmt.Sprintf(
		"drift detected for agent=%s version=%s environment=%s metric=%s "+
			"baseline_value=%.4f observed_value=%.4f delta_percent=%.2f severity=%s "+
			"baseline_id=%s test_method=%s significance=%.6f detected_at=%s "+
			"observation_window=[%s,%s] observation_sample_size=%d",
		d.AgentID, d.AgentVersion, d.Environment, d.Metric,
		d.BaselineValue, d.ObservedValue, d.DeltaPercent, d.Severity,
		d.BaselineID, d.TestMethod, d.Significance, d.DetectedAt.Format(time.RFC3339),
		d.ObservationWindowStart.Format(time.RFC3339), d.ObservationWindowEnd.Format(time.RFC3339),
		d.ObservationSampleSize,
	)
}

func firstForbiddenPhrase(message string) string {
	lower := strings.ToLower(message)
	for _, phrase := range forbiddenPhrases {
		if strings.Contains(lower, phrase) {
			return phrase
		}
	}
	return ""
}

func (e *Emitter) dispatchLog(d model.BehaviorDrift, message string) {
	started := time.Now()
	e.logger.Info("drift alert", zap.String("drift_id", d.DriftID), zap.String("message", message))
	e.record(d.DriftID, model.AlertChannelLog, model.DeliveryStatusSent, time.Since(started), nil)
}

func (e *Emitter) dispatchDatabase(ctx context.Context, d model.BehaviorDrift, message string) {
	started := time.Now()
	a := model.AlertLog{
		AlertID:      uuid.NewString(),
		DriftID:      d.DriftID,
		AlertMessage: message,
		AlertChannel: model.AlertChannelDatabase,
		SentAt:       time.Now().UTC(),
	}
	a.DeliveryStatus = model.DeliveryStatusSent
	if _, err := e.store.InsertAlertLog(ctx, a); err != nil {
		e.logger.Error("database alert sink failed", zap.String("drift_id", d.DriftID), zap.Error(err))
		e.record(d.DriftID, model.AlertChannelDatabase, model.DeliveryStatusFailed, time.Since(started), err)
		return
	}
	e.record(d.DriftID, model.AlertChannelDatabase, model.DeliveryStatusSent, time.Since(started), nil)
}

func (e *Emitter) dispatchWebhook(ctx context.Context, d model.BehaviorDrift, message string, sink WebhookSink) {
	started := time.Now()
	body, err := json.Marshal(struct {
		DriftID string `json:"drift_id"`
		Message string `json:"message"`
		Drift   model.BehaviorDrift `json:"drift"`
	}{DriftID: d.DriftID, Message: message, Drift: d})
	if err != nil {
		e.logger.Error("marshal webhook payload failed", zap.Error(err))
		e.record(d.DriftID, model.AlertChannelWebhook, model.DeliveryStatusFailed, time.Since(started), err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sink.URL, bytes.NewReader(body))
	if err != nil {
		e.logger.Error("build webhook request failed", zap.Error(err))
		e.record(d.DriftID, model.AlertChannelWebhook, model.DeliveryStatusFailed, time.Since(started), err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if sink.Secret != "" {
		req.Header.Set("X-Observatory-Signature", signature(sink.Secret, body))
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Error("webhook delivery failed", zap.String("drift_id", d.DriftID), zap.Error(err))
		e.record(d.DriftID, model.AlertChannelWebhook, model.DeliveryStatusFailed, time.Since(started), err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("webhook returned status %d", resp.StatusCode)
		e.logger.Error("webhook delivery rejected", zap.String("drift_id", d.DriftID), zap.Error(err))
		e.record(d.DriftID, model.AlertChannelWebhook, model.DeliveryStatusFailed, time.Since(started), err)
		return
	}
	e.record(d.DriftID, model.AlertChannelWebhook, model.DeliveryStatusSent, time.Since(started), nil)
}

func (e *Emitter) dispatchSlack(ctx context.Context, d model.BehaviorDrift, message string) {
	started := time.Now()
	body, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: message})
	if err != nil {
		e.record(d.DriftID, model.AlertChannelWebhook, model.DeliveryStatusFailed, time.Since(started), err)
		return
	}
	e.postJSON(ctx, d, e.slack.URL, body, time.Since(started))
}

// dispatchPagerDuty sends a trigger event per the Events API v2 payload
// shape; severity maps directly since both vocabularies already use
// low/medium/high/critical-style bands (critical is never emitted here).
func (e *Emitter) dispatchPagerDuty(ctx context.Context, d model.BehaviorDrift, message string) {
	started := time.Now()
	body, err := json.Marshal(struct {
		RoutingKey string `json:"routing_key"`
		EventAction string `json:"event_action"`
		Payload     struct {
			Summary  string `json:"summary"`
			Source   string `json:"source"`
			Severity string `json:"severity"`
		} `json:"payload"`
	}{
		RoutingKey:  e.pagerDuty.RoutingKey,
		EventAction: "trigger",
		Payload: struct {
			Summary  string `json:"summary"`
			Source   string `json:"source"`
			Severity string `json:"severity"`
		}{Summary: message, Source: d.AgentID, Severity: string(d.Severity)},
	})
	if err != nil {
		e.record(d.DriftID, model.AlertChannelWebhook, model.DeliveryStatusFailed, time.Since(started), err)
		return
	}
	e.postJSON(ctx, d, pagerDutyEventsURL, body, time.Since(started))
}

func (e *Emitter) postJSON(ctx context.Context, d model.BehaviorDrift, url string, body []byte, elapsed time.Duration) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		e.record(d.DriftID, model.AlertChannelWebhook, model.DeliveryStatusFailed, elapsed, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Error("sink delivery failed", zap.String("drift_id", d.DriftID), zap.String("url", url), zap.Error(err))
		e.record(d.DriftID, model.AlertChannelWebhook, model.DeliveryStatusFailed, elapsed, err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("sink returned status %d", resp.StatusCode)
		e.logger.Error("sink delivery rejected", zap.String("drift_id", d.DriftID), zap.String("url", url), zap.Error(err))
		e.record(d.DriftID, model.AlertChannelWebhook, model.DeliveryStatusFailed, elapsed, err)
		return
	}
	e.record(d.DriftID, model.AlertChannelWebhook, model.DeliveryStatusSent, elapsed, nil)
}

func (e *Emitter) record(driftID string, channel model.AlertChannel, status model.DeliveryStatus, duration time.Duration, err error) {
	rec := DeliveryRecord{Timestamp: time.Now().UTC(), DriftID: driftID, Channel: channel, Status: status}
	if err != nil {
		rec.Error = err.Error()
	}

	e.deliveryMu.Lock()
	e.deliveries = append(e.deliveries, rec)
	if len(e.deliveries) > defaultDeliveryHistoryLimit {
		offset := len(e.deliveries) - defaultDeliveryHistoryLimit
		copy(e.deliveries, e.deliveries[offset:])
		e.deliveries = e.deliveries[:defaultDeliveryHistoryLimit]
	}
	e.deliveryMu.Unlock()

	if e.observer != nil {
		e.observer.RecordAlertDelivery(channel, status, duration)
	}
}

// Deliveries returns the most recent delivery attempts, newest first.
func (e *Emitter) Deliveries(limit int) []DeliveryRecord {
	e.deliveryMu.Lock()
	defer e.deliveryMu.Unlock()

	if limit <= 0 || limit > len(e.deliveries) {
		limit = len(e.deliveries)
	}
	out := make([]DeliveryRecord, 0, limit)
	for i := len(e.deliveries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, e.deliveries[i])
	}
	return out
}

func signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
