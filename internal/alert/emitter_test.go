package alert

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marcus-qen/agentobservatory/internal/model"
)

type fakeAlertStore struct {
	inserted []model.AlertLog
	failNext bool
}

func (f *fakeAlertStore) InsertAlertLog(ctx context.Context, a model.AlertLog) (model.AlertLog, error) {
	if f.failNext {
		f.failNext = false
		return model.AlertLog{}, errTest
	}
	f.inserted = append(f.inserted, a)
	return a, nil
}

var errTest = &testError{"database sink failure"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func testDrift() model.BehaviorDrift {
	return model.BehaviorDrift{
		DriftID:                "d1",
		BaselineID:             "b1",
		AgentID:                "demo",
		AgentVersion:           "1.0.0",
		Environment:            model.EnvironmentProduction,
		DriftType:              model.DriftTypeDecision,
		Metric:                 "tool_selection.api",
		BaselineValue:          0.65,
		ObservedValue:          0.82,
		DeltaPercent:           26.2,
		Significance:           0.01,
		TestMethod:             model.TestMethodChiSquare,
		Severity:               model.SeverityMedium,
		DetectedAt:             time.Now().UTC(),
		ObservationWindowStart: time.Now().Add(-24 * time.Hour),
		ObservationWindowEnd:   time.Now(),
		ObservationSampleSize:  120,
	}
}

func TestRenderMessage_ContainsNoForbiddenPhrase(t *testing.T) {
	msg := RenderMessage(testDrift())
	if phrase := firstForbiddenPhrase(msg); phrase != "" {
		t.Errorf("rendered message contains forbidden phrase %q: %s", phrase, msg)
	}
}

func TestRenderMessage_ContainsRequiredFields(t *testing.T) {
	msg := RenderMessage(testDrift())
	for _, want := range []string{"demo", "1.0.0", "production", "tool_selection.api", "0.6500", "0.8200", "medium", "b1", "chi_square"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected message to contain %q, got: %s", want, msg)
		}
	}
}

func TestEmit_DatabaseSinkRecordsAlert(t *testing.T) {
	store := &fakeAlertStore{}
	e := New(store, nil)
	e.Emit(context.Background(), testDrift())

	if len(store.inserted) != 1 {
		t.Fatalf("expected 1 alert inserted, got %d", len(store.inserted))
	}
	if store.inserted[0].DeliveryStatus != model.DeliveryStatusSent {
		t.Errorf("expected sent status, got %v", store.inserted[0].DeliveryStatus)
	}
}

func TestEmit_DatabaseSinkFailureDoesNotPanic(t *testing.T) {
	store := &fakeAlertStore{failNext: true}
	e := New(store, nil)
	e.Emit(context.Background(), testDrift())

	deliveries := e.Deliveries(10)
	var sawFailure bool
	for _, d := range deliveries {
		if d.Channel == model.AlertChannelDatabase && d.Status == model.DeliveryStatusFailed {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Error("expected a recorded database delivery failure")
	}
}

func TestEmit_WebhookSinkDeliversAndSigns(t *testing.T) {
	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get("X-Observatory-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := &fakeAlertStore{}
	e := New(store, nil, WithWebhook(WebhookSink{URL: server.URL, Secret: "shh"}))
	e.Emit(context.Background(), testDrift())

	select {
	case sig := <-received:
		if sig == "" {
			t.Error("expected a non-empty HMAC signature header")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for webhook delivery")
	}
}

func TestEmit_WebhookFailureIsolatedFromDatabaseSink(t *testing.T) {
	store := &fakeAlertStore{}
	e := New(store, nil, WithWebhook(WebhookSink{URL: "http://127.0.0.1:0/unreachable"}))
	e.Emit(context.Background(), testDrift())

	if len(store.inserted) != 1 {
		t.Errorf("expected database sink to still succeed despite webhook failure, got %d inserts", len(store.inserted))
	}
}
