package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/marcus-qen/agentobservatory/internal/model"
)

func TestRecordIngest_IncrementsCounter(t *testing.T) {
	RecordIngest("success", "created")
	got := testutil.ToFloat64(RunsIngestedTotal.WithLabelValues("success", "created"))
	if got < 1 {
		t.Errorf("expected counter >= 1, got %v", got)
	}
}

func TestRecordDrift_IncrementsCounter(t *testing.T) {
	RecordDrift("decision", "medium")
	got := testutil.ToFloat64(DriftDetectedTotal.WithLabelValues("decision", "medium"))
	if got < 1 {
		t.Errorf("expected counter >= 1, got %v", got)
	}
}

func TestAlertObserver_RecordsDeliveryMetrics(t *testing.T) {
	var obs AlertObserver
	obs.RecordAlertDelivery(model.AlertChannelWebhook, model.DeliveryStatusSent, 50*time.Millisecond)
	got := testutil.ToFloat64(AlertDeliveryTotal.WithLabelValues("webhook", "sent"))
	if got < 1 {
		t.Errorf("expected counter >= 1, got %v", got)
	}
}

func TestSetActiveBaselines_SetsGauge(t *testing.T) {
	SetActiveBaselines("production", 3)
	got := testutil.ToFloat64(ActiveBaselinesGauge.WithLabelValues("production"))
	if got != 3 {
		t.Errorf("expected gauge 3, got %v", got)
	}
}
