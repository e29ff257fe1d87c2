package drift

import "testing"

func TestDefaultConfig_MatchesDocumentedThresholds(t *testing.T) {
	c := DefaultConfig()
	if c.DecisionDrift.PValueThreshold != 0.05 {
		t.Errorf("decision p_value_threshold = %v, want 0.05", c.DecisionDrift.PValueThreshold)
	}
	if c.DecisionDrift.MinDeltaPercent != 10.0 {
		t.Errorf("decision min_delta_percent = %v, want 10.0", c.DecisionDrift.MinDeltaPercent)
	}
	if c.SignalDrift.PValueThreshold != 0.05 {
		t.Errorf("signal p_value_threshold = %v, want 0.05", c.SignalDrift.PValueThreshold)
	}
	if c.SignalDrift.MinDeltaPercent != 15.0 {
		t.Errorf("signal min_delta_percent = %v, want 15.0", c.SignalDrift.MinDeltaPercent)
	}
	if c.LatencyDrift.MinDeltaPercent != 20.0 {
		t.Errorf("latency min_delta_percent = %v, want 20.0", c.LatencyDrift.MinDeltaPercent)
	}
	if c.SeverityThresholds.Low.MaxDeltaPercent != 15.0 {
		t.Errorf("low severity threshold = %v, want 15.0", c.SeverityThresholds.Low.MaxDeltaPercent)
	}
	if c.SeverityThresholds.Medium.MaxDeltaPercent != 30.0 {
		t.Errorf("medium severity threshold = %v, want 30.0", c.SeverityThresholds.Medium.MaxDeltaPercent)
	}
	if c.MinimumSampleSizes.Profile != 100 {
		t.Errorf("minimum profile sample size = %v, want 100", c.MinimumSampleSizes.Profile)
	}
	if c.MinimumSampleSizes.DriftDetection != 50 {
		t.Errorf("minimum drift detection sample size = %v, want 50", c.MinimumSampleSizes.DriftDetection)
	}
}

func TestLoadConfig_EmptyPathReturnsDefaults(t *testing.T) {
	c, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != DefaultConfig() {
		t.Errorf("expected defaults for empty path, got %+v", c)
	}
}

func TestLoadConfig_MissingFileErrors(t *testing.T) {
	_, err := LoadConfig("/nonexistent/drift-config.yaml")
	if err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestBackfillZero_FillsOnlyZeroFields(t *testing.T) {
	fallback := DefaultConfig()
	loaded := DefaultConfig()
	loaded.DecisionDrift.MinDeltaPercent = 0
	loaded.SeverityThresholds.Low.MaxDeltaPercent = 25.0

	got := backfillZero(loaded, fallback)
	if got.DecisionDrift.MinDeltaPercent != fallback.DecisionDrift.MinDeltaPercent {
		t.Errorf("expected zero field backfilled to %v, got %v", fallback.DecisionDrift.MinDeltaPercent, got.DecisionDrift.MinDeltaPercent)
	}
	if got.SeverityThresholds.Low.MaxDeltaPercent != 25.0 {
		t.Errorf("expected non-zero field preserved at 25.0, got %v", got.SeverityThresholds.Low.MaxDeltaPercent)
	}
}
