// Package drift implements the Drift Detection Engine: comparing an
// observation-window profile against an active baseline using chi-square
// (categorical distributions) and percent-threshold (latency scalars).
package drift

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the thresholds listed in spec §4.5. Any field left zero
// after loading a document is backfilled from DefaultConfig, mirroring the
// zero-value-fill pattern used for anomaly-detection configuration.
type Config struct {
	DecisionDrift struct {
		PValueThreshold  float64 `yaml:"p_value_threshold"`
		MinDeltaPercent  float64 `yaml:"min_delta_percent"`
	} `yaml:"decision_drift"`
	SignalDrift struct {
		PValueThreshold float64 `yaml:"p_value_threshold"`
		MinDeltaPercent float64 `yaml:"min_delta_percent"`
	} `yaml:"signal_drift"`
	LatencyDrift struct {
		MinDeltaPercent float64 `yaml:"min_delta_percent"`
	} `yaml:"latency_drift"`
	SeverityThresholds struct {
		Low struct {
			MaxDeltaPercent float64 `yaml:"max_delta_percent"`
		} `yaml:"low"`
		Medium struct {
			MaxDeltaPercent float64 `yaml:"max_delta_percent"`
		} `yaml:"medium"`
	} `yaml:"severity_thresholds"`
	MinimumSampleSizes struct {
		Profile         int `yaml:"profile"`
		DriftDetection  int `yaml:"drift_detection"`
	} `yaml:"minimum_sample_sizes"`

	// ProfileBuildSchedule and DriftDetectSchedule are cron(5) expressions
	// consumed by the analytics-worker's scheduler; not part of spec §4.5's
	// threshold list but carried by the same document per SPEC_FULL §6.4.
	ProfileBuildSchedule string `yaml:"profile_build_schedule,omitempty"`
	DriftDetectSchedule  string `yaml:"drift_detect_schedule,omitempty"`
}

// DefaultConfig returns the threshold defaults named in spec §4.5.
func DefaultConfig() Config {
	var c Config
	c.DecisionDrift.PValueThreshold = 0.05
	c.DecisionDrift.MinDeltaPercent = 10.0
	c.SignalDrift.PValueThreshold = 0.05
	c.SignalDrift.MinDeltaPercent = 15.0
	c.LatencyDrift.MinDeltaPercent = 20.0
	c.SeverityThresholds.Low.MaxDeltaPercent = 15.0
	c.SeverityThresholds.Medium.MaxDeltaPercent = 30.0
	c.MinimumSampleSizes.Profile = 100
	c.MinimumSampleSizes.DriftDetection = 50
	c.ProfileBuildSchedule = "0 */6 * * *"
	c.DriftDetectSchedule = "15 */6 * * *"
	return c
}

// LoadConfig reads a YAML threshold document from path and backfills any
// zero-valued field from DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read drift config: %w", err)
	}

	loaded := DefaultConfig()
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return cfg, fmt.Errorf("parse drift config: %w", err)
	}
	return backfillZero(loaded, cfg), nil
}

// backfillZero replaces any zero-valued numeric/string field of loaded
// with the corresponding field from fallback.
func backfillZero(loaded, fallback Config) Config {
	if loaded.DecisionDrift.PValueThreshold == 0 {
		loaded.DecisionDrift.PValueThreshold = fallback.DecisionDrift.PValueThreshold
	}
	if loaded.DecisionDrift.MinDeltaPercent == 0 {
		loaded.DecisionDrift.MinDeltaPercent = fallback.DecisionDrift.MinDeltaPercent
	}
	if loaded.SignalDrift.PValueThreshold == 0 {
		loaded.SignalDrift.PValueThreshold = fallback.SignalDrift.PValueThreshold
	}
	if loaded.SignalDrift.MinDeltaPercent == 0 {
		loaded.SignalDrift.MinDeltaPercent = fallback.SignalDrift.MinDeltaPercent
	}
	if loaded.LatencyDrift.MinDeltaPercent == 0 {
		loaded.LatencyDrift.MinDeltaPercent = fallback.LatencyDrift.MinDeltaPercent
	}
	if loaded.SeverityThresholds.Low.MaxDeltaPercent == 0 {
		loaded.SeverityThresholds.Low.MaxDeltaPercent = fallback.SeverityThresholds.Low.MaxDeltaPercent
	}
	if loaded.SeverityThresholds.Medium.MaxDeltaPercent == 0 {
		loaded.SeverityThresholds.Medium.MaxDeltaPercent = fallback.SeverityThresholds.Medium.MaxDeltaPercent
	}
	if loaded.MinimumSampleSizes.Profile == 0 {
		loaded.MinimumSampleSizes.Profile = fallback.MinimumSampleSizes.Profile
	}
	if loaded.MinimumSampleSizes.DriftDetection == 0 {
		loaded.MinimumSampleSizes.DriftDetection = fallback.MinimumSampleSizes.DriftDetection
	}
	if loaded.ProfileBuildSchedule == "" {
		loaded.ProfileBuildSchedule = fallback.ProfileBuildSchedule
	}
	if loaded.DriftDetectSchedule == "" {
		loaded.DriftDetectSchedule = fallback.DriftDetectSchedule
	}
	return loaded
}
