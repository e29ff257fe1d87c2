package dbschema

import "database/sql"

// Migrations is the ordered list of schema changes for this service. New
// migrations are appended with a strictly increasing Version; existing
// entries are never edited once released.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "create agent_runs and children",
		Up:          migration1Up,
		Down:        migration1Down,
	},
	{
		Version:     2,
		Description: "create behavior_profiles, behavior_baselines, behavior_drift, alert_log",
		Up:          migration2Up,
		Down:        migration2Down,
	},
	{
		Version:     3,
		Description: "enforce baseline immutability and conditional unique active index",
		Up:          migration3Up,
		Down:        migration3Down,
	},
}

func migration1Up(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE agent_runs (
			run_id UUID PRIMARY KEY,
			agent_id TEXT NOT NULL CHECK (char_length(agent_id) <= 255),
			agent_version TEXT NOT NULL CHECK (char_length(agent_version) <= 100),
			environment TEXT NOT NULL CHECK (environment IN ('production','staging','development')),
			status TEXT NOT NULL CHECK (status IN ('success','failure','partial')),
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (ended_at IS NULL OR ended_at >= started_at)
		)`,
		`CREATE INDEX idx_agent_runs_lookup ON agent_runs (agent_id, agent_version, environment, started_at DESC)`,
		`CREATE TABLE agent_steps (
			step_id UUID PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES agent_runs(run_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL CHECK (seq >= 0),
			step_type TEXT NOT NULL CHECK (step_type IN ('plan','retrieve','tool','respond','other')),
			name TEXT NOT NULL,
			latency_ms BIGINT NOT NULL CHECK (latency_ms >= 0),
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			CHECK (ended_at >= started_at),
			UNIQUE (run_id, seq)
		)`,
		`CREATE TABLE agent_failures (
			failure_id UUID PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES agent_runs(run_id) ON DELETE CASCADE,
			step_id UUID REFERENCES agent_steps(step_id) ON DELETE SET NULL,
			failure_type TEXT NOT NULL CHECK (failure_type IN ('tool','model','retrieval','orchestration')),
			failure_code TEXT NOT NULL CHECK (char_length(failure_code) > 0),
			message TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX idx_agent_failures_one_per_run ON agent_failures (run_id)`,
		`CREATE TABLE agent_decisions (
			decision_id UUID PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES agent_runs(run_id) ON DELETE CASCADE,
			step_id UUID REFERENCES agent_steps(step_id) ON DELETE SET NULL,
			decision_type TEXT NOT NULL,
			selected TEXT NOT NULL,
			reason_code TEXT NOT NULL,
			confidence DOUBLE PRECISION CHECK (confidence IS NULL OR (confidence >= 0 AND confidence <= 1)),
			candidates JSONB NOT NULL DEFAULT '[]',
			metadata JSONB NOT NULL DEFAULT '{}',
			recorded_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE agent_quality_signals (
			signal_id UUID PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES agent_runs(run_id) ON DELETE CASCADE,
			step_id UUID REFERENCES agent_steps(step_id) ON DELETE SET NULL,
			signal_type TEXT NOT NULL,
			signal_code TEXT NOT NULL,
			value BOOLEAN NOT NULL,
			weight DOUBLE PRECISION CHECK (weight IS NULL OR (weight >= 0 AND weight <= 1)),
			metadata JSONB NOT NULL DEFAULT '{}',
			recorded_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func migration1Down(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS agent_quality_signals, agent_decisions, agent_failures, agent_steps, agent_runs CASCADE`)
	return err
}

func migration2Up(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE behavior_profiles (
			profile_id UUID PRIMARY KEY,
			agent_id TEXT NOT NULL,
			agent_version TEXT NOT NULL,
			environment TEXT NOT NULL CHECK (environment IN ('production','staging','development')),
			window_start TIMESTAMPTZ NOT NULL,
			window_end TIMESTAMPTZ NOT NULL,
			sample_size INTEGER NOT NULL CHECK (sample_size >= 0),
			decision_distributions JSONB NOT NULL,
			signal_distributions JSONB NOT NULL,
			latency_stats JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (agent_id, agent_version, environment, window_start, window_end)
		)`,
		`CREATE TABLE behavior_baselines (
			baseline_id UUID PRIMARY KEY,
			profile_id UUID NOT NULL REFERENCES behavior_profiles(profile_id) ON DELETE CASCADE,
			agent_id TEXT NOT NULL,
			agent_version TEXT NOT NULL,
			environment TEXT NOT NULL CHECK (environment IN ('production','staging','development')),
			baseline_type TEXT NOT NULL CHECK (baseline_type IN ('version','time_window','manual')),
			approved_by TEXT,
			approved_at TIMESTAMPTZ,
			description TEXT NOT NULL CHECK (char_length(description) <= 200),
			is_active BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE behavior_drift (
			drift_id UUID PRIMARY KEY,
			baseline_id UUID NOT NULL REFERENCES behavior_baselines(baseline_id) ON DELETE CASCADE,
			agent_id TEXT NOT NULL,
			agent_version TEXT NOT NULL,
			environment TEXT NOT NULL CHECK (environment IN ('production','staging','development')),
			drift_type TEXT NOT NULL CHECK (drift_type IN ('decision','signal','latency')),
			metric TEXT NOT NULL,
			baseline_value DOUBLE PRECISION NOT NULL,
			observed_value DOUBLE PRECISION NOT NULL,
			delta DOUBLE PRECISION NOT NULL,
			delta_percent DOUBLE PRECISION NOT NULL,
			significance DOUBLE PRECISION NOT NULL CHECK (significance >= 0 AND significance <= 1),
			test_method TEXT NOT NULL CHECK (test_method IN ('chi_square','percent_threshold')),
			severity TEXT NOT NULL CHECK (severity IN ('low','medium','high')),
			detected_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			observation_window_start TIMESTAMPTZ NOT NULL,
			observation_window_end TIMESTAMPTZ NOT NULL,
			observation_sample_size INTEGER NOT NULL CHECK (observation_sample_size >= 0),
			resolved_at TIMESTAMPTZ
		)`,
		`CREATE TABLE alert_log (
			alert_id UUID PRIMARY KEY,
			drift_id UUID NOT NULL REFERENCES behavior_drift(drift_id) ON DELETE CASCADE,
			alert_message TEXT NOT NULL,
			alert_channel TEXT NOT NULL CHECK (alert_channel IN ('log','database','webhook')),
			sent_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			delivery_status TEXT NOT NULL CHECK (delivery_status IN ('sent','failed','pending','retry'))
		)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func migration2Down(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS alert_log, behavior_drift, behavior_baselines, behavior_profiles CASCADE`)
	return err
}

func migration3Up(tx *sql.Tx) error {
	stmts := []string{
		// At most one active baseline per (agent_id, agent_version, environment).
		`CREATE UNIQUE INDEX idx_one_active_baseline ON behavior_baselines (agent_id, agent_version, environment) WHERE is_active`,
		// Reject any mutation of a baseline row other than is_active toggling
		// and a first-time approval set; redundant with the service-layer
		// check per spec's defense-in-depth guidance.
		`CREATE OR REPLACE FUNCTION enforce_baseline_immutability() RETURNS trigger AS $$
		BEGIN
			IF NEW.profile_id <> OLD.profile_id
				OR NEW.agent_id <> OLD.agent_id
				OR NEW.agent_version <> OLD.agent_version
				OR NEW.environment <> OLD.environment
				OR NEW.baseline_type <> OLD.baseline_type
				OR NEW.description <> OLD.description
				OR NEW.created_at <> OLD.created_at THEN
				RAISE EXCEPTION 'behavior_baselines rows are immutable except is_active and first-time approval' USING ERRCODE = '23505';
			END IF;
			IF OLD.approved_by IS NOT NULL AND NEW.approved_by IS DISTINCT FROM OLD.approved_by THEN
				RAISE EXCEPTION 'baseline approval may only be set once' USING ERRCODE = '23505';
			END IF;
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`CREATE TRIGGER trg_baseline_immutability
			BEFORE UPDATE ON behavior_baselines
			FOR EACH ROW EXECUTE FUNCTION enforce_baseline_immutability()`,
		// resolved_at is the only mutable column on behavior_drift.
		`CREATE OR REPLACE FUNCTION enforce_drift_immutability() RETURNS trigger AS $$
		BEGIN
			IF NEW.baseline_id <> OLD.baseline_id
				OR NEW.metric <> OLD.metric
				OR NEW.baseline_value <> OLD.baseline_value
				OR NEW.observed_value <> OLD.observed_value
				OR NEW.detected_at <> OLD.detected_at THEN
				RAISE EXCEPTION 'behavior_drift rows are immutable except resolved_at' USING ERRCODE = '23505';
			END IF;
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`CREATE TRIGGER trg_drift_immutability
			BEFORE UPDATE ON behavior_drift
			FOR EACH ROW EXECUTE FUNCTION enforce_drift_immutability()`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func migration3Down(tx *sql.Tx) error {
	stmts := []string{
		`DROP TRIGGER IF EXISTS trg_drift_immutability ON behavior_drift`,
		`DROP FUNCTION IF EXISTS enforce_drift_immutability`,
		`DROP TRIGGER IF EXISTS trg_baseline_immutability ON behavior_baselines`,
		`DROP FUNCTION IF EXISTS enforce_baseline_immutability`,
		`DROP INDEX IF EXISTS idx_one_active_baseline`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
