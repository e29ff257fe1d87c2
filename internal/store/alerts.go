package store

import (
	"context"
	"fmt"

	"github.com/marcus-qen/agentobservatory/internal/model"
)

// InsertAlertLog records one dispatched alert for one (drift, channel)
// pair: the "insert an alert_log row" sink from spec §4.6.
func (s *Store) InsertAlertLog(ctx context.Context, a model.AlertLog) (model.AlertLog, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO alert_log (alert_id, drift_id, alert_message, alert_channel, delivery_status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING alert_id, sent_at`,
		a.AlertID, a.DriftID, a.AlertMessage, a.AlertChannel, a.DeliveryStatus,
	)
	if err := row.Scan(&a.AlertID, &a.SentAt); err != nil {
		return model.AlertLog{}, fmt.Errorf("insert alert log: %w", err)
	}
	return a, nil
}
