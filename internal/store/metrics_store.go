package store

import (
	"context"
	"fmt"
)

// LeadMetrics holds aggregated counts for the lead lifecycle, used by the
// health/observability surface to report counts-by-status and delivery
// performance without the caller writing its own aggregate SQL.
type LeadMetrics struct {
	TotalLeads            int     `json:"total_leads"`
	ReceivedCount         int     `json:"received_count"`
	RejectedCount         int     `json:"rejected_count"`
	ReadyCount            int     `json:"ready_count"`
	DeliveredCount        int     `json:"delivered_count"`
	FailedCount           int     `json:"failed_count"`
	PermanentlyFailedCount int    `json:"permanently_failed_count"`
	TotalDeliveryAttempts int     `json:"total_delivery_attempts"`
	DeliverySuccessRate   float64 `json:"delivery_success_rate"`
	AvgResponseMs         float64 `json:"avg_response_ms"`
}

// GetLeadMetrics returns aggregated counts across the lead status machine
// plus delivery-attempt performance figures.
func (s *PostgresStore) GetLeadMetrics(ctx context.Context) (*LeadMetrics, error) {
	var m LeadMetrics

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'RECEIVED') AS received,
			COUNT(*) FILTER (WHERE status = 'REJECTED') AS rejected,
			COUNT(*) FILTER (WHERE status = 'READY') AS ready,
			COUNT(*) FILTER (WHERE status = 'DELIVERED') AS delivered,
			COUNT(*) FILTER (WHERE status = 'FAILED') AS failed,
			COUNT(*) FILTER (WHERE status = 'PERMANENTLY_FAILED') AS permanently_failed
		FROM leads
	`).Scan(&m.TotalLeads, &m.ReceivedCount, &m.RejectedCount, &m.ReadyCount,
		&m.DeliveredCount, &m.FailedCount, &m.PermanentlyFailedCount)
	if err != nil {
		return nil, fmt.Errorf("querying lead counts: %w", err)
	}

	var successCount int
	err = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'success'),
			COALESCE(AVG(response_time_ms) FILTER (WHERE response_time_ms > 0), 0)
		FROM delivery_attempts
	`).Scan(&m.TotalDeliveryAttempts, &successCount, &m.AvgResponseMs)
	if err != nil {
		return nil, fmt.Errorf("querying delivery metrics: %w", err)
	}

	if m.TotalDeliveryAttempts > 0 {
		m.DeliverySuccessRate = float64(successCount) / float64(m.TotalDeliveryAttempts) * 100
	}

	return &m, nil
}
