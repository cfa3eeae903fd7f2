package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Priya8975/leadgateway/internal/domain"
)

// dbExec is satisfied by both *pgxpool.Pool and pgx.Tx, so
// insertDeliveryAttempt can run standalone or inside a caller's
// transaction without duplicating the INSERT statement.
type dbExec interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DeliveryAttemptRecord holds the data needed to insert one row of the
// delivery audit trail.
type DeliveryAttemptRecord struct {
	LeadID         string
	AttemptNumber  int
	Outcome        string
	HTTPStatusCode *int
	ResponseBody   string
	ResponseTimeMs int
	ErrorMessage   string
	Retriable      bool
}

func (s *PostgresStore) RecordDeliveryAttempt(ctx context.Context, rec DeliveryAttemptRecord) error {
	_, err := insertDeliveryAttempt(ctx, s.pool, rec)
	return err
}

func insertDeliveryAttempt(ctx context.Context, q dbExec, rec DeliveryAttemptRecord) (pgconn.CommandTag, error) {
	var respBody *string
	if rec.ResponseBody != "" {
		respBody = &rec.ResponseBody
	}
	var errMsg *string
	if rec.ErrorMessage != "" {
		errMsg = &rec.ErrorMessage
	}

	tag, err := q.Exec(ctx, `
		INSERT INTO delivery_attempts (lead_id, attempt_number, outcome, http_status_code, response_body, response_time_ms, error_message, retriable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.LeadID, rec.AttemptNumber, rec.Outcome, rec.HTTPStatusCode, respBody, rec.ResponseTimeMs, errMsg, rec.Retriable)
	if err != nil {
		return tag, fmt.Errorf("inserting delivery attempt: %w", err)
	}
	return tag, nil
}

// RecordAttemptAndTransition is the audit contract's atomic pair: insert
// the DeliveryAttempt row for this outcome and move the lead to its new
// status in one transaction, so a crash between the two can never leave
// an attempt unrecorded or a status advanced without evidence for it.
func (s *PostgresStore) RecordAttemptAndTransition(ctx context.Context, leadID string, to domain.Status, rec DeliveryAttemptRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning delivery transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var from domain.Status
	if err := tx.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1 FOR UPDATE`, leadID).Scan(&from); err != nil {
		return fmt.Errorf("reading lead status: %w", err)
	}
	if err := domain.Transition(from, to); err != nil {
		return err
	}

	if _, err := insertDeliveryAttempt(ctx, tx, rec); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE leads SET status = $2, updated_at = NOW() WHERE id = $1`, leadID, to); err != nil {
		return fmt.Errorf("updating lead status: %w", err)
	}

	return tx.Commit(ctx)
}

// ListDeliveryAttempts returns the audit trail for a lead, newest first.
func (s *PostgresStore) ListDeliveryAttempts(ctx context.Context, leadID string, limit int) ([]domain.DeliveryAttempt, error) {
	query := `
		SELECT id, lead_id, attempt_number, outcome, http_status_code, response_body, response_time_ms, error_message, retriable, created_at
		FROM delivery_attempts WHERE lead_id = $1 ORDER BY attempt_number DESC`
	args := []interface{}{leadID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.DeliveryAttempt
	for rows.Next() {
		var a domain.DeliveryAttempt
		if err := rows.Scan(
			&a.ID, &a.LeadID, &a.AttemptNumber, &a.Outcome,
			&a.HTTPStatusCode, &a.ResponseBody, &a.ResponseTimeMs,
			&a.ErrorMessage, &a.Retriable, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning delivery attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if attempts == nil {
		attempts = []domain.DeliveryAttempt{}
	}
	return attempts, nil
}

// CountDeliveryAttempts returns the number of attempts recorded for a
// lead. This, not a counter on the jobs row, is the gateway's
// authoritative attempt count: a job can be re-enqueued without a new
// attempt row ever being written, e.g. when the process crashes between
// claiming the job and sending the request.
func (s *PostgresStore) CountDeliveryAttempts(ctx context.Context, leadID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM delivery_attempts WHERE lead_id = $1`, leadID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting delivery attempts: %w", err)
	}
	return count, nil
}
