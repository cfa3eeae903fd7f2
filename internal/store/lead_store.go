package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Priya8975/leadgateway/internal/domain"
)

// CreateLead inserts a newly ingested lead in RECEIVED status, along with
// the single-value-per-name snapshot of its inbound headers taken at
// ingest time for audit.
func (s *PostgresStore) CreateLead(ctx context.Context, id, correlationID string, rawPayload map[string]any, headers map[string]string) (*domain.Lead, error) {
	raw, err := json.Marshal(rawPayload)
	if err != nil {
		return nil, fmt.Errorf("encoding raw payload: %w", err)
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("encoding header snapshot: %w", err)
	}

	var lead domain.Lead
	var rawOut, headersOut, normalizedOut, customerOut []byte
	err = s.pool.QueryRow(ctx, `
		INSERT INTO leads (id, status, raw_payload, headers, correlation_id, received_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, status, raw_payload, headers, normalized_payload, customer_payload, reject_reason, omitted_attributes, correlation_id, received_at, updated_at
	`, id, domain.StatusReceived, raw, headersJSON, correlationID).Scan(
		&lead.ID, &lead.Status, &rawOut, &headersOut, &normalizedOut, &customerOut,
		&lead.RejectReason, &lead.OmittedAttributes, &lead.CorrelationID, &lead.ReceivedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting lead: %w", err)
	}
	if err := unmarshalOptional(rawOut, &lead.RawPayload); err != nil {
		return nil, err
	}
	if len(headersOut) > 0 {
		if err := json.Unmarshal(headersOut, &lead.Headers); err != nil {
			return nil, fmt.Errorf("decoding header snapshot: %w", err)
		}
	}
	if err := unmarshalOptional(normalizedOut, &lead.NormalizedPayload); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(customerOut, &lead.CustomerPayload); err != nil {
		return nil, err
	}
	return &lead, nil
}

func unmarshalOptional(raw []byte, out *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding payload column: %w", err)
	}
	return nil
}

// GetLead returns a single lead by ID, or nil if it does not exist.
func (s *PostgresStore) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	var lead domain.Lead
	var rawOut, normalizedOut, customerOut []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, status, raw_payload, normalized_payload, customer_payload, reject_reason, omitted_attributes, correlation_id, received_at, updated_at
		FROM leads WHERE id = $1
	`, id).Scan(
		&lead.ID, &lead.Status, &rawOut, &normalizedOut, &customerOut,
		&lead.RejectReason, &lead.OmittedAttributes, &lead.CorrelationID, &lead.ReceivedAt, &lead.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying lead: %w", err)
	}
	if err := unmarshalOptional(rawOut, &lead.RawPayload); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(normalizedOut, &lead.NormalizedPayload); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(customerOut, &lead.CustomerPayload); err != nil {
		return nil, err
	}
	return &lead, nil
}

// ListLeads returns leads with optional status filtering, newest first.
func (s *PostgresStore) ListLeads(ctx context.Context, status string, limit int) ([]domain.Lead, error) {
	query := `SELECT id, status, raw_payload, normalized_payload, customer_payload, reject_reason, omitted_attributes, correlation_id, received_at, updated_at FROM leads`
	args := []interface{}{}
	argIdx := 1

	if status != "" {
		query += fmt.Sprintf(" WHERE status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}

	query += " ORDER BY received_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying leads: %w", err)
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		var lead domain.Lead
		var rawOut, normalizedOut, customerOut []byte
		if err := rows.Scan(
			&lead.ID, &lead.Status, &rawOut, &normalizedOut, &customerOut,
			&lead.RejectReason, &lead.OmittedAttributes, &lead.CorrelationID, &lead.ReceivedAt, &lead.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning lead: %w", err)
		}
		if err := unmarshalOptional(rawOut, &lead.RawPayload); err != nil {
			return nil, err
		}
		if err := unmarshalOptional(normalizedOut, &lead.NormalizedPayload); err != nil {
			return nil, err
		}
		if err := unmarshalOptional(customerOut, &lead.CustomerPayload); err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if leads == nil {
		leads = []domain.Lead{}
	}
	return leads, nil
}

// ScreeningResult carries the combined outcome of validation,
// normalization, and mapping for a single atomic write. Folding all three
// stage outputs into one UPDATE is what keeps the "customer_payload is
// non-null whenever status has ever reached READY" invariant true across a
// crash: the lead never passes through READY without its customer payload
// already committed alongside it.
type ScreeningResult struct {
	Status            domain.Status
	NormalizedPayload map[string]any
	CustomerPayload   map[string]any
	OmittedAttributes []string
	RejectReason      *string
}

// CompleteScreening validates the requested transition against the lead's
// current status and, in the same transaction, persists whichever
// screening outputs apply: the rejection code for REJECTED, the normalized
// payload alone for PERMANENTLY_FAILED (mapping never produced a customer
// payload), or all three documents together for READY.
func (s *PostgresStore) CompleteScreening(ctx context.Context, id string, r ScreeningResult) error {
	var normalized, customer []byte
	if r.NormalizedPayload != nil {
		encoded, err := json.Marshal(r.NormalizedPayload)
		if err != nil {
			return fmt.Errorf("encoding normalized payload: %w", err)
		}
		normalized = encoded
	}
	if r.CustomerPayload != nil {
		encoded, err := json.Marshal(r.CustomerPayload)
		if err != nil {
			return fmt.Errorf("encoding customer payload: %w", err)
		}
		customer = encoded
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning screening transition: %w", err)
	}
	defer tx.Rollback(ctx)

	var from domain.Status
	if err := tx.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1 FOR UPDATE`, id).Scan(&from); err != nil {
		return fmt.Errorf("reading lead status: %w", err)
	}
	if err := domain.Transition(from, r.Status); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE leads
		SET status = $2, normalized_payload = $3, customer_payload = $4,
		    omitted_attributes = $5, reject_reason = $6, updated_at = NOW()
		WHERE id = $1
	`, id, r.Status, normalized, customer, r.OmittedAttributes, r.RejectReason)
	if err != nil {
		return fmt.Errorf("persisting screening result: %w", err)
	}

	return tx.Commit(ctx)
}

// UpdateLeadStatus transitions a lead to a new status with no accompanying
// attempt record, validating the edge against the lead's current state
// first. Used only for the exhausted-before-dispatch guard in the
// processor's delivery stage; every transition paired with a delivery
// outcome goes through RecordAttemptAndTransition instead.
func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, id string, to domain.Status) error {
	var from domain.Status
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning status transition: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1 FOR UPDATE`, id).Scan(&from); err != nil {
		return fmt.Errorf("reading lead status: %w", err)
	}
	if err := domain.Transition(from, to); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE leads SET status = $2, updated_at = NOW() WHERE id = $1`, id, to); err != nil {
		return fmt.Errorf("updating lead status: %w", err)
	}
	return tx.Commit(ctx)
}

// ListOrphanedReceivedLeads returns leads stuck in RECEIVED for longer
// than olderThanSeconds — the window the orphan sweeper reclaims, per the
// gateway's at-least-once screening guarantee.
func (s *PostgresStore) ListOrphanedReceivedLeads(ctx context.Context, olderThanSeconds int) ([]domain.Lead, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, status, raw_payload, normalized_payload, customer_payload, reject_reason, omitted_attributes, correlation_id, received_at, updated_at
		FROM leads
		WHERE status = $1 AND received_at < NOW() - ($2 || ' seconds')::interval
	`, domain.StatusReceived, olderThanSeconds)
	if err != nil {
		return nil, fmt.Errorf("querying orphaned leads: %w", err)
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		var lead domain.Lead
		var rawOut, normalizedOut, customerOut []byte
		if err := rows.Scan(
			&lead.ID, &lead.Status, &rawOut, &normalizedOut, &customerOut,
			&lead.RejectReason, &lead.OmittedAttributes, &lead.CorrelationID, &lead.ReceivedAt, &lead.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning orphaned lead: %w", err)
		}
		if err := unmarshalOptional(rawOut, &lead.RawPayload); err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if leads == nil {
		leads = []domain.Lead{}
	}
	return leads, nil
}
