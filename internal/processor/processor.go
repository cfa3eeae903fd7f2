// Package processor runs a lead through screening (validate + normalize +
// map) and, once READY, through delivery with retry and backoff,
// recording every attempt and driving the lead's status machine.
package processor

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/Priya8975/leadgateway/internal/delivery"
	"github.com/Priya8975/leadgateway/internal/document"
	"github.com/Priya8975/leadgateway/internal/domain"
	"github.com/Priya8975/leadgateway/internal/mapper"
	"github.com/Priya8975/leadgateway/internal/normalizer"
	"github.com/Priya8975/leadgateway/internal/queue"
	"github.com/Priya8975/leadgateway/internal/store"
	"github.com/Priya8975/leadgateway/internal/validator"
)

// StatusNotifier is implemented by the websocket hub; the processor
// reports status changes through it so connected dashboards update live.
// Defined here (the consumer) rather than in the websocket package, per
// the same interface-ownership convention used for the queue claim.
type StatusNotifier interface {
	NotifyLeadStatus(leadID string, status domain.Status)
}

// LeadStore is the slice of *store.PostgresStore the processor depends
// on, declared here so tests can exercise Screen/DeliverJob against an
// in-memory fake instead of a live database.
type LeadStore interface {
	GetLead(ctx context.Context, id string) (*domain.Lead, error)
	CompleteScreening(ctx context.Context, id string, result store.ScreeningResult) error
	UpdateLeadStatus(ctx context.Context, id string, to domain.Status) error
	RecordAttemptAndTransition(ctx context.Context, leadID string, to domain.Status, rec store.DeliveryAttemptRecord) error
	CountDeliveryAttempts(ctx context.Context, leadID string) (int, error)
}

type noopNotifier struct{}

func (noopNotifier) NotifyLeadStatus(string, domain.Status) {}

// BackoffSchedule computes how long to wait after failed attempt n
// (1-indexed) before attempt n+1, following the gateway's base * 2^(n-1)
// exponential schedule with jitter: Delay(1) is base, Delay(2) is 2*base.
type BackoffSchedule struct {
	Base       time.Duration
	MaxAttempts int
}

func (b BackoffSchedule) Delay(attempt int) time.Duration {
	backoff := time.Duration(float64(b.Base) * math.Pow(2, float64(attempt-1)))
	jitter := time.Duration(rand.IntN(1000)) * time.Millisecond
	return backoff + jitter
}

type Config struct {
	Validator *validator.Validator
	Normalizer *normalizer.Normalizer
	Mapper    *mapper.Mapper
	Client    *delivery.Client
	Breaker   *delivery.CircuitBreaker
	Store     LeadStore
	Queue     queue.Queue
	Backoff   BackoffSchedule
	Notifier  StatusNotifier
	Logger    *slog.Logger
}

type Processor struct {
	cfg Config
}

func New(cfg Config) *Processor {
	if cfg.Notifier == nil {
		cfg.Notifier = noopNotifier{}
	}
	return &Processor{cfg: cfg}
}

// Screen runs validation, normalization, and mapping against a freshly
// ingested lead and moves it to REJECTED, PERMANENTLY_FAILED, or READY. It
// returns the lead's resulting state so ProcessJob can decide, within the
// same job dispatch, whether to fall through into the delivery stage —
// screening never enqueues a job of its own.
func (p *Processor) Screen(ctx context.Context, leadID string) (*domain.Lead, error) {
	lead, err := p.cfg.Store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil || lead.Status != domain.StatusReceived {
		return lead, nil
	}

	raw := document.Value{Kind: document.KindObject, Obj: toDocumentMap(lead.RawPayload)}

	result := p.cfg.Validator.Validate(raw)
	if !result.Pass {
		code := result.Code
		if err := p.cfg.Store.CompleteScreening(ctx, leadID, store.ScreeningResult{
			Status:       domain.StatusRejected,
			RejectReason: &code,
		}); err != nil {
			return nil, err
		}
		p.cfg.Notifier.NotifyLeadStatus(leadID, domain.StatusRejected)
		lead.Status = domain.StatusRejected
		lead.RejectReason = &code
		return lead, nil
	}

	normalized := p.cfg.Normalizer.Normalize(raw)
	normalizedNative, _ := normalized.ToNative().(map[string]any)

	mapped := p.cfg.Mapper.Map(normalized)
	if !mapped.OK {
		// Mapping failure on a validated lead means a required downstream
		// attribute could not be satisfied; the lead never passes through
		// READY because no customer payload was ever produced for it.
		reason := "mapping failed"
		if len(mapped.Reasons) > 0 {
			reason = mapped.Reasons[0]
		}
		if err := p.cfg.Store.CompleteScreening(ctx, leadID, store.ScreeningResult{
			Status:            domain.StatusPermanentlyFailed,
			NormalizedPayload: normalizedNative,
		}); err != nil {
			return nil, err
		}
		p.cfg.Logger.Warn("mapping failed, lead cannot be delivered", "lead_id", leadID, "reason", reason)
		p.cfg.Notifier.NotifyLeadStatus(leadID, domain.StatusPermanentlyFailed)
		lead.Status = domain.StatusPermanentlyFailed
		lead.NormalizedPayload = normalizedNative
		return lead, nil
	}

	customerNative, _ := mapped.CustomerPayload.ToNative().(map[string]any)
	if err := p.cfg.Store.CompleteScreening(ctx, leadID, store.ScreeningResult{
		Status:            domain.StatusReady,
		NormalizedPayload: normalizedNative,
		CustomerPayload:   customerNative,
		OmittedAttributes: mapped.Omitted,
	}); err != nil {
		return nil, err
	}

	p.cfg.Notifier.NotifyLeadStatus(leadID, domain.StatusReady)

	lead.Status = domain.StatusReady
	lead.NormalizedPayload = normalizedNative
	lead.CustomerPayload = customerNative
	lead.OmittedAttributes = mapped.Omitted
	return lead, nil
}

// ProcessJob drives one claimed process_lead job through whichever stage
// its lead is currently in. A lead still in RECEIVED runs the screening
// stages (validate, normalize, map) first; if screening reaches READY, the
// same dispatch falls straight through to the delivery stage below rather
// than re-enqueuing — the queue hands a worker one job for the lead's
// entire per-job pipeline, not one job per stage. A lead already past
// screening (a redispatched retry) goes straight to delivery.
func (p *Processor) ProcessJob(ctx context.Context, job queue.Job) {
	lead, err := p.cfg.Store.GetLead(ctx, job.LeadID)
	if err != nil || lead == nil {
		p.cfg.Logger.Error("failed to load lead for job", "job_id", job.ID, "lead_id", job.LeadID, "error", err)
		if ferr := p.cfg.Queue.Fail(ctx, job.ID); ferr != nil {
			p.cfg.Logger.Error("failed to close out job for missing lead", "job_id", job.ID, "error", ferr)
		}
		return
	}

	if lead.Status == domain.StatusReceived {
		screened, err := p.Screen(ctx, job.LeadID)
		if err != nil {
			p.cfg.Logger.Error("screening failed", "lead_id", job.LeadID, "error", err)
			return
		}
		if screened == nil || screened.Status != domain.StatusReady {
			if cerr := p.cfg.Queue.Complete(ctx, job.ID); cerr != nil {
				p.cfg.Logger.Error("failed to complete screened job", "job_id", job.ID, "error", cerr)
			}
			return
		}
	}

	p.DeliverJob(ctx, job)
}

// DeliverJob attempts delivery for a single claimed job, classifying the
// outcome and either completing, retrying, or permanently failing it. The
// attempt number it records is always recomputed from the count of
// DeliveryAttempt rows already on the lead, never trusted from the job's
// own bookkeeping — a job can be reclaimed and redispatched without a
// corresponding attempt row ever landing, so the queue's counter and the
// audit trail's counter are allowed to drift.
func (p *Processor) DeliverJob(ctx context.Context, job queue.Job) {
	lead, err := p.cfg.Store.GetLead(ctx, job.LeadID)
	if err != nil || lead == nil {
		p.cfg.Logger.Error("failed to load lead for delivery", "lead_id", job.LeadID, "error", err)
		return
	}

	n, err := p.cfg.Store.CountDeliveryAttempts(ctx, job.LeadID)
	if err != nil {
		p.cfg.Logger.Error("failed to count delivery attempts", "lead_id", job.LeadID, "error", err)
		return
	}
	if n >= p.cfg.Backoff.MaxAttempts {
		if err := p.cfg.Store.UpdateLeadStatus(ctx, job.LeadID, domain.StatusPermanentlyFailed); err != nil {
			p.cfg.Logger.Error("failed to mark lead permanently failed", "lead_id", job.LeadID, "error", err)
		}
		p.cfg.Notifier.NotifyLeadStatus(job.LeadID, domain.StatusPermanentlyFailed)
		if err := p.cfg.Queue.Fail(ctx, job.ID); err != nil {
			p.cfg.Logger.Error("failed to close out exhausted job", "job_id", job.ID, "error", err)
		}
		return
	}
	attemptNo := n + 1

	state, allowed := p.cfg.Breaker.AllowRequest(ctx)
	if !allowed {
		p.cfg.Logger.Warn("circuit open, deferring delivery", "lead_id", job.LeadID, "state", state)
		if err := p.cfg.Queue.Retry(ctx, job.ID, attemptNo, time.Now().Add(p.cfg.Backoff.Base)); err != nil {
			p.cfg.Logger.Error("failed to defer job behind open circuit", "lead_id", job.LeadID, "error", err)
		}
		return
	}

	outcome := p.cfg.Client.Deliver(ctx, lead.CustomerPayload)

	if outcome.Success != nil {
		p.cfg.Breaker.RecordSuccess(ctx)
		rec := store.DeliveryAttemptRecord{
			LeadID:         job.LeadID,
			AttemptNumber:  attemptNo,
			Outcome:        domain.OutcomeSuccess,
			HTTPStatusCode: &outcome.Success.StatusCode,
			ResponseBody:   outcome.Success.Body,
			ResponseTimeMs: outcome.Success.ResponseTimeMs,
		}
		if err := p.cfg.Store.RecordAttemptAndTransition(ctx, job.LeadID, domain.StatusDelivered, rec); err != nil {
			p.cfg.Logger.Error("failed to record delivered attempt", "lead_id", job.LeadID, "error", err)
		}
		p.cfg.Notifier.NotifyLeadStatus(job.LeadID, domain.StatusDelivered)

		if err := p.cfg.Queue.Complete(ctx, job.ID); err != nil {
			p.cfg.Logger.Error("failed to complete job", "job_id", job.ID, "error", err)
		}
		return
	}

	f := outcome.Failure
	p.cfg.Breaker.RecordFailure(ctx)

	// The attempt's new status is decided here, before the record is
	// written, so the insert and the transition land in the same
	// RecordAttemptAndTransition call — never two round trips that could
	// commit independently.
	nextStatus := domain.StatusFailed
	exhausted := !f.Retriable || attemptNo >= p.cfg.Backoff.MaxAttempts
	if exhausted {
		nextStatus = domain.StatusPermanentlyFailed
	}

	rec := store.DeliveryAttemptRecord{
		LeadID:         job.LeadID,
		AttemptNumber:  attemptNo,
		Outcome:        domain.OutcomeFailure,
		HTTPStatusCode: f.StatusCode,
		ResponseBody:   f.Body,
		ResponseTimeMs: f.ResponseTimeMs,
		ErrorMessage:   f.Message,
		Retriable:      f.Retriable,
	}
	if err := p.cfg.Store.RecordAttemptAndTransition(ctx, job.LeadID, nextStatus, rec); err != nil {
		p.cfg.Logger.Error("failed to record failed attempt", "lead_id", job.LeadID, "error", err)
	}
	p.cfg.Notifier.NotifyLeadStatus(job.LeadID, nextStatus)

	if exhausted {
		if err := p.cfg.Queue.Fail(ctx, job.ID); err != nil {
			p.cfg.Logger.Error("failed to close out exhausted job", "job_id", job.ID, "error", err)
		}
		p.cfg.Logger.Error("delivery permanently failed", "lead_id", job.LeadID, "total_attempts", attemptNo)
		return
	}

	nextAttempt := attemptNo + 1
	runAfter := time.Now().Add(p.cfg.Backoff.Delay(attemptNo))
	if err := p.cfg.Queue.Retry(ctx, job.ID, nextAttempt, runAfter); err != nil {
		p.cfg.Logger.Error("failed to schedule retry", "job_id", job.ID, "error", err)
	}
	p.cfg.Logger.Warn("delivery failed, retry scheduled",
		"lead_id", job.LeadID, "attempt", attemptNo, "next_attempt", nextAttempt, "run_after", runAfter)
}

func toDocumentMap(m map[string]any) map[string]document.Value {
	out := make(map[string]document.Value, len(m))
	for k, v := range m {
		out[k] = toDocumentValue(v)
	}
	return out
}

func toDocumentValue(v any) document.Value {
	switch t := v.(type) {
	case nil:
		return document.Null()
	case bool:
		return document.Boolean(t)
	case float64:
		return document.Number(t)
	case string:
		return document.String(t)
	case []any:
		items := make([]document.Value, len(t))
		for i, e := range t {
			items[i] = toDocumentValue(e)
		}
		return document.Array(items)
	case map[string]any:
		return document.Object(toDocumentMap(t))
	default:
		return document.Null()
	}
}
