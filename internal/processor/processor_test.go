package processor

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/leadgateway/internal/delivery"
	"github.com/Priya8975/leadgateway/internal/domain"
	"github.com/Priya8975/leadgateway/internal/mapper"
	"github.com/Priya8975/leadgateway/internal/normalizer"
	"github.com/Priya8975/leadgateway/internal/queue"
	"github.com/Priya8975/leadgateway/internal/store"
	"github.com/Priya8975/leadgateway/internal/validator"
)

type fakeStore struct {
	lead     *domain.Lead
	attempts []store.DeliveryAttemptRecord
}

func (f *fakeStore) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	if f.lead == nil || f.lead.ID != id {
		return nil, nil
	}
	cp := *f.lead
	return &cp, nil
}

func (f *fakeStore) CompleteScreening(ctx context.Context, id string, r store.ScreeningResult) error {
	if err := domain.Transition(f.lead.Status, r.Status); err != nil {
		return err
	}
	f.lead.Status = r.Status
	f.lead.NormalizedPayload = r.NormalizedPayload
	f.lead.CustomerPayload = r.CustomerPayload
	f.lead.OmittedAttributes = r.OmittedAttributes
	f.lead.RejectReason = r.RejectReason
	return nil
}

func (f *fakeStore) UpdateLeadStatus(ctx context.Context, id string, to domain.Status) error {
	if err := domain.Transition(f.lead.Status, to); err != nil {
		return err
	}
	f.lead.Status = to
	return nil
}

func (f *fakeStore) RecordAttemptAndTransition(ctx context.Context, leadID string, to domain.Status, rec store.DeliveryAttemptRecord) error {
	if err := domain.Transition(f.lead.Status, to); err != nil {
		return err
	}
	f.attempts = append(f.attempts, rec)
	f.lead.Status = to
	return nil
}

func (f *fakeStore) CountDeliveryAttempts(ctx context.Context, leadID string) (int, error) {
	return len(f.attempts), nil
}

type fakeQueue struct {
	enqueued  []queue.Job
	retried   []queue.Job
	failed    []string
	completed []string
}

func (f *fakeQueue) Enqueue(ctx context.Context, leadID string, attempt int, runAfter time.Time) error {
	f.enqueued = append(f.enqueued, queue.Job{ID: "job-1", LeadID: leadID, Attempt: attempt, RunAfter: runAfter})
	return nil
}
func (f *fakeQueue) Dequeue(ctx context.Context) (*queue.Job, error) { return nil, nil }
func (f *fakeQueue) Complete(ctx context.Context, jobID string) error {
	f.completed = append(f.completed, jobID)
	return nil
}
func (f *fakeQueue) Retry(ctx context.Context, jobID string, nextAttempt int, runAfter time.Time) error {
	f.retried = append(f.retried, queue.Job{ID: jobID, Attempt: nextAttempt, RunAfter: runAfter})
	return nil
}
func (f *fakeQueue) Fail(ctx context.Context, jobID string) error {
	f.failed = append(f.failed, jobID)
	return nil
}
func (f *fakeQueue) Health(ctx context.Context) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testBreaker(t *testing.T) *delivery.CircuitBreaker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return delivery.NewCircuitBreaker(client, testLogger(), 5, 30*time.Second)
}

func baseProcessorConfig(t *testing.T, fs *fakeStore, fq *fakeQueue, client *delivery.Client) Config {
	return Config{
		Validator: validator.New(validator.Config{
			ZipField:               "zipcode",
			ZipPattern:             regexp.MustCompile(`^\d{5}$`),
			ZipRejectCode:          "zip_out_of_area",
			OwnerField:             "house.is_owner",
			NotOwnerRejectCode:     "not_homeowner",
			RequiredFields:         []string{"phone"},
			MissingFieldRejectCode: "missing_required_field",
		}),
		Normalizer: normalizer.New(normalizer.Config{PhoneKeys: []string{"phone"}}),
		Mapper:     mapper.New(mapper.Config{PhoneField: "phone", ProductName: "acme"}),
		Client:     client,
		Breaker:    testBreaker(t),
		Store:      fs,
		Queue:      fq,
		Backoff:    BackoffSchedule{Base: time.Millisecond, MaxAttempts: 3},
		Logger:     testLogger(),
	}
}

func TestScreen_RejectsFailingValidation(t *testing.T) {
	fs := &fakeStore{lead: &domain.Lead{
		ID:         "lead-1",
		Status:     domain.StatusReceived,
		RawPayload: map[string]any{"zipcode": "ABCDE"},
	}}
	fq := &fakeQueue{}
	p := New(baseProcessorConfig(t, fs, fq, delivery.New(delivery.Config{EndpointURL: "http://example.invalid"})))

	lead, err := p.Screen(context.Background(), "lead-1")
	if err != nil {
		t.Fatalf("screen failed: %v", err)
	}
	if lead.Status != domain.StatusRejected {
		t.Errorf("expected REJECTED, got %s", lead.Status)
	}
	if lead.RejectReason == nil || *lead.RejectReason != "zip_out_of_area" {
		t.Errorf("expected zip_out_of_area reject reason, got %v", lead.RejectReason)
	}
	if len(fq.enqueued) != 0 {
		t.Error("screening must never enqueue a job itself")
	}
}

func TestScreen_ReadyLeadNeverEnqueuesItsOwnJob(t *testing.T) {
	fs := &fakeStore{lead: &domain.Lead{
		ID:     "lead-1",
		Status: domain.StatusReceived,
		RawPayload: map[string]any{
			"zipcode": "90210",
			"house":   map[string]any{"is_owner": true},
			"phone":   "(555) 123-4567",
		},
	}}
	fq := &fakeQueue{}
	p := New(baseProcessorConfig(t, fs, fq, delivery.New(delivery.Config{EndpointURL: "http://example.invalid"})))

	lead, err := p.Screen(context.Background(), "lead-1")
	if err != nil {
		t.Fatalf("screen failed: %v", err)
	}
	if lead.Status != domain.StatusReady {
		t.Errorf("expected READY, got %s", lead.Status)
	}
	if lead.CustomerPayload["phone"] != "5551234567" {
		t.Errorf("expected normalized phone in customer payload, got %v", lead.CustomerPayload["phone"])
	}
	// Screening never talks to the queue: a READY lead falls straight through
	// to delivery within the same job dispatch, driven by ProcessJob below.
	if len(fq.enqueued) != 0 {
		t.Error("screening must never enqueue a job itself")
	}
}

func TestScreen_AlreadyScreenedLeadIsNoop(t *testing.T) {
	fs := &fakeStore{lead: &domain.Lead{ID: "lead-1", Status: domain.StatusDelivered}}
	fq := &fakeQueue{}
	p := New(baseProcessorConfig(t, fs, fq, delivery.New(delivery.Config{EndpointURL: "http://example.invalid"})))

	lead, err := p.Screen(context.Background(), "lead-1")
	if err != nil {
		t.Fatalf("screen failed: %v", err)
	}
	if lead.Status != domain.StatusDelivered {
		t.Errorf("expected screening to leave an already-screened lead alone, got %s", lead.Status)
	}
	if len(fq.enqueued) != 0 {
		t.Error("expected no job enqueued for an already-screened lead")
	}
}

func TestProcessJob_ReceivedLeadRunsScreeningThenDeliveryInOneDispatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	fs := &fakeStore{lead: &domain.Lead{
		ID:     "lead-1",
		Status: domain.StatusReceived,
		RawPayload: map[string]any{
			"zipcode": "90210",
			"house":   map[string]any{"is_owner": true},
			"phone":   "(555) 123-4567",
		},
	}}
	fq := &fakeQueue{}
	p := New(baseProcessorConfig(t, fs, fq, delivery.New(delivery.Config{EndpointURL: server.URL})))

	p.ProcessJob(context.Background(), queue.Job{ID: "job-1", LeadID: "lead-1", Attempt: 1})

	if fs.lead.Status != domain.StatusDelivered {
		t.Errorf("expected a RECEIVED lead's first dispatch to carry it all the way to DELIVERED, got %s", fs.lead.Status)
	}
	if len(fq.enqueued) != 0 {
		t.Error("the per-job pipeline must not re-enqueue between screening and delivery")
	}
	if len(fq.completed) != 1 {
		t.Error("expected the job to be completed")
	}
}

func TestProcessJob_RejectedOnScreeningCompletesJobWithoutDelivering(t *testing.T) {
	fs := &fakeStore{lead: &domain.Lead{
		ID:         "lead-1",
		Status:     domain.StatusReceived,
		RawPayload: map[string]any{"zipcode": "ABCDE"},
	}}
	fq := &fakeQueue{}
	p := New(baseProcessorConfig(t, fs, fq, delivery.New(delivery.Config{EndpointURL: "http://example.invalid"})))

	p.ProcessJob(context.Background(), queue.Job{ID: "job-1", LeadID: "lead-1", Attempt: 1})

	if fs.lead.Status != domain.StatusRejected {
		t.Errorf("expected REJECTED, got %s", fs.lead.Status)
	}
	if len(fq.completed) != 1 {
		t.Error("expected the job to be completed once screening terminates the lead")
	}
	if len(fs.attempts) != 0 {
		t.Error("expected no delivery attempt for a rejected lead")
	}
}

func TestProcessJob_MissingLeadFailsJobPermanently(t *testing.T) {
	fs := &fakeStore{}
	fq := &fakeQueue{}
	p := New(baseProcessorConfig(t, fs, fq, delivery.New(delivery.Config{EndpointURL: "http://example.invalid"})))

	p.ProcessJob(context.Background(), queue.Job{ID: "job-1", LeadID: "missing-lead", Attempt: 1})

	if len(fq.failed) != 1 {
		t.Error("expected the job to be failed permanently when its lead can't be loaded")
	}
}

func TestDeliverJob_SuccessMarksDeliveredAndCompletes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	fs := &fakeStore{lead: &domain.Lead{
		ID:              "lead-1",
		Status:          domain.StatusReady,
		CustomerPayload: map[string]any{"phone": "5551234567"},
	}}
	fq := &fakeQueue{}
	p := New(baseProcessorConfig(t, fs, fq, delivery.New(delivery.Config{EndpointURL: server.URL})))

	p.DeliverJob(context.Background(), queue.Job{ID: "job-1", LeadID: "lead-1", Attempt: 1})

	if fs.lead.Status != domain.StatusDelivered {
		t.Errorf("expected DELIVERED, got %s", fs.lead.Status)
	}
	if len(fq.completed) != 1 {
		t.Error("expected job to be completed")
	}
	if len(fs.attempts) != 1 || fs.attempts[0].Outcome != domain.OutcomeSuccess {
		t.Errorf("expected one success attempt recorded, got %+v", fs.attempts)
	}
}

func TestDeliverJob_RetriableFailureReschedules(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fs := &fakeStore{lead: &domain.Lead{
		ID:              "lead-1",
		Status:          domain.StatusReady,
		CustomerPayload: map[string]any{"phone": "5551234567"},
	}}
	fq := &fakeQueue{}
	p := New(baseProcessorConfig(t, fs, fq, delivery.New(delivery.Config{EndpointURL: server.URL})))

	p.DeliverJob(context.Background(), queue.Job{ID: "job-1", LeadID: "lead-1", Attempt: 1})

	if fs.lead.Status != domain.StatusFailed {
		t.Errorf("expected lead left in FAILED pending retry, got %s", fs.lead.Status)
	}
	if len(fq.retried) != 1 {
		t.Fatalf("expected one retry scheduled, got %d", len(fq.retried))
	}
	if fq.retried[0].Attempt != 2 {
		t.Errorf("expected next attempt 2, got %d", fq.retried[0].Attempt)
	}
}

func TestDeliverJob_RetryDelayMatchesBackoffScheduleForCompletedAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fs := &fakeStore{lead: &domain.Lead{
		ID:              "lead-1",
		Status:          domain.StatusReady,
		CustomerPayload: map[string]any{"phone": "5551234567"},
	}}
	fq := &fakeQueue{}
	cfg := baseProcessorConfig(t, fs, fq, delivery.New(delivery.Config{EndpointURL: server.URL}))
	cfg.Backoff = BackoffSchedule{Base: 30 * time.Second, MaxAttempts: 5}
	p := New(cfg)

	before := time.Now()
	// This is completed attempt 1 (n=0 existing attempts); the schedule's
	// delay[n] for n=0 is base*2^0 = 30s, so the retry must be scheduled
	// about 30s out, never 60s (the doubled, off-by-one delay a bug here
	// would produce).
	p.DeliverJob(context.Background(), queue.Job{ID: "job-1", LeadID: "lead-1", Attempt: 1})

	if len(fq.retried) != 1 {
		t.Fatalf("expected one retry scheduled, got %d", len(fq.retried))
	}
	delay := fq.retried[0].RunAfter.Sub(before)
	if delay < 30*time.Second || delay >= 31*time.Second {
		t.Errorf("expected retry delay close to 30s (delay[0] of the backoff schedule), got %s", delay)
	}
}

func TestDeliverJob_ExhaustedRetriesPermanentlyFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fs := &fakeStore{
		lead: &domain.Lead{
			ID:              "lead-1",
			Status:          domain.StatusReady,
			CustomerPayload: map[string]any{"phone": "5551234567"},
		},
		attempts: []store.DeliveryAttemptRecord{
			{LeadID: "lead-1", AttemptNumber: 1, Outcome: domain.OutcomeFailure, Retriable: true},
		},
	}
	fq := &fakeQueue{}
	cfg := baseProcessorConfig(t, fs, fq, delivery.New(delivery.Config{EndpointURL: server.URL}))
	cfg.Backoff = BackoffSchedule{Base: time.Millisecond, MaxAttempts: 2}
	p := New(cfg)

	p.DeliverJob(context.Background(), queue.Job{ID: "job-1", LeadID: "lead-1", Attempt: 2})

	if fs.lead.Status != domain.StatusPermanentlyFailed {
		t.Errorf("expected PERMANENTLY_FAILED, got %s", fs.lead.Status)
	}
	if len(fq.failed) != 1 {
		t.Error("expected job to be closed out as failed")
	}
	if len(fq.retried) != 0 {
		t.Error("expected no retry once attempts are exhausted")
	}
}

func TestDeliverJob_NonRetriableFailureStopsImmediately(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	fs := &fakeStore{lead: &domain.Lead{
		ID:              "lead-1",
		Status:          domain.StatusReady,
		CustomerPayload: map[string]any{"phone": "5551234567"},
	}}
	fq := &fakeQueue{}
	p := New(baseProcessorConfig(t, fs, fq, delivery.New(delivery.Config{EndpointURL: server.URL})))

	p.DeliverJob(context.Background(), queue.Job{ID: "job-1", LeadID: "lead-1", Attempt: 1})

	if fs.lead.Status != domain.StatusPermanentlyFailed {
		t.Errorf("expected PERMANENTLY_FAILED for non-retriable failure, got %s", fs.lead.Status)
	}
	if len(fq.retried) != 0 {
		t.Error("expected no retry for a non-retriable failure")
	}
}
