package domain

import "time"

// JobState tracks a queue entry independently of the Lead it carries: a
// job can be retried (and re-enter pending) several times across the
// lifetime of a single READY lead.
type JobState string

const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Job is the unit of work the delivery pipeline dequeues: "deliver this
// lead, this is attempt N, not before RunAfter."
type Job struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	State     JobState  `json:"state"`
	Attempt   int       `json:"attempt"`
	RunAfter  time.Time `json:"run_after"`
	CreatedAt time.Time `json:"created_at"`
}
