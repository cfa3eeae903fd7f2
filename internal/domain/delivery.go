package domain

import "time"

// DeliveryAttempt records a single outbound POST to the downstream
// customer's endpoint for a Lead. Leads accumulate one row per attempt,
// successful or not, forming the audit trail required by the gateway.
type DeliveryAttempt struct {
	ID             string     `json:"id"`
	LeadID         string     `json:"lead_id"`
	AttemptNumber  int        `json:"attempt_number"`
	Outcome        string     `json:"outcome"` // success | failure
	HTTPStatusCode *int       `json:"http_status_code,omitempty"`
	ResponseBody   *string    `json:"response_body,omitempty"`
	ResponseTimeMs *int       `json:"response_time_ms,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	Retriable      bool       `json:"retriable"`
	CreatedAt      time.Time  `json:"created_at"`
}

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
