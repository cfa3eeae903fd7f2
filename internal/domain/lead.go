package domain

import (
	"fmt"
	"time"
)

// Status is one of the six states a Lead can occupy. The zero value is
// never valid on a persisted row.
type Status string

const (
	StatusReceived          Status = "RECEIVED"
	StatusRejected          Status = "REJECTED"
	StatusReady             Status = "READY"
	StatusDelivered         Status = "DELIVERED"
	StatusFailed            Status = "FAILED"
	StatusPermanentlyFailed Status = "PERMANENTLY_FAILED"
)

// Lead is the gateway's central record: a webhook lead submission carried
// from ingest through screening, transformation, and delivery.
type Lead struct {
	ID                string            `json:"id"`
	Status            Status            `json:"status"`
	RawPayload        map[string]any    `json:"raw_payload"`
	Headers           map[string]string `json:"headers,omitempty"`
	NormalizedPayload map[string]any    `json:"normalized_payload,omitempty"`
	CustomerPayload   map[string]any    `json:"customer_payload,omitempty"`
	RejectReason      *string           `json:"reject_reason,omitempty"`
	OmittedAttributes []string          `json:"omitted_attributes,omitempty"`
	CorrelationID     string            `json:"correlation_id"`
	ReceivedAt        time.Time         `json:"received_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// transitions enumerates every edge the status machine allows. A lead
// currently in a key's state may move only to a state in its value set.
var transitions = map[Status]map[Status]struct{}{
	StatusReceived: {
		StatusRejected:          {},
		StatusReady:             {},
		StatusPermanentlyFailed: {}, // mapping failed on an otherwise valid lead
	},
	StatusReady: {
		StatusDelivered:         {},
		StatusFailed:            {},
		StatusPermanentlyFailed: {},
	},
	StatusFailed: {
		StatusDelivered:         {},
		StatusFailed:            {}, // a further retriable failure, attempts remain
		StatusPermanentlyFailed: {},
	},
	StatusRejected:          {},
	StatusDelivered:         {},
	StatusPermanentlyFailed: {},
}

// Transition reports whether moving a lead from from to to is permitted by
// the status machine, and returns an error naming the illegal edge when it
// is not.
func Transition(from, to Status) error {
	allowed, ok := transitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if _, ok := allowed[to]; !ok {
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	return nil
}
