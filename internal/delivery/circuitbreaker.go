package delivery

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Circuit breaker states.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

const circuitKey = "leadgateway:circuit:downstream"

// CircuitBreaker guards the single downstream customer endpoint. Unlike a
// multi-tenant fan-out, this gateway has exactly one delivery target, so
// the breaker tracks one fixed Redis key rather than one per recipient.
//
// State transitions: closed -> open -> half-open -> closed.
type CircuitBreaker struct {
	redisClient      *redis.Client
	logger           *slog.Logger
	failureThreshold int
	cooldownPeriod   time.Duration
}

type CircuitBreakerState struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

func NewCircuitBreaker(redisClient *redis.Client, logger *slog.Logger, failureThreshold int, cooldownPeriod time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		redisClient:      redisClient,
		logger:           logger,
		failureThreshold: failureThreshold,
		cooldownPeriod:   cooldownPeriod,
	}
}

// AllowRequest reports whether a delivery attempt may proceed right now,
// and the state that decision was made under.
func (cb *CircuitBreaker) AllowRequest(ctx context.Context) (string, bool) {
	data, err := cb.redisClient.HGetAll(ctx, circuitKey).Result()
	if err != nil || len(data) == 0 {
		return StateClosed, true
	}

	state := data["state"]
	lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)

	switch state {
	case StateOpen:
		if time.Now().Unix()-lastFailedAt >= int64(cb.cooldownPeriod.Seconds()) {
			cb.redisClient.HSet(ctx, circuitKey, "state", StateHalfOpen)
			cb.logger.Info("circuit breaker half-open")
			return StateHalfOpen, true
		}
		return StateOpen, false

	case StateHalfOpen:
		return StateHalfOpen, true

	default:
		return StateClosed, true
	}
}

// RecordSuccess closes the circuit and zeroes the failure count.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context) {
	state, _ := cb.redisClient.HGet(ctx, circuitKey, "state").Result()

	cb.redisClient.HSet(ctx, circuitKey,
		"state", StateClosed,
		"failures", 0,
	)

	if state == StateHalfOpen {
		cb.logger.Info("circuit breaker closed (recovered)")
	}
}

// RecordFailure increments the failure count and opens the circuit once the
// threshold is reached, or immediately if the half-open test failed.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context) {
	failures, err := cb.redisClient.HIncrBy(ctx, circuitKey, "failures", 1).Result()
	if err != nil {
		cb.logger.Error("failed to record circuit breaker failure", "error", err)
		return
	}

	cb.redisClient.HSet(ctx, circuitKey, "last_failed_at", time.Now().Unix())

	state, _ := cb.redisClient.HGet(ctx, circuitKey, "state").Result()

	switch {
	case state == StateHalfOpen:
		cb.redisClient.HSet(ctx, circuitKey, "state", StateOpen)
		cb.logger.Warn("circuit breaker re-opened (half-open test failed)")
	case failures >= int64(cb.failureThreshold):
		cb.redisClient.HSet(ctx, circuitKey, "state", StateOpen)
		cb.logger.Warn("circuit breaker opened", "failures", failures, "threshold", cb.failureThreshold)
	case state == "":
		cb.redisClient.HSet(ctx, circuitKey, "state", StateClosed)
	}
}

// GetState returns the breaker's current view, accounting for a pending
// open-to-half-open transition.
func (cb *CircuitBreaker) GetState(ctx context.Context) CircuitBreakerState {
	data, err := cb.redisClient.HGetAll(ctx, circuitKey).Result()
	if err != nil || len(data) == 0 {
		return CircuitBreakerState{State: StateClosed}
	}

	failures, _ := strconv.Atoi(data["failures"])
	state := data["state"]
	if state == "" {
		state = StateClosed
	}

	if state == StateOpen {
		lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
		if time.Now().Unix()-lastFailedAt >= int64(cb.cooldownPeriod.Seconds()) {
			state = StateHalfOpen
		}
	}

	result := CircuitBreakerState{State: state, Failures: failures}
	if ts, ok := data["last_failed_at"]; ok && ts != "" {
		if lastFailed, _ := strconv.ParseInt(ts, 10, 64); lastFailed > 0 {
			result.LastFailedAt = time.Unix(lastFailed, 0).Format(time.RFC3339)
		}
	}
	return result
}
