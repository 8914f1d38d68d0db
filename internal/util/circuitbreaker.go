package util

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type CircuitState string

const (
	CircuitStateClosed   CircuitState = "CLOSED"    // 정상 작동
	CircuitStateOpen     CircuitState = "OPEN"      // 서비스 차단
	CircuitStateHalfOpen CircuitState = "HALF_OPEN" // 복구 시도 중
)

func (s CircuitState) String() string {
	return string(s)
}

// HealthCheckFunc probes the guarded service while the circuit is open.
type HealthCheckFunc func(ctx context.Context) error

// CircuitBreakerOptions configures a CircuitBreaker. Zero values fall back to sane defaults.
type CircuitBreakerOptions struct {
	Name                string
	FailureThreshold    int
	ResetTimeout        time.Duration
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	HealthCheck         HealthCheckFunc
	OnStateChange       func(name string, from, to CircuitState)
}

// CircuitBreaker guards an upstream (the analysis model) from request storms once it fails
// repeatedly.
type CircuitBreaker struct {
	opts                CircuitBreakerOptions
	state               CircuitState
	failureCount        int
	nextRetryTime       time.Time
	nextHealthCheckTime time.Time
	isHealthChecking    bool
	logger              *zap.Logger
	mu                  sync.Mutex
}

func NewCircuitBreaker(opts CircuitBreakerOptions, logger *zap.Logger) *CircuitBreaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 30 * time.Second
	}
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = opts.ResetTimeout
	}
	if opts.HealthCheckTimeout <= 0 {
		opts.HealthCheckTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		opts:   opts,
		state:  CircuitStateClosed,
		logger: logger.With(zap.String("breaker", opts.Name)),
	}
}

// State returns the current state, moving OPEN to HALF_OPEN once the retry window passed
// (or kicking off a background health check when one is configured).
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitStateOpen {
		now := time.Now()
		if cb.opts.HealthCheck != nil {
			if now.After(cb.nextHealthCheckTime) && !cb.isHealthChecking {
				cb.isHealthChecking = true
				go cb.runHealthCheck()
			}
		} else if now.After(cb.nextRetryTime) {
			cb.transitionTo(CircuitStateHalfOpen)
		}
	}

	return cb.state
}

func (cb *CircuitBreaker) CanExecute() bool {
	return cb.State() != CircuitStateOpen
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitStateHalfOpen {
		cb.logger.Info("Circuit Breaker: Service recovered, transitioning to CLOSED")
		cb.failureCount = 0
		cb.transitionTo(CircuitStateClosed)
	} else if cb.state == CircuitStateClosed && cb.failureCount > 0 {
		cb.logger.Debug("Circuit Breaker: Resetting failure count", zap.Int("was", cb.failureCount))
		cb.failureCount = 0
	}
}

// RecordFailure counts a failure. customTimeout > 0 overrides the reset timeout (rate limits).
func (cb *CircuitBreaker) RecordFailure(customTimeout time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++

	timeout := cb.opts.ResetTimeout
	if customTimeout > 0 {
		timeout = customTimeout
	}

	cb.logger.Warn("Circuit Breaker: Failure recorded",
		zap.Int("count", cb.failureCount),
		zap.Int("threshold", cb.opts.FailureThreshold),
		zap.Duration("timeout", timeout),
	)

	if cb.state == CircuitStateHalfOpen || cb.failureCount >= cb.opts.FailureThreshold {
		if cb.state == CircuitStateHalfOpen {
			cb.logger.Error("Circuit Breaker: Recovery failed, reopening circuit")
		} else {
			cb.logger.Error("Circuit Breaker: Threshold reached, OPENING circuit")
		}
		cb.nextRetryTime = time.Now().Add(timeout)
		cb.nextHealthCheckTime = time.Now().Add(cb.opts.HealthCheckInterval)
		cb.transitionTo(CircuitStateOpen)
	}
}

func (cb *CircuitBreaker) runHealthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), cb.opts.HealthCheckTimeout)
	defer cancel()

	cb.logger.Info("Circuit Breaker: Running health check...")
	err := cb.opts.HealthCheck(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.isHealthChecking = false
	if cb.state != CircuitStateOpen {
		return
	}

	if err == nil {
		cb.logger.Info("Circuit Breaker: Health check PASSED → transitioning to HALF_OPEN")
		cb.transitionTo(CircuitStateHalfOpen)
		return
	}

	cb.logger.Warn("Circuit Breaker: Health check FAILED → delaying next check", zap.Error(err))
	cb.nextHealthCheckTime = time.Now().Add(cb.opts.HealthCheckInterval)
}

// transitionTo must be called with the lock held.
func (cb *CircuitBreaker) transitionTo(newState CircuitState) {
	oldState := cb.state
	if oldState == newState {
		return
	}
	cb.state = newState

	nextRetry := "n/a"
	if newState == CircuitStateOpen {
		nextRetry = cb.nextRetryTime.Format(time.RFC3339)
	}

	cb.logger.Info("Circuit Breaker: State transition",
		zap.String("from", oldState.String()),
		zap.String("to", newState.String()),
		zap.Int("failure_count", cb.failureCount),
		zap.String("next_retry", nextRetry),
	)

	if cb.opts.OnStateChange != nil {
		cb.opts.OnStateChange(cb.opts.Name, oldState, newState)
	}
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.logger.Info("Circuit Breaker: Manual reset")
	cb.failureCount = 0
	cb.nextRetryTime = time.Time{}
	cb.transitionTo(CircuitStateClosed)
}

type CircuitBreakerStatus struct {
	State         CircuitState `json:"state"`
	FailureCount  int          `json:"failure_count"`
	NextRetryTime *time.Time   `json:"next_retry_time,omitempty"`
}

func (cb *CircuitBreaker) Status() CircuitBreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	status := CircuitBreakerStatus{
		State:        cb.state,
		FailureCount: cb.failureCount,
	}
	if cb.state == CircuitStateOpen {
		retry := cb.nextRetryTime
		status.NextRetryTime = &retry
	}
	return status
}
