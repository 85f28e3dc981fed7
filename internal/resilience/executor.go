package resilience

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrorClassification tells the executor whether an error is worth retrying
// and whether it counts against the circuit breaker.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

// ErrorClassifier classifies a provider error.
type ErrorClassifier func(err error) ErrorClassification

var errNilCall = errors.New("resilience: nil call")

// Executor guards provider calls with per-operation retry and circuit breaking.
type Executor struct {
	cfg      Config
	classify ErrorClassifier
	logger   *zap.Logger

	mu       sync.Mutex
	breakers map[Operation]*gobreaker.CircuitBreaker[struct{}]
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithClassifier replaces ClassifyHTTPError as the error classifier.
func WithClassifier(c ErrorClassifier) ExecutorOption {
	return func(e *Executor) {
		if c != nil {
			e.classify = c
		}
	}
}

// NewExecutor returns an executor. A nil logger disables logging.
func NewExecutor(cfg Config, logger *zap.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		cfg:      cfg.normalize(),
		classify: ClassifyHTTPError,
		logger:   logger,
		breakers: make(map[Operation]*gobreaker.CircuitBreaker[struct{}]),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs call as op. Retries happen inside the breaker, so one
// Execute counts as a single request toward tripping it.
func (e *Executor) Execute(ctx context.Context, op Operation, call func(context.Context) error) error {
	if call == nil {
		return errNilCall
	}
	if !e.cfg.BreakerEnabled {
		return e.retry(ctx, op, call)
	}
	_, err := e.breaker(op).Execute(func() (struct{}, error) {
		return struct{}{}, e.retry(ctx, op, call)
	})
	return err
}

func (e *Executor) retry(ctx context.Context, op Operation, call func(context.Context) error) error {
	limit := op.attempts(e.cfg)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := call(ctx)
		if err == nil || attempt >= limit || !e.classify(err).Retryable {
			return err
		}
		wait := e.cfg.backoff(attempt)
		e.logger.Warn("provider call failed, retrying",
			zap.Stringer("operation", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", limit),
			zap.Duration("backoff", wait),
			zap.Error(err))
		if !sleep(ctx, wait) {
			return err
		}
	}
}

// sleep waits for d and reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (e *Executor) breaker(op Operation) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[op]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        op.String(),
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: e.cfg.tripped,
		IsSuccessful: func(err error) bool {
			return err == nil || !e.classify(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("provider breaker changed state",
				zap.String("operation", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
	e.breakers[op] = cb
	return cb
}

// States reports the breaker state of every operation called so far, keyed
// by operation name.
func (e *Executor) States() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.breakers) == 0 {
		return nil
	}
	out := make(map[string]string, len(e.breakers))
	for op, cb := range e.breakers {
		out[op.String()] = cb.State().String()
	}
	return out
}

// SortedStates renders States as "op=state" pairs ordered by operation.
func SortedStates(states map[string]string) []string {
	out := make([]string, 0, len(states))
	for op, st := range states {
		out = append(out, op+"="+st)
	}
	sort.Strings(out)
	return out
}

// IsCircuitOpen reports whether err was produced by an open or saturated breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
