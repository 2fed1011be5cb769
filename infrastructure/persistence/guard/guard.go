// Package guard decorates a storage backend with a circuit breaker, per-call
// timeouts, tracing spans and metrics. It is also where infrastructure
// failures become UNAVAILABLE or INTERNAL AppErrors.
package guard

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/aws/smithy-go"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/application/ports"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
	"github.com/Hampusfredrik/mindmap/pkg/observability"
)

// Config holds breaker and timeout settings
type Config struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
	// CallTimeout bounds each repository call; zero leaves the caller's deadline alone
	CallTimeout time.Duration
}

// DefaultConfig returns the breaker defaults
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
		CallTimeout:      5 * time.Second,
	}
}

// Guard runs repository calls through the breaker
type Guard struct {
	cfg     Config
	cb      *gobreaker.CircuitBreaker
	tracer  trace.Tracer
	metrics *observability.Collector
	logger  *zap.Logger
}

// New creates a guard. metrics may be nil.
func New(cfg Config, tracer trace.Tracer, metrics *observability.Collector, logger *zap.Logger) *Guard {
	g := &Guard{cfg: cfg, tracer: tracer, metrics: metrics, logger: logger}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Storage circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if metrics != nil {
				metrics.SetBreakerState(name, float64(to))
			}
		},
		// Domain outcomes mean the backend answered; only infrastructure
		// failures count against it.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			appErr := pkgerrors.GetAppError(err)
			return appErr != nil && appErr.HTTPStatus < 500
		},
	})
	return g
}

// State returns the breaker state
func (g *Guard) State() gobreaker.State {
	return g.cb.State()
}

// Wrap decorates every repository of repos
func (g *Guard) Wrap(repos ports.Repositories) ports.Repositories {
	wrapped := repos
	wrapped.Graphs = &graphRepository{g: g, next: repos.Graphs}
	wrapped.Nodes = &nodeRepository{g: g, next: repos.Nodes}
	wrapped.Edges = &edgeRepository{g: g, next: repos.Edges}
	if repos.Ping != nil {
		wrapped.Ping = func(ctx context.Context) error {
			return exec(g, ctx, "ping", "backend", repos.Ping)
		}
	}
	return wrapped
}

func exec(g *Guard, ctx context.Context, op, entity string, fn func(context.Context) error) error {
	_, err := call(g, ctx, op, entity, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func call[T any](g *Guard, ctx context.Context, op, entity string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := g.tracer.Start(ctx, "storage."+entity+"."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("storage.operation", op),
			attribute.String("storage.entity", entity),
		),
	)
	defer span.End()

	if g.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	var result T
	_, err := g.cb.Execute(func() (interface{}, error) {
		var callErr error
		result, callErr = fn(ctx)
		return nil, callErr
	})
	err = g.classify(err, op, entity)

	outcome := outcomeOf(err)
	if g.metrics != nil {
		g.metrics.RecordStorageOperation(op, entity, outcome, time.Since(start))
	}
	span.SetAttributes(attribute.String("storage.outcome", outcome))
	if appErr := pkgerrors.GetAppError(err); appErr != nil && appErr.HTTPStatus >= 500 {
		span.RecordError(err)
		span.SetStatus(codes.Error, appErr.Message)
	}

	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// classify turns a raw backend error into an AppError
func (g *Guard) classify(err error, op, entity string) error {
	if err == nil || pkgerrors.IsAppError(err) {
		return err
	}

	if IsTransient(err) {
		g.logger.Warn("Storage unavailable",
			zap.String("operation", op),
			zap.String("entity", entity),
			zap.Error(err),
		)
		return pkgerrors.NewUnavailableError("storage").WithCause(err)
	}

	g.logger.Error("Storage operation failed",
		zap.String("operation", op),
		zap.String("entity", entity),
		zap.Error(err),
	)
	return pkgerrors.NewInternalError("storage operation failed").WithCause(err)
}

var throttlingCodes = map[string]bool{
	"ThrottlingException":                    true,
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"ServiceUnavailable":                     true,
	"InternalServerError":                    true,
}

// IsTransient reports whether err means the backend could not be reached or
// refused to serve right now
func IsTransient(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && throttlingCodes[apiErr.ErrorCode()] {
		return true
	}
	return false
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case pkgerrors.IsNotFound(err):
		return "not_found"
	case pkgerrors.IsConflict(err):
		return "conflict"
	case pkgerrors.IsValidation(err):
		return "invalid"
	case pkgerrors.IsUnavailable(err):
		return "unavailable"
	default:
		return "error"
	}
}
