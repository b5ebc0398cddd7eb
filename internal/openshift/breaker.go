package openshift

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// BreakerConfig tunes the circuit breaker in front of the resource API.
type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig trips after five consecutive server-side failures and
// probes again after 30s.
var DefaultBreakerConfig = BreakerConfig{
	MaxRequests:         3,
	Interval:            time.Minute,
	Timeout:             30 * time.Second,
	ConsecutiveFailures: 5,
}

type breakerClient struct {
	next Client
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps next so that repeated 5xx and transport failures open a
// circuit. While open, calls fail fast with a 503 status error. Client
// errors (4xx) never count as failures.
func WithBreaker(next Client, cfg BreakerConfig, logger *zap.Logger) Client {
	settings := gobreaker.Settings{
		Name:        "openshift",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			code := StatusCode(err)
			return code >= 400 && code < 500
		},
	}
	return &breakerClient{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

var _ Client = &breakerClient{}

func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, apierrors.NewServiceUnavailable("resource API circuit is open")
		}
		return zero, err
	}
	return out.(T), nil
}

func (b *breakerClient) Create(ctx context.Context, kind Kind, namespace string, obj map[string]any) (map[string]any, error) {
	return execute(b.cb, func() (map[string]any, error) { return b.next.Create(ctx, kind, namespace, obj) })
}

func (b *breakerClient) Get(ctx context.Context, kind Kind, namespace, name string) (map[string]any, error) {
	return execute(b.cb, func() (map[string]any, error) { return b.next.Get(ctx, kind, namespace, name) })
}

func (b *breakerClient) List(ctx context.Context, kind Kind, namespace, labelSelector string) ([]map[string]any, error) {
	return execute(b.cb, func() ([]map[string]any, error) { return b.next.List(ctx, kind, namespace, labelSelector) })
}

func (b *breakerClient) Patch(ctx context.Context, kind Kind, namespace, name string, patch map[string]any) (map[string]any, error) {
	return execute(b.cb, func() (map[string]any, error) { return b.next.Patch(ctx, kind, namespace, name, patch) })
}

func (b *breakerClient) Delete(ctx context.Context, kind Kind, namespace, name string) error {
	_, err := execute(b.cb, func() (struct{}, error) { return struct{}{}, b.next.Delete(ctx, kind, namespace, name) })
	return err
}

func (b *breakerClient) PodLogs(ctx context.Context, namespace, labelSelector string, tailLines int64) (map[string]string, error) {
	return execute(b.cb, func() (map[string]string, error) { return b.next.PodLogs(ctx, namespace, labelSelector, tailLines) })
}

// StatusCode extracts the HTTP status carried by a Kubernetes API error. It
// returns 0 when err carries no status.
func StatusCode(err error) int {
	var status apierrors.APIStatus
	if errors.As(err, &status) {
		return int(status.Status().Code)
	}
	return 0
}

