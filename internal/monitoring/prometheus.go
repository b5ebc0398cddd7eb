// Package monitoring reads serving metrics for deployed models from
// Prometheus.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned by the disabled source.
var ErrNotConfigured = errors.New("metrics backend is not configured")

// Querier is the subset of the Prometheus HTTP API the source needs.
type Querier interface {
	Query(ctx context.Context, query string, ts time.Time, opts ...v1.Option) (model.Value, v1.Warnings, error)
}

// RequestStats summarises serving traffic at one instant.
type RequestStats struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	ErrorsPerSecond   float64 `json:"errors_per_second"`
	P95LatencyMillis  float64 `json:"p95_latency_ms"`
}

// ResourceUsage is predictor container usage against its limits. Limits
// are zero when none are set.
type ResourceUsage struct {
	CPUCores         float64 `json:"cpu_cores"`
	CPULimitCores    float64 `json:"cpu_limit_cores"`
	MemoryBytes      float64 `json:"memory_bytes"`
	MemoryLimitBytes float64 `json:"memory_limit_bytes"`
}

// Source answers the monitoring questions the agent supports.
type Source interface {
	RequestStats(ctx context.Context, namespace, model string, at time.Time) (RequestStats, error)
	ResourceUsage(ctx context.Context, namespace, model string) (ResourceUsage, error)
	PredictionDistribution(ctx context.Context, namespace, model string, window time.Duration) (map[string]float64, error)
}

const (
	requestRateQuery = `sum(rate(revision_app_request_count{namespace_name=%q,service_name=~%q}[5m]))`
	errorRateQuery   = `sum(rate(revision_app_request_count{namespace_name=%q,service_name=~%q,response_code_class="5xx"}[5m]))`
	latencyQuery     = `histogram_quantile(0.95, sum(rate(revision_app_request_latencies_bucket{namespace_name=%q,service_name=~%q}[5m])) by (le))`
	cpuUsageQuery    = `sum(rate(container_cpu_usage_seconds_total{namespace=%q,pod=~%q,container!=""}[5m]))`
	cpuLimitQuery    = `sum(kube_pod_container_resource_limits{namespace=%q,pod=~%q,resource="cpu"})`
	memUsageQuery    = `sum(container_memory_working_set_bytes{namespace=%q,pod=~%q,container!=""})`
	memLimitQuery    = `sum(kube_pod_container_resource_limits{namespace=%q,pod=~%q,resource="memory"})`
	predictionsQuery = `sum by (prediction) (increase(model_prediction_total{namespace=%q,model=%q}[%s]))`
)

// PrometheusSource implements Source against a Prometheus server.
type PrometheusSource struct {
	api    Querier
	logger *zap.Logger
}

// NewPrometheusSource connects to the Prometheus HTTP API at address.
func NewPrometheusSource(address string, logger *zap.Logger) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}
	return NewSource(v1.NewAPI(client), logger), nil
}

// NewSource wraps an existing querier.
func NewSource(q Querier, logger *zap.Logger) *PrometheusSource {
	return &PrometheusSource{api: q, logger: logger}
}

func predictorPods(model string) string {
	return model + "-predictor.*"
}

func (s *PrometheusSource) RequestStats(ctx context.Context, namespace, model string, at time.Time) (RequestStats, error) {
	var (
		stats RequestStats
		err   error
	)
	pods := predictorPods(model)
	if stats.RequestsPerSecond, err = s.scalar(ctx, fmt.Sprintf(requestRateQuery, namespace, pods), at); err != nil {
		return stats, err
	}
	if stats.ErrorsPerSecond, err = s.scalar(ctx, fmt.Sprintf(errorRateQuery, namespace, pods), at); err != nil {
		return stats, err
	}
	if stats.P95LatencyMillis, err = s.scalar(ctx, fmt.Sprintf(latencyQuery, namespace, pods), at); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *PrometheusSource) ResourceUsage(ctx context.Context, namespace, model string) (ResourceUsage, error) {
	var (
		u   ResourceUsage
		err error
	)
	now := time.Now()
	pods := predictorPods(model)
	for _, q := range []struct {
		expr string
		dst  *float64
	}{
		{cpuUsageQuery, &u.CPUCores},
		{cpuLimitQuery, &u.CPULimitCores},
		{memUsageQuery, &u.MemoryBytes},
		{memLimitQuery, &u.MemoryLimitBytes},
	} {
		if *q.dst, err = s.scalar(ctx, fmt.Sprintf(q.expr, namespace, pods), now); err != nil {
			return u, err
		}
	}
	return u, nil
}

func (s *PrometheusSource) PredictionDistribution(ctx context.Context, namespace, model string, window time.Duration) (map[string]float64, error) {
	expr := fmt.Sprintf(predictionsQuery, namespace, model, promDuration(window))
	vec, err := s.vector(ctx, expr, time.Now())
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(vec))
	for _, sample := range vec {
		out[string(sample.Metric["prediction"])] = float64(sample.Value)
	}
	return out, nil
}

func (s *PrometheusSource) vector(ctx context.Context, expr string, at time.Time) (model.Vector, error) {
	result, warnings, err := s.api.Query(ctx, expr, at)
	if err != nil {
		return nil, fmt.Errorf("prometheus query failed: %w", err)
	}
	if len(warnings) > 0 {
		s.logger.Warn("prometheus query returned warnings", zap.String("query", expr), zap.Strings("warnings", warnings))
	}
	vec, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected prometheus result type %s", result.Type())
	}
	return vec, nil
}

// scalar returns the first sample of a vector result, or 0 when the vector
// is empty. NaN (an empty histogram) reads as 0.
func (s *PrometheusSource) scalar(ctx context.Context, expr string, at time.Time) (float64, error) {
	vec, err := s.vector(ctx, expr, at)
	if err != nil || len(vec) == 0 {
		return 0, err
	}
	v := float64(vec[0].Value)
	if math.IsNaN(v) {
		return 0, nil
	}
	return v, nil
}

func promDuration(d time.Duration) string {
	return model.Duration(d).String()
}

// Disabled is the Source used when no Prometheus address is configured.
type Disabled struct{}

func (Disabled) RequestStats(context.Context, string, string, time.Time) (RequestStats, error) {
	return RequestStats{}, ErrNotConfigured
}

func (Disabled) ResourceUsage(context.Context, string, string) (ResourceUsage, error) {
	return ResourceUsage{}, ErrNotConfigured
}

func (Disabled) PredictionDistribution(context.Context, string, string, time.Duration) (map[string]float64, error) {
	return nil, ErrNotConfigured
}
