package monitoring_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avvvet/rhoai-intent/internal/monitoring"
)

type answer struct {
	match string
	vec   model.Vector
}

// fakeQuerier returns the vector of the first answer whose match is a
// substring of the query.
type fakeQuerier struct {
	answers []answer
	queries []string
	times   []time.Time
	err     error
}

func (f *fakeQuerier) Query(ctx context.Context, query string, ts time.Time, opts ...v1.Option) (model.Value, v1.Warnings, error) {
	f.queries = append(f.queries, query)
	f.times = append(f.times, ts)
	if f.err != nil {
		return nil, nil, f.err
	}
	for _, a := range f.answers {
		if strings.Contains(query, a.match) {
			return a.vec, nil, nil
		}
	}
	return model.Vector{}, nil, nil
}

func sample(v float64, labels ...string) *model.Sample {
	m := model.Metric{}
	for i := 0; i+1 < len(labels); i += 2 {
		m[model.LabelName(labels[i])] = model.LabelValue(labels[i+1])
	}
	return &model.Sample{Metric: m, Value: model.SampleValue(v)}
}

func TestRequestStats(t *testing.T) {
	q := &fakeQuerier{answers: []answer{
		{`response_code_class="5xx"`, model.Vector{sample(0.5)}},
		{"histogram_quantile", model.Vector{sample(120)}},
		{"revision_app_request_count", model.Vector{sample(10)}},
	}}
	src := monitoring.NewSource(q, zap.NewNop())
	at := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

	stats, err := src.RequestStats(context.Background(), "ml", "churn", at)
	require.NoError(t, err)
	assert.Equal(t, 10.0, stats.RequestsPerSecond)
	assert.Equal(t, 0.5, stats.ErrorsPerSecond)
	assert.Equal(t, 120.0, stats.P95LatencyMillis)
	require.Len(t, q.times, 3)
	for _, ts := range q.times {
		assert.Equal(t, at, ts)
	}
	assert.Contains(t, q.queries[0], `namespace_name="ml"`)
	assert.Contains(t, q.queries[0], `service_name=~"churn-predictor.*"`)
}

func TestRequestStats_Error(t *testing.T) {
	src := monitoring.NewSource(&fakeQuerier{err: errors.New("connection refused")}, zap.NewNop())
	_, err := src.RequestStats(context.Background(), "ml", "churn", time.Now())
	assert.ErrorContains(t, err, "connection refused")
}

func TestPredictionDistribution(t *testing.T) {
	q := &fakeQuerier{answers: []answer{
		{"model_prediction_total", model.Vector{sample(30, "prediction", "fraud"), sample(70, "prediction", "legit")}},
	}}
	src := monitoring.NewSource(q, zap.NewNop())

	dist, err := src.PredictionDistribution(context.Background(), "ml", "churn", 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"fraud": 30, "legit": 70}, dist)
	assert.Contains(t, q.queries[0], "[1w]")
}

func TestDisabled(t *testing.T) {
	var src monitoring.Source = monitoring.Disabled{}
	_, err := src.ResourceUsage(context.Background(), "ml", "churn")
	assert.ErrorIs(t, err, monitoring.ErrNotConfigured)
}

func TestParseRange(t *testing.T) {
	week := 7 * 24 * time.Hour
	for phrase, want := range map[string]time.Duration{
		"today":         0,
		"yesterday":     24 * time.Hour,
		"last week":     week,
		"Past Month":    30 * 24 * time.Hour,
		"last 3 days":   3 * 24 * time.Hour,
		"last 2 weeks":  2 * week,
		"past 1 month":  30 * 24 * time.Hour,
		"":              week,
		"the other day": week,

		"last 365 days":                  365 * 24 * time.Hour,
		"last 52 weeks":                  52 * week,
		"last 12 months":                 360 * 24 * time.Hour,
		"last 366 days":                  week,
		"last 13 months":                 week,
		"last 200000 months":             week,
		"last 106752 days":               week,
		"last 99999999999999999999 days": week,
	} {
		assert.Equal(t, want, monitoring.ParseRange(phrase, week), phrase)
	}
}

func TestDiagnose(t *testing.T) {
	for name, tc := range map[string]struct {
		usage monitoring.ResourceUsage
		want  string
	}{
		"cpu bound":    {monitoring.ResourceUsage{CPUCores: 0.9, CPULimitCores: 1, MemoryBytes: 1, MemoryLimitBytes: 10}, "cpu-bound"},
		"memory bound": {monitoring.ResourceUsage{CPUCores: 0.1, CPULimitCores: 1, MemoryBytes: 9, MemoryLimitBytes: 10}, "memory-bound"},
		"healthy":      {monitoring.ResourceUsage{CPUCores: 0.1, CPULimitCores: 1, MemoryBytes: 1, MemoryLimitBytes: 10}, "healthy"},
		"no limits":    {monitoring.ResourceUsage{CPUCores: 4, MemoryBytes: 1 << 30}, "healthy"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, monitoring.Diagnose(tc.usage).Classification)
		})
	}
}

func TestErrorLines(t *testing.T) {
	logs := "INFO started\nERROR failed to load model\nWARN slow\nTraceback (most recent call last):\nterror is not a word here"
	assert.Equal(t, []string{"ERROR failed to load model", "Traceback (most recent call last):"}, monitoring.ErrorLines(logs))
}
