package operations

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/avvvet/rhoai-intent/internal/models"
	"github.com/avvvet/rhoai-intent/internal/monitoring"
	"github.com/avvvet/rhoai-intent/internal/openshift"
)

const (
	defaultRange  = 7 * 24 * time.Hour
	logTailLines  = 500
	predictorKey  = "serving.kserve.io/inferenceservice"
	maxErrorLines = 50
)

// MonitoringDomain answers questions about a deployed model. All of its
// operations are reads, distinguished by the action parameter.
type MonitoringDomain struct {
	client  openshift.Client
	metrics monitoring.Source
	now     func() time.Time
}

func NewMonitoringDomain(client openshift.Client, metrics monitoring.Source) *MonitoringDomain {
	return &MonitoringDomain{client: client, metrics: metrics, now: time.Now}
}

func (d *MonitoringDomain) Name() string       { return "monitoring" }
func (d *MonitoringDomain) Errors() ErrorTable { return monitoringErrors }

func (d *MonitoringDomain) Validate(req *models.OperationRequest) error {
	if req.ResourceName == "" {
		return models.NewValidationError("model_name", "model_name is required for monitoring operations")
	}
	return nil
}

func (d *MonitoringDomain) Dispatch(ctx context.Context, req *models.OperationRequest) (map[string]any, error) {
	if req.OperationType != models.OperationGet {
		return nil, fmt.Errorf("Unknown operation type for monitoring: %s", req.OperationType)
	}
	ns := namespaceOr(req.Parameters, defaultModelNamespace)
	name := req.ResourceName

	action := models.Action(req.Parameters.Action)
	if action == "" {
		action = models.ActionAnalyzeLogs
	}
	switch action {
	case models.ActionAnalyzeLogs:
		return d.analyzeLogs(ctx, ns, name)
	case models.ActionCompareMetrics:
		return d.compareMetrics(ctx, ns, name, req.Parameters.TimeRange)
	case models.ActionDiagnosePerformance:
		return d.diagnose(ctx, ns, name)
	case models.ActionGetPredictionDistribution:
		return d.distribution(ctx, ns, name, req.Parameters.TimeRange)
	}
	return nil, fmt.Errorf("Unknown monitoring action: %s", action)
}

func (d *MonitoringDomain) analyzeLogs(ctx context.Context, ns, name string) (map[string]any, error) {
	logs, err := d.client.PodLogs(ctx, ns, predictorKey+"="+name, logTailLines)
	if err != nil {
		return nil, err
	}
	pods := make([]string, 0, len(logs))
	for pod := range logs {
		pods = append(pods, pod)
	}
	sort.Strings(pods)

	errorsByPod := map[string][]string{}
	total := 0
	for _, pod := range pods {
		lines := monitoring.ErrorLines(logs[pod])
		if len(lines) == 0 {
			continue
		}
		total += len(lines)
		if len(lines) > maxErrorLines {
			lines = lines[len(lines)-maxErrorLines:]
		}
		errorsByPod[pod] = lines
	}
	return map[string]any{
		"model_name":  name,
		"pods":        pods,
		"error_count": total,
		"errors":      errorsByPod,
	}, nil
}

func lookback(phrase string) time.Duration {
	// "today" compares against the same time yesterday
	if d := monitoring.ParseRange(phrase, defaultRange); d > 0 {
		return d
	}
	return 24 * time.Hour
}

func (d *MonitoringDomain) compareMetrics(ctx context.Context, ns, name, phrase string) (map[string]any, error) {
	now := d.now()
	offset := lookback(phrase)
	current, err := d.metrics.RequestStats(ctx, ns, name, now)
	if err != nil {
		return nil, err
	}
	previous, err := d.metrics.RequestStats(ctx, ns, name, now.Add(-offset))
	if err != nil {
		return nil, err
	}

	change := map[string]float64{}
	addChange(change, "requests_per_second", previous.RequestsPerSecond, current.RequestsPerSecond)
	addChange(change, "errors_per_second", previous.ErrorsPerSecond, current.ErrorsPerSecond)
	addChange(change, "p95_latency_ms", previous.P95LatencyMillis, current.P95LatencyMillis)

	return map[string]any{
		"model_name":     name,
		"current":        current,
		"previous":       previous,
		"compared_to":    now.Add(-offset).UTC().Format(time.RFC3339),
		"percent_change": change,
	}, nil
}

// addChange records the relative change in percent. A zero baseline has no
// meaningful ratio and is skipped.
func addChange(out map[string]float64, key string, before, after float64) {
	if before == 0 {
		return
	}
	out[key] = (after - before) / before * 100
}

func (d *MonitoringDomain) diagnose(ctx context.Context, ns, name string) (map[string]any, error) {
	usage, err := d.metrics.ResourceUsage(ctx, ns, name)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"model_name": name,
		"usage":      usage,
		"diagnosis":  monitoring.Diagnose(usage),
	}, nil
}

func (d *MonitoringDomain) distribution(ctx context.Context, ns, name, phrase string) (map[string]any, error) {
	window := lookback(phrase)
	dist, err := d.metrics.PredictionDistribution(ctx, ns, name, window)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, v := range dist {
		total += v
	}
	return map[string]any{
		"model_name":   name,
		"window":       window.String(),
		"distribution": dist,
		"total":        total,
	}, nil
}
