package operations

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/avvvet/rhoai-intent/internal/audit"
	"github.com/avvvet/rhoai-intent/internal/models"
	"github.com/avvvet/rhoai-intent/internal/monitoring"
	"github.com/avvvet/rhoai-intent/internal/openshift"
)

func TestModel_DeployBody(t *testing.T) {
	f := newFixture(t, nil)
	res := f.run(modelRequest(models.OperationCreate, "sentiment-analysis", models.Parameters{
		Replicas:   models.IntReplicas(2),
		StorageURI: "s3://models/sentiment",
	}))
	require.Equal(t, models.StatusSuccess, res.Status, res.ErrorMessage)

	require.Len(t, f.client.calls, 1)
	c := f.client.calls[0]
	assert.Equal(t, openshift.KindInferenceService, c.kind)
	assert.Equal(t, "ml", c.namespace)
	assert.Equal(t, map[string]any{
		"modelFormat": map[string]any{"name": "sklearn"},
		"minReplicas": int64(2),
		"maxReplicas": int64(2),
		"storageUri":  "s3://models/sentiment",
	}, c.body["spec"].(map[string]any)["predictor"])
}

func TestModel_ScalePatch(t *testing.T) {
	f := newFixture(t, nil)
	f.client.seed(openshift.KindInferenceService, "prod", "churn", map[string]any{})
	req := modelRequest(models.OperationPatch, "churn", models.Parameters{Namespace: "prod", Replicas: models.IntReplicas(5)})
	req.RequiresConfirmation, req.ConfirmationToken = true, "signed"

	res := f.run(req)
	require.Equal(t, models.StatusSuccess, res.Status, res.ErrorMessage)
	assert.Equal(t, map[string]any{"minReplicas": int64(5), "maxReplicas": int64(5)},
		f.client.calls[0].body["spec"].(map[string]any)["predictor"])
	assert.Equal(t, "prod", f.client.calls[0].namespace)
}

func TestModel_List(t *testing.T) {
	f := newFixture(t, nil)
	f.client.seed(openshift.KindInferenceService, "default", "a", map[string]any{"name": "a"})
	f.client.seed(openshift.KindInferenceService, "default", "b", map[string]any{"name": "b"})

	res := f.run(modelRequest(models.OperationList, "", models.Parameters{}))
	require.Equal(t, models.StatusSuccess, res.Status)
	assert.Equal(t, 2, res.ResultData["count"])
	// lists keep an empty namespace; the model domain falls back to "default"
	assert.Equal(t, "default", f.client.calls[0].namespace)
}

func notebookRequest(verb models.OperationType, name string, p models.Parameters) *models.OperationRequest {
	p.NotebookName = name
	return &models.OperationRequest{OperationType: verb, TargetResource: models.ResourceNotebook, ResourceName: name, Parameters: p}
}

func TestNotebook(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		f := newFixture(t, nil)
		res := f.run(notebookRequest(models.OperationCreate, "analysis", models.Parameters{Memory: "8Gi", GPU: models.IntPtr(1)}))
		require.Equal(t, models.StatusSuccess, res.Status, res.ErrorMessage)

		spec := f.client.calls[0].body["spec"].(map[string]any)["template"].(map[string]any)["spec"].(map[string]any)
		container := spec["containers"].([]any)[0].(map[string]any)
		assert.Equal(t, "jupyter/scipy-notebook:latest", container["image"])
		assert.Equal(t, map[string]any{
			"requests": map[string]any{"memory": "8Gi", "cpu": "1"},
			"limits":   map[string]any{"nvidia.com/gpu": int64(1)},
		}, container["resources"])
		volume := spec["volumes"].([]any)[0].(map[string]any)
		assert.Equal(t, map[string]any{"claimName": "analysis-pvc"}, volume["persistentVolumeClaim"])
	})

	for action, want := range map[string]any{"stop": "true", "start": nil} {
		t.Run(action, func(t *testing.T) {
			f := newFixture(t, nil)
			f.client.seed(openshift.KindNotebook, "ml", "analysis", map[string]any{})
			res := f.run(notebookRequest(models.OperationPatch, "analysis", models.Parameters{Action: action}))
			require.Equal(t, models.StatusSuccess, res.Status, res.ErrorMessage)

			annotations := f.client.calls[0].body["metadata"].(map[string]any)["annotations"].(map[string]any)
			assert.Equal(t, want, annotations["kubeflow-resource-stopped"])
		})
	}

	t.Run("control requires action", func(t *testing.T) {
		f := newFixture(t, nil)
		res := f.run(notebookRequest(models.OperationPatch, "analysis", models.Parameters{Action: "restart"}))
		assert.Equal(t, "action must be 'start' or 'stop' for notebook control operations", res.ErrorMessage)
		assert.Empty(t, f.client.calls)
	})

	t.Run("delete requires name", func(t *testing.T) {
		f := newFixture(t, nil)
		res := f.run(notebookRequest(models.OperationDelete, "", models.Parameters{}))
		assert.Equal(t, "notebook_name is required for notebook deletion operations", res.ErrorMessage)
	})
}

func TestPipeline(t *testing.T) {
	t.Run("run history", func(t *testing.T) {
		f := newFixture(t, nil)
		f.client.seed(openshift.KindWorkflow, "ml", "training-run-1", map[string]any{})
		res := f.run(&models.OperationRequest{
			OperationType:  models.OperationList,
			TargetResource: models.ResourcePipelineRuns,
			ResourceName:   "training",
		})
		require.Equal(t, models.StatusSuccess, res.Status, res.ErrorMessage)
		c := f.client.calls[0]
		assert.Equal(t, openshift.KindWorkflow, c.kind)
		assert.Equal(t, "ml", c.namespace)
		assert.Equal(t, "pipelines.kubeflow.org/pipeline=training", c.selector)
		assert.Equal(t, "training", res.ResultData["pipeline_name"])
		assert.Equal(t, 1, res.ResultData["count"])
	})

	t.Run("run history requires name", func(t *testing.T) {
		f := newFixture(t, nil)
		res := f.run(&models.OperationRequest{OperationType: models.OperationList, TargetResource: models.ResourcePipelineRuns})
		assert.Equal(t, "pipeline_name is required for pipeline run history retrieval", res.ErrorMessage)
	})

	t.Run("schedule update", func(t *testing.T) {
		f := newFixture(t, nil)
		f.client.seed(openshift.KindPipeline, "ml", "training", map[string]any{})
		req := &models.OperationRequest{OperationType: models.OperationPatch, TargetResource: models.ResourcePipeline, ResourceName: "training"}

		res := f.run(req)
		assert.Equal(t, "schedule is required for pipeline schedule update", res.ErrorMessage)

		req.Parameters.Schedule = "daily"
		res = f.run(req)
		require.Equal(t, models.StatusSuccess, res.Status, res.ErrorMessage)
		assert.Equal(t, map[string]any{"spec": map[string]any{"schedule": "daily"}}, f.client.calls[0].body)
	})

	t.Run("list spans namespaces", func(t *testing.T) {
		f := newFixture(t, nil)
		res := f.run(&models.OperationRequest{OperationType: models.OperationList, TargetResource: models.ResourcePipeline})
		require.Equal(t, models.StatusSuccess, res.Status)
		assert.Equal(t, "", f.client.calls[0].namespace)
	})
}

func TestProject(t *testing.T) {
	t.Run("create with quota", func(t *testing.T) {
		f := newFixture(t, nil)
		res := f.run(&models.OperationRequest{
			OperationType:  models.OperationCreate,
			TargetResource: models.ResourceProject,
			ResourceName:   "fraud",
			Parameters:     models.Parameters{ProjectName: "fraud", MemoryLimit: "16Gi", CPULimit: "4"},
		})
		require.Equal(t, models.StatusSuccess, res.Status, res.ErrorMessage)
		require.Len(t, f.client.calls, 2)

		ns := f.client.calls[0]
		assert.Equal(t, openshift.KindNamespace, ns.kind)
		meta := ns.body["metadata"].(map[string]any)
		assert.Equal(t, map[string]any{"opendatahub.io/dashboard": "true"}, meta["labels"])
		assert.Equal(t, "fraud", meta["annotations"].(map[string]any)["openshift.io/display-name"])

		quota := f.client.calls[1]
		assert.Equal(t, openshift.KindResourceQuota, quota.kind)
		assert.Equal(t, "fraud", quota.namespace)
		assert.Equal(t, "fraud-quota", quota.name)
		assert.Equal(t, map[string]any{"hard": map[string]any{"limits.memory": "16Gi", "limits.cpu": "4"}}, quota.body["spec"])
	})

	t.Run("add user", func(t *testing.T) {
		f := newFixture(t, nil)
		req := &models.OperationRequest{
			OperationType:  models.OperationPatch,
			TargetResource: models.ResourceProject,
			ResourceName:   "fraud",
		}
		res := f.run(req)
		assert.Equal(t, "username is required for add user to project operations", res.ErrorMessage)

		req.Parameters.Username = "bob"
		res = f.run(req)
		require.Equal(t, models.StatusSuccess, res.Status, res.ErrorMessage)
		c := f.client.calls[0]
		assert.Equal(t, openshift.KindRoleBinding, c.kind)
		assert.Equal(t, "fraud", c.namespace)
		assert.Equal(t, "bob-edit", c.name)
		assert.Equal(t, "edit", c.body["roleRef"].(map[string]any)["name"])
	})

	t.Run("resources", func(t *testing.T) {
		f := newFixture(t, nil)
		res := f.run(&models.OperationRequest{OperationType: models.OperationGet, TargetResource: models.ResourceProject, ResourceName: "fraud"})
		require.Equal(t, models.StatusSuccess, res.Status)
		assert.Equal(t, map[string]any{}, res.ResultData["resource_quota"])
	})

	t.Run("list selects dashboard projects", func(t *testing.T) {
		f := newFixture(t, nil)
		f.run(&models.OperationRequest{OperationType: models.OperationList, TargetResource: models.ResourceProject})
		assert.Equal(t, "opendatahub.io/dashboard=true", f.client.calls[0].selector)
	})
}

type fakeSource struct {
	now   time.Time
	stats map[bool]monitoring.RequestStats
	usage monitoring.ResourceUsage
	dist  map[string]float64

	window time.Duration
}

func (s *fakeSource) RequestStats(_ context.Context, _, _ string, at time.Time) (monitoring.RequestStats, error) {
	return s.stats[at.Equal(s.now)], nil
}

func (s *fakeSource) ResourceUsage(context.Context, string, string) (monitoring.ResourceUsage, error) {
	return s.usage, nil
}

func (s *fakeSource) PredictionDistribution(_ context.Context, _, _ string, window time.Duration) (map[string]float64, error) {
	s.window = window
	return s.dist, nil
}

func monitoringExecutor(t *testing.T, client *fakeClient, src *fakeSource) *Executor {
	d := NewMonitoringDomain(client, src)
	d.now = func() time.Time { return src.now }
	return NewExecutor(d, audit.NewMemoryStore(), NewMetrics(prometheus.NewRegistry()), zaptest.NewLogger(t))
}

func metricsRequest(action models.Action, p models.Parameters) *models.OperationRequest {
	p.Action = string(action)
	p.Namespace = "ml"
	return &models.OperationRequest{OperationType: models.OperationGet, TargetResource: models.ResourceModelMetrics, ResourceName: "churn", Parameters: p}
}

func TestMonitoring(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		now: now,
		stats: map[bool]monitoring.RequestStats{
			true:  {RequestsPerSecond: 30, P95LatencyMillis: 120},
			false: {RequestsPerSecond: 20, P95LatencyMillis: 100},
		},
		usage: monitoring.ResourceUsage{CPUCores: 1.8, CPULimitCores: 2, MemoryBytes: 1, MemoryLimitBytes: 4},
		dist:  map[string]float64{"positive": 70, "negative": 30},
	}
	client := newFakeClient()
	client.logs = map[string]string{
		"churn-predictor-b": "ok\nERROR model failed to load\n",
		"churn-predictor-a": "ready\n",
	}
	e := monitoringExecutor(t, client, src)
	ctx := context.Background()

	t.Run("analyze logs", func(t *testing.T) {
		res := e.Execute(ctx, metricsRequest(models.ActionAnalyzeLogs, models.Parameters{}))
		require.Equal(t, models.StatusSuccess, res.Status, res.ErrorMessage)
		assert.Equal(t, []string{"churn-predictor-a", "churn-predictor-b"}, res.ResultData["pods"])
		assert.Equal(t, 1, res.ResultData["error_count"])
		assert.Equal(t, "serving.kserve.io/inferenceservice=churn", client.calls[0].selector)
	})

	t.Run("compare metrics", func(t *testing.T) {
		res := e.Execute(ctx, metricsRequest(models.ActionCompareMetrics, models.Parameters{TimeRange: "yesterday"}))
		require.Equal(t, models.StatusSuccess, res.Status, res.ErrorMessage)
		change := res.ResultData["percent_change"].(map[string]float64)
		assert.InDelta(t, 50, change["requests_per_second"], 1e-9)
		assert.InDelta(t, 20, change["p95_latency_ms"], 1e-9)
		assert.NotContains(t, change, "errors_per_second")
		assert.Equal(t, "2026-03-01T12:00:00Z", res.ResultData["compared_to"])
	})

	t.Run("diagnose", func(t *testing.T) {
		res := e.Execute(ctx, metricsRequest(models.ActionDiagnosePerformance, models.Parameters{}))
		require.Equal(t, models.StatusSuccess, res.Status, res.ErrorMessage)
		assert.Equal(t, "cpu-bound", res.ResultData["diagnosis"].(monitoring.Diagnosis).Classification)
	})

	t.Run("prediction distribution", func(t *testing.T) {
		res := e.Execute(ctx, metricsRequest(models.ActionGetPredictionDistribution, models.Parameters{TimeRange: "last 3 days"}))
		require.Equal(t, models.StatusSuccess, res.Status, res.ErrorMessage)
		assert.Equal(t, 72*time.Hour, src.window)
		assert.Equal(t, 100.0, res.ResultData["total"])
	})

	t.Run("unknown action", func(t *testing.T) {
		res := e.Execute(ctx, metricsRequest("forecast", models.Parameters{}))
		assert.Equal(t, "Unexpected error: Unknown monitoring action: forecast", res.ErrorMessage)
	})

	t.Run("requires model", func(t *testing.T) {
		req := metricsRequest(models.ActionAnalyzeLogs, models.Parameters{})
		req.ResourceName = ""
		res := e.Execute(ctx, req)
		assert.Equal(t, "model_name is required for monitoring operations", res.ErrorMessage)
	})
}

func TestMonitoring_NotConfigured(t *testing.T) {
	f := newFixture(t, nil)
	res := f.run(metricsRequest(models.ActionDiagnosePerformance, models.Parameters{}))
	assert.Equal(t, models.StatusError, res.Status)
	assert.Contains(t, res.ErrorMessage, "metrics backend is not configured")
}
