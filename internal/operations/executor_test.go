package operations

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/avvvet/rhoai-intent/internal/audit"
	"github.com/avvvet/rhoai-intent/internal/models"
	"github.com/avvvet/rhoai-intent/internal/monitoring"
	"github.com/avvvet/rhoai-intent/internal/openshift"
)

type fixture struct {
	client  *fakeClient
	audit   *audit.MemoryStore
	metrics *Metrics
	router  *Router
}

func newFixture(t *testing.T, src monitoring.Source) *fixture {
	t.Helper()
	if src == nil {
		src = monitoring.Disabled{}
	}
	f := &fixture{
		client:  newFakeClient(),
		audit:   audit.NewMemoryStore(),
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	f.router = NewRouter(f.client, src, f.audit, f.metrics, "ml", zaptest.NewLogger(t))
	return f
}

func (f *fixture) run(req *models.OperationRequest) *models.ExecutionResult {
	return f.router.RouteAndExecute(context.Background(), req)
}

func modelRequest(verb models.OperationType, name string, p models.Parameters) *models.OperationRequest {
	p.ModelName = name
	return &models.OperationRequest{
		OperationID:    "op-1",
		SessionID:      "s1",
		UserID:         "alice",
		OperationType:  verb,
		TargetResource: models.ResourceInferenceService,
		ResourceName:   name,
		Parameters:     p,
	}
}

func TestExecute_ConfirmationGate(t *testing.T) {
	f := newFixture(t, nil)
	f.client.seed(openshift.KindInferenceService, "ml", "churn", map[string]any{})

	req := modelRequest(models.OperationDelete, "churn", models.Parameters{})
	req.RequiresConfirmation = true

	res := f.run(req)
	assert.Equal(t, models.StatusPendingConfirmation, res.Status)
	assert.Empty(t, f.client.calls)
	assert.Empty(t, f.audit.Entries())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.operations.WithLabelValues("model", "delete", models.StatusPendingConfirmation)))

	req.ConfirmationToken = "signed"
	res = f.run(req)
	assert.Equal(t, models.StatusSuccess, res.Status)
	require.Len(t, f.client.calls, 1)
	assert.Equal(t, "delete", f.client.calls[0].verb)
	assert.Len(t, f.audit.Entries(), 1)
}

func TestExecute_NotFound(t *testing.T) {
	f := newFixture(t, nil)

	res := f.run(modelRequest(models.OperationGet, "ghost", models.Parameters{}))
	assert.Equal(t, models.StatusError, res.Status)
	assert.Contains(t, strings.ToLower(res.ErrorMessage), "not found")

	entries := f.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "get_inference_service", entries[0].Operation)
	assert.Equal(t, res.ErrorMessage, entries[0].Error)
	assert.Equal(t, "get ghost", entries[0].UserCommand)
	assert.Equal(t, map[string]any{"status": models.StatusError}, entries[0].Result)
}

func TestExecute_ReplicaRange(t *testing.T) {
	str := intstr.FromString("three")
	tests := []struct {
		name     string
		verb     models.OperationType
		replicas *intstr.IntOrString
		wantErr  string
	}{
		{"deploy lower bound", models.OperationCreate, models.IntReplicas(0), ""},
		{"deploy upper bound", models.OperationCreate, models.IntReplicas(10), ""},
		{"deploy above", models.OperationCreate, models.IntReplicas(11), "replicas must be between 0 and 10"},
		{"deploy below", models.OperationCreate, models.IntReplicas(-1), "replicas must be between 0 and 10"},
		{"deploy default", models.OperationCreate, nil, ""},
		{"scale above", models.OperationPatch, models.IntReplicas(50), "replicas must be between 0 and 10"},
		{"scale missing", models.OperationPatch, nil, "replicas is required for scaling operations"},
		{"scale word", models.OperationPatch, &str, "replicas must be integer, got string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.client.seed(openshift.KindInferenceService, "ml", "churn", map[string]any{})

			res := f.run(modelRequest(tt.verb, "churn", models.Parameters{Replicas: tt.replicas}))
			if tt.wantErr == "" {
				assert.Equal(t, models.StatusSuccess, res.Status, res.ErrorMessage)
				assert.Len(t, f.client.calls, 1)
			} else {
				assert.Equal(t, models.StatusError, res.Status)
				assert.Equal(t, tt.wantErr, res.ErrorMessage)
				assert.Empty(t, f.client.calls)
			}
			assert.Len(t, f.audit.Entries(), 1)
		})
	}
}

func TestExecute_ErrorTranslation(t *testing.T) {
	gr := schema.GroupResource{Resource: "things"}
	tests := []struct {
		target models.ResourceType
		name   string
		params models.Parameters
		err    error
		want   string
	}{
		{models.ResourceInferenceService, "m", models.Parameters{}, apierrors.NewForbidden(gr, "m", errors.New("no access")), "You don't have permission to perform this operation: "},
		{models.ResourceInferenceService, "m", models.Parameters{}, apierrors.NewConflict(gr, "m", errors.New("exists")), "A resource with this name already exists"},
		{models.ResourceInferenceService, "m", models.Parameters{}, apierrors.NewInternalError(errors.New("boom")), "OpenShift AI encountered an Internal Error: "},
		{models.ResourceInferenceService, "m", models.Parameters{}, apierrors.NewServiceUnavailable("down"), "OpenShift AI is temporarily unavailable"},
		{models.ResourceInferenceService, "m", models.Parameters{}, apierrors.NewTooManyRequests("slow down", 1), "OpenShift AI API error (HTTP 429): "},
		{models.ResourceNotebook, "nb", models.Parameters{}, apierrors.NewNotFound(gr, "nb"), "Notebook not found. Please check the notebook name and namespace."},
		{models.ResourceNotebook, "nb", models.Parameters{}, apierrors.NewBadRequest("bad"), "Invalid notebook configuration. Please check your notebook parameters."},
		{models.ResourceNotebook, "nb", models.Parameters{}, apierrors.NewTooManyRequests("slow down", 1), "OpenShift API error (HTTP 429): "},
		{models.ResourcePipeline, "p", models.Parameters{}, apierrors.NewConflict(gr, "p", errors.New("exists")), "Pipeline already exists. Please use a different name or update the existing pipeline."},
		{models.ResourceProject, "proj", models.Parameters{}, apierrors.NewForbidden(gr, "proj", errors.New("no")), "Permission denied. You don't have access to this project or operation."},
		{models.ResourceProject, "proj", models.Parameters{}, apierrors.NewServiceUnavailable("open"), "OpenShift is temporarily unavailable. Please try again later."},
		{models.ResourceModelMetrics, "m", models.Parameters{Action: string(models.ActionAnalyzeLogs)}, apierrors.NewNotFound(gr, "m"), "Model not found. Please check the model name."},
		{models.ResourceModelMetrics, "m", models.Parameters{Action: string(models.ActionAnalyzeLogs)}, apierrors.NewConflict(gr, "m", errors.New("busy")), "A conflicting operation is in progress for this model."},
		{models.ResourceInferenceService, "m", models.Parameters{}, errors.New("connection reset"), "Unexpected error: connection reset"},
	}
	for _, tt := range tests {
		t.Run(string(tt.target)+" "+tt.want, func(t *testing.T) {
			f := newFixture(t, nil)
			f.client.err = tt.err
			res := f.run(&models.OperationRequest{
				OperationID:    "op",
				OperationType:  models.OperationGet,
				TargetResource: tt.target,
				ResourceName:   tt.name,
				Parameters:     tt.params,
			})
			assert.Equal(t, models.StatusError, res.Status)
			assert.True(t, strings.HasPrefix(res.ErrorMessage, tt.want), res.ErrorMessage)
			assert.Len(t, f.audit.Entries(), 1)
		})
	}
}

func TestErrorTables_SharedStatusSet(t *testing.T) {
	codes := []int{http.StatusNotFound, http.StatusForbidden, http.StatusConflict, http.StatusInternalServerError, http.StatusServiceUnavailable}
	for name, table := range map[string]ErrorTable{
		"model":      modelErrors,
		"pipeline":   pipelineErrors,
		"notebook":   notebookErrors,
		"project":    projectErrors,
		"monitoring": monitoringErrors,
	} {
		for _, code := range codes {
			assert.Contains(t, table.Messages, code, "%s table has no %d entry", name, code)
		}
	}
}

func TestExecute_UnknownOperation(t *testing.T) {
	f := newFixture(t, nil)
	res := f.run(modelRequest("update", "churn", models.Parameters{}))
	assert.Equal(t, models.StatusError, res.Status)
	assert.Equal(t, "Unexpected error: Unknown operation type: update", res.ErrorMessage)

	res = f.run(&models.OperationRequest{OperationType: models.OperationGet, TargetResource: "gpu"})
	assert.Equal(t, "Unknown target resource: gpu", res.ErrorMessage)
	assert.Len(t, f.audit.Entries(), 1)
}

type failingSink struct{}

func (failingSink) Record(context.Context, *audit.Entry) error { return errors.New("db down") }

func TestExecute_AuditFailureKeepsResult(t *testing.T) {
	client := newFakeClient()
	client.seed(openshift.KindInferenceService, "ml", "churn", map[string]any{"ok": true})
	r := NewRouter(client, monitoring.Disabled{}, failingSink{}, nil, "ml", zaptest.NewLogger(t))

	res := r.RouteAndExecute(context.Background(), modelRequest(models.OperationGet, "churn", models.Parameters{}))
	assert.Equal(t, models.StatusSuccess, res.Status)
	assert.Equal(t, map[string]any{"ok": true}, res.ResultData)
}
