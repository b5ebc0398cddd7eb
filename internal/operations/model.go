package operations

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/avvvet/rhoai-intent/internal/models"
	"github.com/avvvet/rhoai-intent/internal/openshift"
)

// Executor-level replica bounds. They are tighter than the parser's.
const (
	minReplicas = 0
	maxReplicas = 10
)

const (
	defaultModelNamespace = "default"
	defaultModelFormat    = "sklearn"
)

// ModelDomain manages KServe InferenceServices.
type ModelDomain struct {
	client openshift.Client
}

func NewModelDomain(client openshift.Client) *ModelDomain {
	return &ModelDomain{client: client}
}

func (d *ModelDomain) Name() string       { return "model" }
func (d *ModelDomain) Errors() ErrorTable { return modelErrors }

func (d *ModelDomain) Validate(req *models.OperationRequest) error {
	p := req.Parameters
	switch req.OperationType {
	case models.OperationCreate:
		if req.ResourceName == "" {
			return models.NewValidationError("model_name", "model_name is required for deployment operations")
		}
		if p.Replicas != nil {
			return checkReplicas(p.Replicas)
		}
	case models.OperationPatch:
		if req.ResourceName == "" {
			return models.NewValidationError("model_name", "model_name is required for scaling operations")
		}
		if p.Replicas == nil {
			return models.NewValidationError("replicas", "replicas is required for scaling operations")
		}
		return checkReplicas(p.Replicas)
	}
	return nil
}

func checkReplicas(v *intstr.IntOrString) error {
	if v.Type != intstr.Int {
		return models.NewValidationError("replicas", "replicas must be integer, got string")
	}
	if v.IntVal < minReplicas || v.IntVal > maxReplicas {
		return models.NewValidationError("replicas", "replicas must be between %d and %d", minReplicas, maxReplicas)
	}
	return nil
}

func (d *ModelDomain) Dispatch(ctx context.Context, req *models.OperationRequest) (map[string]any, error) {
	ns := namespaceOr(req.Parameters, defaultModelNamespace)
	name := req.ResourceName

	switch req.OperationType {
	case models.OperationCreate:
		return d.client.Create(ctx, openshift.KindInferenceService, ns, inferenceService(name, req.Parameters))
	case models.OperationGet:
		return d.client.Get(ctx, openshift.KindInferenceService, ns, name)
	case models.OperationList:
		items, err := d.client.List(ctx, openshift.KindInferenceService, ns, "")
		if err != nil {
			return nil, err
		}
		return listResult(items), nil
	case models.OperationPatch:
		n := int64(req.Parameters.Replicas.IntValue())
		return d.client.Patch(ctx, openshift.KindInferenceService, ns, name, map[string]any{
			"spec": map[string]any{
				"predictor": map[string]any{"minReplicas": n, "maxReplicas": n},
			},
		})
	case models.OperationDelete:
		if err := d.client.Delete(ctx, openshift.KindInferenceService, ns, name); err != nil {
			return nil, err
		}
		return deletedResult(name, ns), nil
	}
	return nil, fmt.Errorf("Unknown operation type: %s", req.OperationType)
}

func inferenceService(name string, p models.Parameters) map[string]any {
	format := p.ModelFormat
	if format == "" {
		format = defaultModelFormat
	}
	replicas := int64(1)
	if n, ok := p.ReplicaCount(); ok {
		replicas = int64(n)
	}

	predictor := map[string]any{
		"modelFormat": map[string]any{"name": format},
		"minReplicas": replicas,
		"maxReplicas": replicas,
	}
	if p.StorageURI != "" {
		predictor["storageUri"] = p.StorageURI
	}
	return map[string]any{
		"metadata": map[string]any{"name": name},
		"spec":     map[string]any{"predictor": predictor},
	}
}
