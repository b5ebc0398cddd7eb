package operations

import (
	"context"
	"fmt"

	"github.com/avvvet/rhoai-intent/internal/models"
	"github.com/avvvet/rhoai-intent/internal/openshift"
)

const (
	stoppedAnnotation = "kubeflow-resource-stopped"
	gpuResource       = "nvidia.com/gpu"

	defaultNotebookImage  = "jupyter/scipy-notebook:latest"
	defaultNotebookMemory = "2Gi"
	defaultNotebookCPU    = "1"
)

// NotebookDomain manages Kubeflow workbench notebooks.
type NotebookDomain struct {
	client openshift.Client
}

func NewNotebookDomain(client openshift.Client) *NotebookDomain {
	return &NotebookDomain{client: client}
}

func (d *NotebookDomain) Name() string       { return "notebook" }
func (d *NotebookDomain) Errors() ErrorTable { return notebookErrors }

func (d *NotebookDomain) Validate(req *models.OperationRequest) error {
	p := req.Parameters
	switch req.OperationType {
	case models.OperationCreate:
		if req.ResourceName == "" {
			return models.NewValidationError("notebook_name", "notebook_name is required for notebook creation operations")
		}
		if p.Namespace == "" {
			return models.NewValidationError("namespace", "namespace is required for notebook creation")
		}
	case models.OperationGet:
		if req.ResourceName == "" {
			return models.NewValidationError("notebook_name", "notebook_name is required for notebook status operations")
		}
		if p.Namespace == "" {
			return models.NewValidationError("namespace", "namespace is required for notebook status query")
		}
	case models.OperationPatch:
		if req.ResourceName == "" {
			return models.NewValidationError("notebook_name", "notebook_name is required for notebook control operations")
		}
		if p.Action != "start" && p.Action != "stop" {
			return models.NewValidationError("action", "action must be 'start' or 'stop' for notebook control operations")
		}
		if p.Namespace == "" {
			return models.NewValidationError("namespace", "namespace is required for notebook control operations")
		}
	case models.OperationDelete:
		if req.ResourceName == "" {
			return models.NewValidationError("notebook_name", "notebook_name is required for notebook deletion operations")
		}
		if p.Namespace == "" {
			return models.NewValidationError("namespace", "namespace is required for notebook deletion")
		}
	}
	return nil
}

func (d *NotebookDomain) Dispatch(ctx context.Context, req *models.OperationRequest) (map[string]any, error) {
	ns := req.Parameters.Namespace
	name := req.ResourceName

	switch req.OperationType {
	case models.OperationCreate:
		return d.client.Create(ctx, openshift.KindNotebook, ns, notebook(name, req.Parameters))
	case models.OperationGet:
		return d.client.Get(ctx, openshift.KindNotebook, ns, name)
	case models.OperationList:
		items, err := d.client.List(ctx, openshift.KindNotebook, ns, "")
		if err != nil {
			return nil, err
		}
		return listResult(items), nil
	case models.OperationPatch:
		// a null annotation value removes it under merge patch semantics
		var stopped any
		if req.Parameters.Action == "stop" {
			stopped = "true"
		}
		return d.client.Patch(ctx, openshift.KindNotebook, ns, name, map[string]any{
			"metadata": map[string]any{
				"annotations": map[string]any{stoppedAnnotation: stopped},
			},
		})
	case models.OperationDelete:
		if err := d.client.Delete(ctx, openshift.KindNotebook, ns, name); err != nil {
			return nil, err
		}
		return deletedResult(name, ns), nil
	}
	return nil, fmt.Errorf("Unknown operation type: %s", req.OperationType)
}

func notebook(name string, p models.Parameters) map[string]any {
	image, memory, cpu := p.Image, p.Memory, p.CPU
	if image == "" {
		image = defaultNotebookImage
	}
	if memory == "" {
		memory = defaultNotebookMemory
	}
	if cpu == "" {
		cpu = defaultNotebookCPU
	}

	resources := map[string]any{
		"requests": map[string]any{"memory": memory, "cpu": cpu},
	}
	if p.GPU != nil && *p.GPU > 0 {
		resources["limits"] = map[string]any{gpuResource: int64(*p.GPU)}
	}

	return map[string]any{
		"metadata": map[string]any{"name": name},
		"spec": map[string]any{
			"template": map[string]any{
				"spec": map[string]any{
					"containers": []any{
						map[string]any{"name": name, "image": image, "resources": resources},
					},
					"volumes": []any{
						map[string]any{
							"name":                  "workspace",
							"persistentVolumeClaim": map[string]any{"claimName": name + "-pvc"},
						},
					},
				},
			},
		},
	}
}
