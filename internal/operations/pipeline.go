package operations

import (
	"context"
	"fmt"

	"github.com/avvvet/rhoai-intent/internal/models"
	"github.com/avvvet/rhoai-intent/internal/openshift"
)

// pipelineLabel selects the workflow runs of a pipeline.
const pipelineLabel = "pipelines.kubeflow.org/pipeline"

// PipelineDomain manages Data Science Pipelines and their runs.
type PipelineDomain struct {
	client openshift.Client
}

func NewPipelineDomain(client openshift.Client) *PipelineDomain {
	return &PipelineDomain{client: client}
}

func (d *PipelineDomain) Name() string       { return "pipeline" }
func (d *PipelineDomain) Errors() ErrorTable { return pipelineErrors }

func (d *PipelineDomain) Validate(req *models.OperationRequest) error {
	p := req.Parameters
	switch req.OperationType {
	case models.OperationCreate:
		if req.ResourceName == "" {
			return models.NewValidationError("pipeline_name", "pipeline_name is required for pipeline creation operations")
		}
		if p.Namespace == "" {
			return models.NewValidationError("namespace", "namespace is required for pipeline creation")
		}
	case models.OperationGet:
		if req.ResourceName == "" {
			return models.NewValidationError("pipeline_name", "pipeline_name is required for status query operations")
		}
		if p.Namespace == "" {
			return models.NewValidationError("namespace", "namespace is required for pipeline status query")
		}
	case models.OperationPatch:
		if req.ResourceName == "" {
			return models.NewValidationError("pipeline_name", "pipeline_name is required for schedule update operations")
		}
		if p.Schedule == "" {
			return models.NewValidationError("schedule", "schedule is required for pipeline schedule update")
		}
		if p.Namespace == "" {
			return models.NewValidationError("namespace", "namespace is required for pipeline schedule update")
		}
	}

	if req.TargetResource == models.ResourcePipelineRuns {
		if req.ResourceName == "" {
			return models.NewValidationError("pipeline_name", "pipeline_name is required for pipeline run history retrieval")
		}
		if p.Namespace == "" {
			return models.NewValidationError("namespace", "namespace is required for pipeline run history")
		}
	}
	return nil
}

func (d *PipelineDomain) Dispatch(ctx context.Context, req *models.OperationRequest) (map[string]any, error) {
	ns := req.Parameters.Namespace
	name := req.ResourceName

	if req.TargetResource == models.ResourcePipelineRuns && req.OperationType == models.OperationList {
		runs, err := d.client.List(ctx, openshift.KindWorkflow, ns, pipelineLabel+"="+name)
		if err != nil {
			return nil, err
		}
		out := listResult(runs)
		out["pipeline_name"] = name
		return out, nil
	}

	switch req.OperationType {
	case models.OperationCreate:
		spec := map[string]any{}
		if req.Parameters.Schedule != "" {
			spec["schedule"] = req.Parameters.Schedule
		}
		return d.client.Create(ctx, openshift.KindPipeline, ns, map[string]any{
			"metadata": map[string]any{"name": name},
			"spec":     spec,
		})
	case models.OperationGet:
		return d.client.Get(ctx, openshift.KindPipeline, ns, name)
	case models.OperationList:
		// an empty namespace lists across all namespaces
		items, err := d.client.List(ctx, openshift.KindPipeline, ns, "")
		if err != nil {
			return nil, err
		}
		return listResult(items), nil
	case models.OperationPatch:
		return d.client.Patch(ctx, openshift.KindPipeline, ns, name, map[string]any{
			"spec": map[string]any{"schedule": req.Parameters.Schedule},
		})
	}
	return nil, fmt.Errorf("Unknown operation type: %s", req.OperationType)
}
