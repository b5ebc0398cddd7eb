package models

import (
	"k8s.io/apimachinery/pkg/util/intstr"
)

// Action is the classified meaning of one utterance.
type Action string

// Model actions
const (
	ActionDeployModel Action = "deploy_model"
	ActionScaleModel  Action = "scale_model"
	ActionDeleteModel Action = "delete_model"
	ActionGetStatus   Action = "get_status"
	ActionListModels  Action = "list_models"
)

// Pipeline actions
const (
	ActionCreatePipeline   Action = "create_pipeline"
	ActionUpdatePipeline   Action = "update_pipeline"
	ActionListPipelines    Action = "list_pipelines"
	ActionListPipelineRuns Action = "list_pipeline_runs"
)

// Notebook actions
const (
	ActionCreateNotebook Action = "create_notebook"
	ActionStartNotebook  Action = "start_notebook"
	ActionStopNotebook   Action = "stop_notebook"
	ActionDeleteNotebook Action = "delete_notebook"
	ActionListNotebooks  Action = "list_notebooks"
)

// Project actions
const (
	ActionCreateProject       Action = "create_project"
	ActionListProjects        Action = "list_projects"
	ActionGetProjectResources Action = "get_project_resources"
	ActionAddUserToProject    Action = "add_user_to_project"
)

// Monitoring actions
const (
	ActionAnalyzeLogs               Action = "analyze_logs"
	ActionCompareMetrics            Action = "compare_metrics"
	ActionDiagnosePerformance       Action = "diagnose_performance"
	ActionGetPredictionDistribution Action = "get_prediction_distribution"
)

// IsList reports whether the action enumerates resources without naming one.
func (a Action) IsList() bool {
	switch a {
	case ActionListModels, ActionListPipelines, ActionListNotebooks, ActionListProjects:
		return true
	}
	return false
}

// IsDestructive reports whether the action must be confirmed before it runs.
func (a Action) IsDestructive() bool {
	switch a {
	case ActionDeleteModel, ActionScaleModel, ActionStopNotebook, ActionDeleteNotebook:
		return true
	}
	return false
}

// IsMonitoring reports whether the action belongs to the monitoring domain.
func (a Action) IsMonitoring() bool {
	switch a {
	case ActionAnalyzeLogs, ActionCompareMetrics, ActionDiagnosePerformance, ActionGetPredictionDistribution:
		return true
	}
	return false
}

// ResourceType tags the kind of resource an operation targets.
type ResourceType string

const (
	ResourceInferenceService ResourceType = "inference_service"
	ResourcePipeline         ResourceType = "pipeline"
	ResourcePipelineRuns     ResourceType = "pipeline_runs"
	ResourceNotebook         ResourceType = "notebook"
	ResourceProject          ResourceType = "project"
	ResourceModelMetrics     ResourceType = "model_metrics"
)

// ResourceRef points at a resource an intent talks about.
type ResourceRef struct {
	ResourceID string            `json:"resource_id"`
	Type       ResourceType      `json:"type"`
	Name       string            `json:"name"`
	Namespace  string            `json:"namespace,omitempty"`
	Labels     map[string]string `json:"labels"`
}

// Parameters holds every value an extractor can produce. Empty strings and
// nil pointers mean "not extracted".
type Parameters struct {
	ModelName    string `json:"model_name,omitempty"`
	PipelineName string `json:"pipeline_name,omitempty"`
	NotebookName string `json:"notebook_name,omitempty"`
	ProjectName  string `json:"project_name,omitempty"`
	Namespace    string `json:"namespace,omitempty"`

	// Replicas may arrive as a number word ("three") from clients; it is
	// coerced to an integer during validation.
	Replicas    *intstr.IntOrString `json:"replicas,omitempty"`
	StorageURI  string              `json:"storage_uri,omitempty"`
	ModelFormat string              `json:"model_format,omitempty"`

	Schedule string `json:"schedule,omitempty"`

	Memory string `json:"memory,omitempty"`
	CPU    string `json:"cpu,omitempty"`
	GPU    *int   `json:"gpu,omitempty"`
	Image  string `json:"image,omitempty"`

	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
	MemoryLimit string `json:"memory_limit,omitempty"`
	CPULimit    string `json:"cpu_limit,omitempty"`
	Username    string `json:"username,omitempty"`
	Role        string `json:"role,omitempty"`

	TimeRange string `json:"time_range,omitempty"`

	// Action is the sub-operation: start|stop for notebook control, or the
	// monitoring action name injected by the router.
	Action string `json:"action,omitempty"`
}

// HasName reports whether any domain entity name was extracted.
func (p Parameters) HasName() bool {
	return p.ModelName != "" || p.PipelineName != "" || p.NotebookName != "" || p.ProjectName != ""
}

// ReplicaCount returns the integer replica count when one is set.
func (p Parameters) ReplicaCount() (int, bool) {
	if p.Replicas == nil || p.Replicas.Type != intstr.Int {
		return 0, false
	}
	return int(p.Replicas.IntVal), true
}

// IntReplicas builds an integer replica parameter. n must fit an int32;
// callers range-check before building.
func IntReplicas(n int) *intstr.IntOrString {
	v := intstr.FromInt32(int32(n))
	return &v
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// Intent is the parsed meaning of one user utterance.
type Intent struct {
	ID                   string        `json:"intent_id"`
	Action               Action        `json:"action_type"`
	TargetResources      []ResourceRef `json:"target_resources"`
	Parameters           Parameters    `json:"parameters"`
	Confidence           float64       `json:"confidence"`
	Ambiguities          []string      `json:"ambiguities"`
	RequiresConfirmation bool          `json:"requires_confirmation"`
}
